package control

import (
	"fmt"
	"strings"
)

// InputMode selects whether a unit reads one image or a frame list.
type InputMode int

const (
	InputSimple InputMode = iota
	InputBatch
)

func (m InputMode) String() string {
	if m == InputBatch {
		return "batch"
	}
	return "simple"
}

// UnmarshalText accepts "simple" or "batch".
func (m *InputMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "simple", "single":
		*m = InputSimple
	case "batch", "video":
		*m = InputBatch
	default:
		return fmt.Errorf("input mode: unsupported value %q", text)
	}
	return nil
}

// MarshalText renders the mode for TOML and JSON encoders.
func (m InputMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ResizeMode controls how a detected map is fitted onto the canvas.
type ResizeMode int

const (
	// ResizeJust stretches the map to the canvas.
	ResizeJust ResizeMode = iota
	// ResizeInnerFit scales to cover the canvas and crops the overflow.
	ResizeInnerFit
	// ResizeOuterFit scales to fit inside the canvas and pads the remainder.
	ResizeOuterFit
)

func (m ResizeMode) String() string {
	switch m {
	case ResizeInnerFit:
		return "crop_and_resize"
	case ResizeOuterFit:
		return "resize_and_fill"
	default:
		return "just_resize"
	}
}

// UnmarshalText accepts the canonical names plus "inner_fit" and "outer_fit".
func (m *ResizeMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "just_resize", "resize":
		*m = ResizeJust
	case "crop_and_resize", "inner_fit", "crop":
		*m = ResizeInnerFit
	case "resize_and_fill", "outer_fit", "fill":
		*m = ResizeOuterFit
	default:
		return fmt.Errorf("resize mode: unsupported value %q", text)
	}
	return nil
}

func (m ResizeMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ControlMode balances prompt guidance against control guidance.
type ControlMode int

const (
	ModeBalanced ControlMode = iota
	// ModePrompt favours the prompt (control applied to the conditional branch only, softened).
	ModePrompt
	// ModeControl favours the control signal.
	ModeControl
)

func (m ControlMode) String() string {
	switch m {
	case ModePrompt:
		return "prompt"
	case ModeControl:
		return "control"
	default:
		return "balanced"
	}
}

func (m *ControlMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "balanced":
		*m = ModeBalanced
	case "prompt", "my prompt is more important":
		*m = ModePrompt
	case "control", "controlnet is more important":
		*m = ModeControl
	default:
		return fmt.Errorf("control mode: unsupported value %q", text)
	}
	return nil
}

func (m ControlMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// SoftInjection reports whether residuals are attenuated across layers.
func (m ControlMode) SoftInjection() bool { return m != ModeBalanced }

// CFGInjection reports whether residuals are applied to the conditional branch only.
func (m ControlMode) CFGInjection() bool { return m == ModeControl }

// ModelType tags how a unit's conditioning is extracted, stacked and attached.
type ModelType int

const (
	ModelControlNet ModelType = iota
	ModelT2IAdapter
	ModelT2IStyleAdapter
	ModelAttentionInjection
	ModelReVision
	ModelIPAdapter
	ModelControlLite
	ModelControlLoRA
)

var modelTypeNames = [...]string{
	ModelControlNet:         "controlnet",
	ModelT2IAdapter:         "t2i_adapter",
	ModelT2IStyleAdapter:    "t2i_style_adapter",
	ModelAttentionInjection: "attention_injection",
	ModelReVision:           "revision",
	ModelIPAdapter:          "ip_adapter",
	ModelControlLite:        "controllllite",
	ModelControlLoRA:        "control_lora",
}

func (t ModelType) String() string {
	if t < 0 || int(t) >= len(modelTypeNames) {
		return fmt.Sprintf("model_type(%d)", int(t))
	}
	return modelTypeNames[t]
}

// Residual reports whether the type is attached through the generic residual mechanism.
func (t ModelType) Residual() bool {
	return t != ModelIPAdapter && t != ModelControlLite
}
