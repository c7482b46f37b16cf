package controlmodel

import (
	"fmt"
	"strings"

	"framectl/internal/control"
)

// Architecture tags reported by loaded models.
const (
	ArchControlNet   = "controlnet"
	ArchAdapter      = "t2i_adapter"
	ArchAdapterLight = "t2i_adapter_light"
	ArchStyleAdapter = "t2i_style_adapter"
	ArchIPAdapter    = "ip_adapter"
	ArchControlLite  = "controllllite"
	ArchControlLoRA  = "control_lora"
)

// Resetter is implemented by models that carry per-call state.
type Resetter interface {
	Reset()
}

// PlusVariant is implemented by IP-Adapter models; plus variants consume
// penultimate hidden states instead of image embeddings.
type PlusVariant interface {
	IsPlus() bool
}

// Pooling is implemented by ControlNet models trained with global average pooling.
type Pooling interface {
	GlobalAveragePooling() bool
}

// LoRACarrier is implemented by models whose weights are LoRA deltas bound
// into the base network.
type LoRACarrier interface {
	ControlLoRA() any
}

// Classify maps a loaded model to its ModelType.
func Classify(model control.Model) (control.ModelType, error) {
	if model == nil {
		return 0, fmt.Errorf("no model loaded")
	}
	switch strings.ToLower(strings.TrimSpace(model.Architecture())) {
	case ArchControlNet:
		return control.ModelControlNet, nil
	case ArchAdapter, ArchAdapterLight:
		return control.ModelT2IAdapter, nil
	case ArchStyleAdapter:
		return control.ModelT2IStyleAdapter, nil
	case ArchIPAdapter:
		return control.ModelIPAdapter, nil
	case ArchControlLite:
		return control.ModelControlLite, nil
	case ArchControlLoRA:
		return control.ModelControlLoRA, nil
	default:
		return 0, fmt.Errorf("unrecognized architecture %q", model.Architecture())
	}
}

// IsPlus reports whether model is a plus-variant IP-Adapter.
func IsPlus(model control.Model) bool {
	p, ok := model.(PlusVariant)
	return ok && p.IsPlus()
}

// GlobalAveragePooling reports the model's pooling flag.
func GlobalAveragePooling(model control.Model) bool {
	p, ok := model.(Pooling)
	return ok && p.GlobalAveragePooling()
}

// LoRA returns the model's control LoRA, if any.
func LoRA(model control.Model) (any, bool) {
	c, ok := model.(LoRACarrier)
	if !ok {
		return nil, false
	}
	lora := c.ControlLoRA()
	return lora, lora != nil
}
