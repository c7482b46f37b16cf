package inject

import (
	"context"
	"fmt"
	"log/slog"

	"framectl/internal/control"
	"framectl/internal/controlmodel"
	"framectl/internal/host"
	"framectl/internal/logging"
	"framectl/internal/services"
)

// State is the hook lifecycle state.
type State int

const (
	StateIdle State = iota
	StateHooked
)

func (s State) String() string {
	if s == StateHooked {
		return "hooked"
	}
	return "idle"
}

// Hook owns the attachment lifecycle for one network.
type Hook struct {
	network host.Network
	binder  host.LoRABinder
	logger  *slog.Logger

	state    State
	undo     []func()
	attached []*control.ForwardDescriptor
}

// New builds an idle hook. binder may be nil when no control LoRA models are used.
func New(network host.Network, binder host.LoRABinder, logger *slog.Logger) *Hook {
	return &Hook{
		network: network,
		binder:  binder,
		logger:  logging.NewComponentLogger(logger, "inject"),
	}
}

// State reports the current lifecycle state.
func (h *Hook) State() State { return h.state }

// Attach hooks every descriptor. On error everything attached so far is
// undone and the hook stays idle. Attaching while hooked is a lifecycle bug
// and panics.
func (h *Hook) Attach(ctx context.Context, descs []*control.ForwardDescriptor, lowVRAM bool) error {
	if h.state == StateHooked {
		panic("inject: Attach called while hooked")
	}
	logger := logging.WithContext(ctx, h.logger)

	if err := h.attach(descs, lowVRAM); err != nil {
		h.rollback()
		return err
	}
	h.state = StateHooked
	h.attached = descs
	logger.Info("control hooks attached",
		logging.Int("descriptors", len(descs)),
		logging.Int("hooks", len(h.undo)),
		logging.Bool("low_vram", lowVRAM),
	)
	return nil
}

func (h *Hook) attach(descs []*control.ForwardDescriptor, lowVRAM bool) error {
	for _, desc := range descs {
		lora, ok := controlmodel.LoRA(desc.Model)
		if !ok {
			continue
		}
		if h.binder == nil {
			return services.Wrap(services.ErrConfiguration, "inject", "bind control lora", fmt.Sprintf("unit %d needs a LoRA binder", desc.UnitIndex), nil)
		}
		if err := h.binder.BindLoRA(lora); err != nil {
			return services.Wrap(services.ErrExternalTool, "inject", "bind control lora", fmt.Sprintf("unit %d", desc.UnitIndex), err)
		}
		h.undo = append(h.undo, func() { h.binder.UnbindLoRA(lora) })
	}

	residual := make([]*control.ForwardDescriptor, 0, len(descs))
	for _, desc := range descs {
		if desc.ModelType.Residual() {
			residual = append(residual, desc)
		}
	}
	if len(residual) > 0 {
		if h.network == nil {
			return services.Wrap(services.ErrConfiguration, "inject", "hook network", "no network available", nil)
		}
		if err := h.network.Hook(residual, lowVRAM); err != nil {
			return services.Wrap(services.ErrExternalTool, "inject", "hook network", "", err)
		}
		h.undo = append(h.undo, h.network.Restore)
	}

	for _, desc := range descs {
		switch desc.ModelType {
		case control.ModelIPAdapter:
			hooker, ok := desc.Model.(host.AttentionHooker)
			if !ok {
				return &control.ModelTypeError{Unit: desc.UnitIndex, Module: desc.Preprocessor.Name, Model: modelName(desc.Model), Reason: "model has no attention hook"}
			}
			if err := hooker.HookAttention(desc.Hint, desc.Weight, desc.GuidanceStart, desc.GuidanceEnd); err != nil {
				return services.Wrap(services.ErrExternalTool, "inject", "hook attention", fmt.Sprintf("unit %d", desc.UnitIndex), err)
			}
			h.undo = append(h.undo, hooker.UnhookAttention)
		case control.ModelControlLite:
			hooker, ok := desc.Model.(host.LiteHooker)
			if !ok {
				return &control.ModelTypeError{Unit: desc.UnitIndex, Module: desc.Preprocessor.Name, Model: modelName(desc.Model), Reason: "model has no lite hook"}
			}
			if err := hooker.HookLite(desc.Hint, desc.Weight, desc.GuidanceStart, desc.GuidanceEnd); err != nil {
				return services.Wrap(services.ErrExternalTool, "inject", "hook controllite", fmt.Sprintf("unit %d", desc.UnitIndex), err)
			}
			h.undo = append(h.undo, hooker.UnhookLite)
		}
	}
	return nil
}

// Detach undoes every attachment in reverse order and resets models that
// keep per-call state. Detaching an idle hook does nothing.
func (h *Hook) Detach() {
	if h.state == StateIdle {
		h.logger.Debug("detach on idle hook ignored")
		return
	}
	h.rollback()
	for _, desc := range h.attached {
		if r, ok := desc.Model.(controlmodel.Resetter); ok {
			r.Reset()
		}
	}
	h.attached = nil
	h.state = StateIdle
	h.logger.Info("control hooks detached")
}

func (h *Hook) rollback() {
	for i := len(h.undo) - 1; i >= 0; i-- {
		h.undo[i]()
	}
	h.undo = nil
}

// Run attaches descs, calls fn and detaches, even when fn fails or panics.
func (h *Hook) Run(ctx context.Context, descs []*control.ForwardDescriptor, lowVRAM bool, fn func(context.Context) error) error {
	if err := h.Attach(ctx, descs, lowVRAM); err != nil {
		return err
	}
	defer h.Detach()
	return fn(ctx)
}

func modelName(m control.Model) string {
	if m == nil {
		return ""
	}
	return m.Name()
}
