package host

import "framectl/internal/control"

// Network is the denoising network's residual injection API.
type Network interface {
	Hook(descriptors []*control.ForwardDescriptor, lowVRAM bool) error
	Restore()
}

// AttentionHooker is implemented by IP-Adapter models, which register their
// embedding as an extra key/value stream in attention layers.
type AttentionHooker interface {
	HookAttention(cond control.Conditioning, weight, start, end float64) error
	UnhookAttention()
}

// LiteHooker is implemented by ControlLite models.
type LiteHooker interface {
	HookLite(cond control.Conditioning, weight, start, end float64) error
	UnhookLite()
}

// LoRABinder binds control LoRA weight deltas into the network's attention
// and linear layers.
type LoRABinder interface {
	BindLoRA(lora any) error
	UnbindLoRA(lora any)
}
