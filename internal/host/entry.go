package host

import (
	"context"

	"github.com/pdevine/tensor"
)

// Result is what the batch entry point returns to its caller.
type Result struct {
	Frames []*tensor.Dense
	Info   map[string]string
}

// BatchEntry is the host's per-batch generation entry point.
type BatchEntry interface {
	ProcessImages(ctx context.Context, call *Call) (*Result, error)
}

// Denoiser runs the sampler for the current call and returns [C,H,W] frames in [0,1].
type Denoiser func(ctx context.Context) ([]*tensor.Dense, error)

// GenerationEntry is the control extension's per-call entry. It prepares
// control state and runs denoise while that state is active.
type GenerationEntry interface {
	Generate(ctx context.Context, call *Call, denoise Denoiser) ([]*tensor.Dense, error)
}

// PostprocessEntry receives the produced frames after denoising and may
// replace entries in place.
type PostprocessEntry interface {
	PostprocessBatch(ctx context.Context, call *Call, frames []*tensor.Dense) error
}

// HookPoints are the three interception points the host exposes. Wrappers are
// swapped in and out by replacing these interface values.
type HookPoints struct {
	Batch       BatchEntry
	Generation  GenerationEntry
	Postprocess PostprocessEntry
}

// BatchFunc adapts a function to BatchEntry.
type BatchFunc func(ctx context.Context, call *Call) (*Result, error)

func (f BatchFunc) ProcessImages(ctx context.Context, call *Call) (*Result, error) {
	return f(ctx, call)
}
