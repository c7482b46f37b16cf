package postprocess

import (
	"fmt"
	"log/slog"

	"github.com/pdevine/tensor"

	"framectl/internal/imageops"
	"framectl/internal/logging"
)

// Processor transforms one generated [C,H,W] frame. index is the frame's
// position within the generated batch.
type Processor interface {
	Process(frame *tensor.Dense, index int) *tensor.Dense
}

// Chain runs processors in registration order.
type Chain []Processor

// Apply runs every processor over every frame and returns the results. The
// input slice is not modified.
func (c Chain) Apply(frames []*tensor.Dense) []*tensor.Dense {
	out := make([]*tensor.Dense, len(frames))
	for i, frame := range frames {
		for _, p := range c {
			frame = p.Process(frame, i)
		}
		out[i] = frame
	}
	return out
}

// perFrame copies the first n entries of an [N,C,H,W] stack. n is clamped to
// the stack length, which may be CFG-doubled.
func perFrame(stack *tensor.Dense, n int) ([][]float32, int, int, int, error) {
	if stack == nil {
		return nil, 0, 0, 0, fmt.Errorf("nil conditioning")
	}
	shape := stack.Shape()
	if len(shape) != 4 {
		return nil, 0, 0, 0, fmt.Errorf("unexpected conditioning shape %v", []int(shape))
	}
	if n <= 0 || n > shape[0] {
		n = shape[0]
	}
	out := make([][]float32, n)
	var c, h, w int
	for i := range n {
		data, fc, fh, fw, err := imageops.FrameAt(stack, i)
		if err != nil {
			return nil, 0, 0, 0, err
		}
		out[i], c, h, w = data, fc, fh, fw
	}
	return out, c, h, w, nil
}

func pick(batch bool, index, n int) (int, bool) {
	if !batch {
		return 0, true
	}
	return index, index >= 0 && index < n
}

func clip01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func mismatch(logger *slog.Logger, kind string, unit, index int, detail ...logging.Attr) {
	attrs := []logging.Attr{
		logging.String("processor", kind),
		logging.Int(logging.FieldUnitIndex, unit),
		logging.Int("frame", index),
	}
	attrs = append(attrs, detail...)
	attrs = append(attrs, logging.String(logging.FieldErrorHint, "another hook may have changed the output size"))
	logging.ErrorWithContext(logger, "post-processing resolution mismatch, frame passed through", "postprocess_mismatch", attrs...)
}
