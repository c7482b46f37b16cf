package postprocess

import (
	"fmt"
	"log/slog"

	"github.com/pdevine/tensor"

	"framectl/internal/imageops"
	"framectl/internal/logging"
)

// InpaintBlend keeps generated pixels inside the inpaint mask and restores the
// reference outside it.
type InpaintBlend struct {
	unit   int
	batch  bool
	h, w   int
	colors [][]float32
	masks  [][]float32
	logger *slog.Logger
}

// NewInpaintBlend reads RGB reference and alpha mask from the first frames
// entries of a 4-channel stack. The mask is dilated then box-blurred with a
// sigma x sigma kernel.
func NewInpaintBlend(unit int, stack *tensor.Dense, frames, sigma int, batch bool, logger *slog.Logger) (*InpaintBlend, error) {
	if !batch {
		frames = 1
	}
	entries, c, h, w, err := perFrame(stack, frames)
	if err != nil {
		return nil, fmt.Errorf("inpaint blend: %w", err)
	}
	if c != 4 {
		return nil, fmt.Errorf("inpaint blend: expected 4 channels, got %d", c)
	}
	plane := h * w
	b := &InpaintBlend{
		unit:   unit,
		batch:  batch,
		h:      h,
		w:      w,
		colors: make([][]float32, len(entries)),
		masks:  make([][]float32, len(entries)),
		logger: logging.NewComponentLogger(logger, "postprocess"),
	}
	for i, data := range entries {
		b.colors[i] = data[: 3*plane : 3*plane]
		mask, err := imageops.Dilate(data[3*plane:], w, h, sigma)
		if err != nil {
			return nil, fmt.Errorf("inpaint blend: %w", err)
		}
		if b.masks[i], err = imageops.BoxBlur(mask, w, h, sigma); err != nil {
			return nil, fmt.Errorf("inpaint blend: %w", err)
		}
	}
	return b, nil
}

// Process computes clip(m*clip(x,0,1) + (1-m)*r, 0, 1).
func (b *InpaintBlend) Process(frame *tensor.Dense, index int) *tensor.Dense {
	c, h, w, err := imageops.FrameDims(frame)
	if err != nil || c != 3 || h != b.h || w != b.w {
		mismatch(b.logger, "inpaint", b.unit, index, logging.Shape("expected", 3, b.h, b.w), logging.Shape("got", c, h, w))
		return frame
	}
	i, ok := pick(b.batch, index, len(b.colors))
	if !ok {
		mismatch(b.logger, "inpaint", b.unit, index, logging.Int("reference_frames", len(b.colors)))
		return frame
	}
	ref, mask := b.colors[i], b.masks[i]
	src := imageops.Float32s(frame)
	plane := h * w
	out := make([]float32, len(src))
	for ch := 0; ch < 3; ch++ {
		for p := 0; p < plane; p++ {
			m := mask[p]
			k := ch*plane + p
			out[k] = clip01(m*clip01(src[k]) + (1-m)*ref[k])
		}
	}
	return tensor.New(tensor.WithShape(frame.Shape().Clone()...), tensor.WithBacking(out))
}
