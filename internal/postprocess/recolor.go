package postprocess

import (
	"fmt"
	"log/slog"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pdevine/tensor"

	"framectl/internal/imageops"
	"framectl/internal/logging"
)

// RecolorVariant selects the channel a recolor map replaces.
type RecolorVariant int

const (
	// RecolorLuminance replaces Lab lightness.
	RecolorLuminance RecolorVariant = iota
	// RecolorIntensity replaces HSV value.
	RecolorIntensity
)

func (v RecolorVariant) String() string {
	if v == RecolorIntensity {
		return "recolor_intensity"
	}
	return "recolor_luminance"
}

// RecolorBlend overwrites one channel of each generated frame with the 0-255
// map taken from channel 0 of the unit's conditioning.
type RecolorBlend struct {
	unit    int
	variant RecolorVariant
	batch   bool
	h, w    int
	maps    [][]uint8
	logger  *slog.Logger
}

// NewRecolorBlend quantizes channel 0 of the first frames stack entries.
func NewRecolorBlend(unit int, stack *tensor.Dense, frames int, variant RecolorVariant, batch bool, logger *slog.Logger) (*RecolorBlend, error) {
	if !batch {
		frames = 1
	}
	entries, _, h, w, err := perFrame(stack, frames)
	if err != nil {
		return nil, fmt.Errorf("recolor blend: %w", err)
	}
	plane := h * w
	b := &RecolorBlend{
		unit:    unit,
		variant: variant,
		batch:   batch,
		h:       h,
		w:       w,
		maps:    make([][]uint8, len(entries)),
		logger:  logging.NewComponentLogger(logger, "postprocess"),
	}
	for i, data := range entries {
		m := make([]uint8, plane)
		for p := range m {
			m[p] = imageops.ToByte(data[p])
		}
		b.maps[i] = m
	}
	return b, nil
}

// Process replaces lightness or value and converts back to RGB.
func (b *RecolorBlend) Process(frame *tensor.Dense, index int) *tensor.Dense {
	c, h, w, err := imageops.FrameDims(frame)
	if err != nil || c != 3 || h != b.h || w != b.w {
		mismatch(b.logger, b.variant.String(), b.unit, index, logging.Shape("expected", 3, b.h, b.w), logging.Shape("got", c, h, w))
		return frame
	}
	i, ok := pick(b.batch, index, len(b.maps))
	if !ok {
		mismatch(b.logger, b.variant.String(), b.unit, index, logging.Int("reference_frames", len(b.maps)))
		return frame
	}
	target := b.maps[i]
	src := imageops.Float32s(frame)
	plane := h * w
	out := make([]float32, len(src))
	for p := 0; p < plane; p++ {
		px := colorful.Color{
			R: quantize(src[p]),
			G: quantize(src[plane+p]),
			B: quantize(src[2*plane+p]),
		}
		level := float64(target[p]) / 255
		var res colorful.Color
		switch b.variant {
		case RecolorIntensity:
			hue, sat, _ := px.Hsv()
			res = colorful.Hsv(hue, sat, level)
		default:
			_, la, lb := px.Lab()
			res = colorful.Lab(level, la, lb)
		}
		res = res.Clamped()
		out[p] = clip01(float32(res.R))
		out[plane+p] = clip01(float32(res.G))
		out[2*plane+p] = clip01(float32(res.B))
	}
	return tensor.New(tensor.WithShape(frame.Shape().Clone()...), tensor.WithBacking(out))
}

// quantize snaps a channel onto the 8-bit grid the map was taken from.
func quantize(v float32) float64 {
	return float64(imageops.ToByte(v)) / 255
}
