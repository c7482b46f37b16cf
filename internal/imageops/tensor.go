package imageops

import (
	"errors"
	"fmt"
	"image"

	"github.com/pdevine/tensor"
)

// ToTensor converts img to a [1,C,H,W] tensor in [0,1]. C is 4 when keepAlpha
// is set, otherwise 3.
func ToTensor(img image.Image, keepAlpha bool) *tensor.Dense {
	src := Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	channels := 3
	if keepAlpha {
		channels = 4
	}
	plane := w * h
	data := make([]float32, channels*plane)
	for p := 0; p < plane; p++ {
		for c := 0; c < channels; c++ {
			data[c*plane+p] = float32(src.Pix[p*4+c]) / 255
		}
	}
	return tensor.New(tensor.WithShape(1, channels, h, w), tensor.WithBacking(data))
}

// FrameTensor converts img to a [C,H,W] generated-frame tensor.
func FrameTensor(img image.Image) *tensor.Dense {
	t := ToTensor(img, false)
	shape := t.Shape()
	return tensor.New(tensor.WithShape(shape[1], shape[2], shape[3]), tensor.WithBacking(Float32s(t)))
}

// Float32s returns the backing data of t.
func Float32s(t *tensor.Dense) []float32 {
	if t == nil {
		return nil
	}
	data, _ := t.Data().([]float32)
	return data
}

// FrameDims returns (C,H,W) for a [C,H,W] or [1,C,H,W] tensor.
func FrameDims(t *tensor.Dense) (c, h, w int, err error) {
	if t == nil {
		return 0, 0, 0, errors.New("nil tensor")
	}
	shape := t.Shape()
	switch {
	case len(shape) == 3:
		return shape[0], shape[1], shape[2], nil
	case len(shape) == 4 && shape[0] == 1:
		return shape[1], shape[2], shape[3], nil
	default:
		return 0, 0, 0, fmt.Errorf("unexpected frame shape %v", []int(shape))
	}
}

// ToImage renders a [C,H,W] or [1,C,H,W] tensor with 1, 3 or 4 channels.
func ToImage(t *tensor.Dense) (*image.NRGBA, error) {
	c, h, w, err := FrameDims(t)
	if err != nil {
		return nil, err
	}
	if c != 1 && c != 3 && c != 4 {
		return nil, fmt.Errorf("unsupported channel count %d", c)
	}
	data := Float32s(t)
	plane := h * w
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for p := 0; p < plane; p++ {
		px := out.Pix[p*4 : p*4+4]
		px[3] = 0xff
		for ch := 0; ch < 3; ch++ {
			src := ch
			if c == 1 {
				src = 0
			}
			px[ch] = ToByte(data[src*plane+p])
		}
		if c == 4 {
			px[3] = ToByte(data[3*plane+p])
		}
	}
	return out, nil
}

// ToByte maps [0,1] to 0..255 with clipping and rounding.
func ToByte(v float32) uint8 {
	scaled := v * 255
	switch {
	case scaled <= 0:
		return 0
	case scaled >= 255:
		return 255
	default:
		return uint8(scaled + 0.5)
	}
}

// Stack concatenates [1,C,H,W] parts along the batch axis. When the result
// holds more than one frame it is concatenated with itself once more so the
// unconditional and conditional guidance branches each see every frame.
func Stack(parts []*tensor.Dense) (*tensor.Dense, error) {
	if len(parts) == 0 {
		return nil, errors.New("stack: no tensors")
	}
	stacked, err := concat(parts)
	if err != nil {
		return nil, err
	}
	if stacked.Shape()[0] > 1 {
		return concat([]*tensor.Dense{stacked, stacked})
	}
	return stacked, nil
}

func concat(parts []*tensor.Dense) (*tensor.Dense, error) {
	if len(parts) == 1 {
		clone, ok := parts[0].Clone().(*tensor.Dense)
		if !ok {
			return nil, errors.New("stack: clone did not yield a dense tensor")
		}
		return clone, nil
	}
	others := make([]tensor.Tensor, 0, len(parts)-1)
	for _, p := range parts[1:] {
		others = append(others, p)
	}
	out, err := tensor.Concat(0, parts[0], others...)
	if err != nil {
		return nil, fmt.Errorf("stack: %w", err)
	}
	dense, ok := tensor.Materialize(out).(*tensor.Dense)
	if !ok {
		return nil, errors.New("stack: concat did not yield a dense tensor")
	}
	return dense, nil
}

// FrameAt returns a copy of entry i of an [N,C,H,W] stack as (data, C, H, W).
func FrameAt(stack *tensor.Dense, i int) ([]float32, int, int, int, error) {
	shape := stack.Shape()
	if len(shape) != 4 {
		return nil, 0, 0, 0, fmt.Errorf("unexpected stack shape %v", []int(shape))
	}
	if i < 0 || i >= shape[0] {
		return nil, 0, 0, 0, fmt.Errorf("frame %d out of range [0,%d)", i, shape[0])
	}
	c, h, w := shape[1], shape[2], shape[3]
	size := c * h * w
	out := make([]float32, size)
	copy(out, Float32s(stack)[i*size:(i+1)*size])
	return out, c, h, w, nil
}
