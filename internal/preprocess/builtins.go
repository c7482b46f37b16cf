package preprocess

import (
	"errors"
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"framectl/internal/imageops"
)

// Default returns a registry holding the built-in image preprocessors.
func Default() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}

// RegisterBuiltins installs the preprocessors that need no model weights.
func RegisterBuiltins(r *Registry) {
	r.Register("none", passthrough)
	r.Register("invert", invert)
	r.Register("shuffle", shuffle)
	r.Register("recolor_luminance", recolor(luminance))
	r.Register("recolor_intensity", recolor(intensity))
	r.Register("inpaint", passthrough)
	r.Register("inpaint_only", passthrough)
	r.Register("inpaint_only+lama", passthrough)
	r.Register("reference_only", passthrough)
	r.Register("reference_adain", passthrough)
	r.Register("reference_adain+attn", passthrough)

	r.Alias("invert (from white bg & black line)", "invert")
	r.Alias("inpaint_global_harmonious", "inpaint")
	r.Alias("recolor", "recolor_luminance")
}

// passthrough returns an independent copy of the frame, alpha included.
func passthrough(img image.Image, _ Params) (Result, error) {
	return Result{Image: imageops.Clone(img)}, nil
}

func invert(img image.Image, p Params) (Result, error) {
	out := imageops.ResizeShortSide(img, p.Resolution)
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255 - out.Pix[i]
		out.Pix[i+1] = 255 - out.Pix[i+1]
		out.Pix[i+2] = 255 - out.Pix[i+2]
	}
	return Result{Image: out}, nil
}

// shuffle permutes a grid of cells. ThresholdA sets the grid size (default 4).
func shuffle(img image.Image, p Params) (Result, error) {
	if p.Rand == nil {
		return Result{}, errors.New("shuffle: random source required")
	}
	src := imageops.ResizeShortSide(img, p.Resolution)
	grid := int(p.ThresholdA)
	if grid < 2 {
		grid = 4
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	cellW, cellH := w/grid, h/grid
	if cellW == 0 || cellH == 0 {
		return Result{Image: src}, nil
	}

	out := imageops.Clone(src)
	perm := p.Rand.Perm(grid * grid)
	for dst, from := range perm {
		dx, dy := (dst%grid)*cellW, (dst/grid)*cellH
		sx, sy := (from%grid)*cellW, (from/grid)*cellH
		for row := 0; row < cellH; row++ {
			d := out.PixOffset(dx, dy+row)
			s := src.PixOffset(sx, sy+row)
			copy(out.Pix[d:d+cellW*4], src.Pix[s:s+cellW*4])
		}
	}
	return Result{Image: out}, nil
}

type channelFunc func(c colorful.Color) float64

// luminance is the Lab L channel scaled to [0,1].
func luminance(c colorful.Color) float64 {
	l, _, _ := c.Lab()
	return l
}

// intensity is the HSV value channel.
func intensity(c colorful.Color) float64 {
	_, _, v := c.Hsv()
	return v
}

// recolor extracts one channel as a grayscale map. ThresholdA is a gamma
// correction (default 1).
func recolor(channel channelFunc) Func {
	return func(img image.Image, p Params) (Result, error) {
		out := imageops.ResizeShortSide(img, p.Resolution)
		gamma := p.ThresholdA
		if gamma <= 0 {
			gamma = 1
		}
		for i := 0; i < len(out.Pix); i += 4 {
			c := colorful.Color{
				R: float64(out.Pix[i]) / 255,
				G: float64(out.Pix[i+1]) / 255,
				B: float64(out.Pix[i+2]) / 255,
			}
			v := math.Pow(math.Min(math.Max(channel(c), 0), 1), gamma)
			gray := imageops.ToByte(float32(v))
			out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = gray, gray, gray, 255
		}
		return Result{Image: out}, nil
	}
}
