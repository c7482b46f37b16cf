package imageops

import (
	"image"
	"math"

	"github.com/pdevine/tensor"

	"framectl/internal/control"
)

// DetectMapper fits detected maps onto the canvas. KeepAlpha decides per
// module whether the alpha channel (an inpainting mask) travels with the map.
type DetectMapper struct {
	KeepAlpha func(module string) bool
}

// DetectMap returns the [1,C,H,W] conditioning tensor and the fitted image.
func (d DetectMapper) DetectMap(img image.Image, module string, mode control.ResizeMode, h, w int) (*tensor.Dense, image.Image) {
	keep := d.KeepAlpha != nil && d.KeepAlpha(module)
	fitted := Fit(img, mode, h, w)
	return ToTensor(fitted, keep), fitted
}

// Fit resizes img onto an h x w canvas using the given resize mode. Outer-fit
// padding is black with full alpha, so padded regions count as masked.
func Fit(img image.Image, mode control.ResizeMode, h, w int) *image.NRGBA {
	b := img.Bounds()
	rawH, rawW := float64(b.Dy()), float64(b.Dx())
	if rawH == 0 || rawW == 0 {
		return image.NewNRGBA(image.Rect(0, 0, w, h))
	}
	k0 := float64(h) / rawH
	k1 := float64(w) / rawW

	switch mode {
	case control.ResizeInnerFit:
		k := math.Max(k0, k1)
		sw := max(int(math.Ceil(rawW*k)), w)
		sh := max(int(math.Ceil(rawH*k)), h)
		scaled := Resize(img, sw, sh)
		offX, offY := (sw-w)/2, (sh-h)/2
		out := image.NewNRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			src := scaled.PixOffset(offX, offY+y)
			copy(out.Pix[y*out.Stride:y*out.Stride+w*4], scaled.Pix[src:src+w*4])
		}
		return out
	case control.ResizeOuterFit:
		k := math.Min(k0, k1)
		sw := min(max(int(math.Round(rawW*k)), 1), w)
		sh := min(max(int(math.Round(rawH*k)), 1), h)
		scaled := Resize(img, sw, sh)
		out := image.NewNRGBA(image.Rect(0, 0, w, h))
		for i := 3; i < len(out.Pix); i += 4 {
			out.Pix[i] = 0xff
		}
		offX, offY := (w-sw)/2, (h-sh)/2
		for y := 0; y < sh; y++ {
			dst := out.PixOffset(offX, offY+y)
			copy(out.Pix[dst:dst+sw*4], scaled.Pix[y*scaled.Stride:y*scaled.Stride+sw*4])
		}
		return out
	default:
		return Resize(img, w, h)
	}
}

// PixelPerfect computes the preprocessor resolution that maps the raw frame
// exactly onto the target canvas under the given resize mode.
func PixelPerfect(raw image.Rectangle, targetH, targetW int, mode control.ResizeMode) int {
	rawH, rawW := float64(raw.Dy()), float64(raw.Dx())
	if rawH == 0 || rawW == 0 {
		return 0
	}
	k0 := float64(targetH) / rawH
	k1 := float64(targetW) / rawW
	var estimation float64
	if mode == control.ResizeOuterFit {
		estimation = math.Min(k0, k1) * math.Min(rawH, rawW)
	} else {
		estimation = math.Max(k0, k1) * math.Min(rawH, rawW)
	}
	return int(math.Round(estimation))
}
