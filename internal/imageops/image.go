package imageops

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Clone copies img into a fresh, zero-origin NRGBA buffer. Preprocessors work
// on clones so host-owned images are never mutated.
func Clone(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < bounds.Dy(); y++ {
			srcRow := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(out.Pix[y*out.Stride:y*out.Stride+bounds.Dx()*4], src.Pix[srcRow:srcRow+bounds.Dx()*4])
		}
		return out
	}
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			out.SetNRGBA(x, y, color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA))
		}
	}
	return out
}

// Resize scales img to w x h. Color and alpha are scaled independently so
// fully transparent pixels keep their color, which inpainting frames rely on.
func Resize(img image.Image, w, h int) *image.NRGBA {
	src := Clone(img)
	sb := src.Bounds()
	if sb.Dx() == w && sb.Dy() == h {
		return src
	}

	opaque := image.NewRGBA(sb)
	alpha := image.NewGray(sb)
	for i, j := 0, 0; i < len(src.Pix); i, j = i+4, j+1 {
		copy(opaque.Pix[i:i+3], src.Pix[i:i+3])
		opaque.Pix[i+3] = 0xff
		alpha.Pix[j] = src.Pix[i+3]
	}

	rect := image.Rect(0, 0, w, h)
	scaledColor := image.NewRGBA(rect)
	scaledAlpha := image.NewGray(rect)
	draw.CatmullRom.Scale(scaledColor, rect, opaque, sb, draw.Src, nil)
	draw.CatmullRom.Scale(scaledAlpha, rect, alpha, sb, draw.Src, nil)

	out := image.NewNRGBA(rect)
	for i, j := 0, 0; i < len(out.Pix); i, j = i+4, j+1 {
		copy(out.Pix[i:i+3], scaledColor.Pix[i:i+3])
		out.Pix[i+3] = scaledAlpha.Pix[j]
	}
	return out
}

// ResizeShortSide scales img so its shorter side equals side, keeping aspect.
func ResizeShortSide(img image.Image, side int) *image.NRGBA {
	b := img.Bounds()
	if side <= 0 || b.Dx() == 0 || b.Dy() == 0 {
		return Clone(img)
	}
	short := min(b.Dx(), b.Dy())
	k := float64(side) / float64(short)
	return Resize(img, roundPositive(float64(b.Dx())*k), roundPositive(float64(b.Dy())*k))
}

func roundPositive(v float64) int {
	n := int(v + 0.5)
	if n < 1 {
		return 1
	}
	return n
}
