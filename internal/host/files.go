package host

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/webp"

	"framectl/internal/control"
	"framectl/internal/services"
)

// FileInputs loads unit inputs from disk. When a mask path is set, the mask's
// luminance is written into the alpha channel so inpainting preprocessors see
// one RGBA frame.
type FileInputs struct{}

func (FileInputs) ChooseInput(_ context.Context, _ *Call, unit *control.Unit, index int) (image.Image, control.ResizeMode, error) {
	if unit.Image == "" {
		return nil, unit.ResizeMode, &control.MissingInputError{Unit: index}
	}
	img, err := LoadImage(unit.Image)
	if err != nil {
		return nil, unit.ResizeMode, err
	}
	if unit.Mask == "" {
		return img, unit.ResizeMode, nil
	}
	mask, err := LoadImage(unit.Mask)
	if err != nil {
		return nil, unit.ResizeMode, err
	}
	return MergeMask(img, mask), unit.ResizeMode, nil
}

// LoadImage decodes a PNG, JPEG or WebP file.
func LoadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "inputs", "open image", path, err)
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "inputs", "decode image", path, err)
	}
	return img, nil
}

// MergeMask copies img into an NRGBA canvas whose alpha is the mask luminance.
// The mask is sampled at the image's coordinates; pixels outside it are unmasked.
func MergeMask(img, mask image.Image) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)
	mb := mask.Bounds()
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			var alpha uint8
			if x < mb.Dx() && y < mb.Dy() {
				alpha = color.GrayModel.Convert(mask.At(mb.Min.X+x, mb.Min.Y+y)).(color.Gray).Y
			}
			i := out.PixOffset(x, y)
			out.Pix[i+3] = alpha
		}
	}
	return out
}
