package host

import (
	"context"
	"image"

	"github.com/pdevine/tensor"

	"framectl/internal/control"
)

// UnitSource lists the units enabled for a call, in declaration order.
type UnitSource interface {
	EnabledUnits(call *Call) []*control.Unit
}

// ModelLoader loads a control model by identifier.
type ModelLoader interface {
	LoadControlModel(ctx context.Context, call *Call, id string) (control.Model, error)
}

// InputChooser produces the input frame for a unit, using unit.Image and
// unit.Mask, along with the resize mode to apply.
type InputChooser interface {
	ChooseInput(ctx context.Context, call *Call, unit *control.Unit, index int) (image.Image, control.ResizeMode, error)
}

// DetectMapper fits a detected map onto an h x w canvas. It returns the
// [1,C,H,W] conditioning tensor and the fitted image for display.
type DetectMapper interface {
	DetectMap(img image.Image, module string, mode control.ResizeMode, h, w int) (*tensor.Dense, image.Image)
}

// Dimensions is the canvas geometry of a call.
type Dimensions struct {
	Height   int
	Width    int
	HRHeight int
	HRWidth  int
}

// TargetDimensions reports the canvas geometry for a call.
type TargetDimensions interface {
	TargetDimensions(call *Call) Dimensions
}

// MaskCropper crops an input frame against the host inpainting mask.
type MaskCropper interface {
	CropWithMask(call *Call, unit *control.Unit, img image.Image, mode control.ResizeMode) image.Image
}

// LatentEncoder encodes a conditioning batch into the latent space.
type LatentEncoder interface {
	EncodeLatent(ctx context.Context, call *Call, hint *tensor.Dense) (*tensor.Dense, error)
}

// ScheduleHolder exposes the model's noise schedule.
type ScheduleHolder interface {
	AlphasCumprod() []float64
	SetAlphasCumprod(schedule []float64)
}

// Services bundles the control extension services. Cropper and Encoder are optional.
type Services struct {
	Units     UnitSource
	Models    ModelLoader
	Inputs    InputChooser
	DetectMap DetectMapper
	Targets   TargetDimensions
	Cropper   MaskCropper
	Encoder   LatentEncoder
}

// CallDimensions reads the canvas geometry straight from the call.
type CallDimensions struct{}

func (CallDimensions) TargetDimensions(call *Call) Dimensions {
	dims := Dimensions{Height: call.Height, Width: call.Width, HRHeight: call.Height, HRWidth: call.Width}
	if call.HighRes && call.HRHeight > 0 && call.HRWidth > 0 {
		dims.HRHeight = call.HRHeight
		dims.HRWidth = call.HRWidth
	}
	return dims
}
