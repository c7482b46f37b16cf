package control

import (
	"fmt"

	"framectl/internal/services"
)

// MissingInputError reports a batch unit with no frames and no global source.
type MissingInputError struct {
	Unit int
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("control unit %d: no input images found", e.Unit)
}

func (e *MissingInputError) Unwrap() error { return services.ErrConfiguration }

// MaskCountMismatchError reports an inpainting batch whose image and mask counts differ.
type MaskCountMismatchError struct {
	Unit   int
	Images int
	Masks  int
}

func (e *MaskCountMismatchError) Error() string {
	return fmt.Sprintf("control unit %d: inpainting image/mask count mismatch (%d images, %d masks)", e.Unit, e.Images, e.Masks)
}

func (e *MaskCountMismatchError) Unwrap() error { return services.ErrConfiguration }

// ModelTypeError reports a preprocessor/model combination with no model type.
type ModelTypeError struct {
	Unit   int
	Module string
	Model  string
	Reason string
}

func (e *ModelTypeError) Error() string {
	return fmt.Sprintf("control unit %d: unable to determine model type for module %q model %q: %s", e.Unit, e.Module, e.Model, e.Reason)
}

func (e *ModelTypeError) Unwrap() error { return services.ErrConfiguration }
