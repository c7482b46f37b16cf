package host

import (
	"image"

	"github.com/pdevine/tensor"

	"framectl/internal/control"
)

// Call is one generation invocation as seen by the wrappers.
type Call struct {
	ID string

	Seed     int64
	Subseed  int64
	AllSeeds []int64

	Width  int
	Height int
	// HighRes enables the second, higher-resolution pass (txt2img only).
	HighRes  bool
	HRWidth  int
	HRHeight int

	BatchSize int
	Img2Img   bool
	// InitImages counts img2img init images.
	InitImages int
	// ImageMask is the host-level inpainting mask, if any.
	ImageMask image.Image
	// BatchExpansion marks img2img batch mode where init images become frames.
	BatchExpansion bool

	CheckpointHash string
	Video          control.VideoParams

	// NoiseModifier is set by lama-style inpainting units for the sampler.
	NoiseModifier *tensor.Dense
}
