package control

import "github.com/pdevine/tensor"

// Model is a loaded control network as returned by the host.
type Model interface {
	Name() string
	// Architecture is the internal class tag used for ModelType classification.
	Architecture() string
}

// Conditioning carries a stacked conditioning batch. IP-Adapter variants use
// List, where a nil entry is meaningful.
type Conditioning struct {
	Tensor *tensor.Dense
	List   []*tensor.Dense
}

// BatchSize returns the leading dimension of the primary tensor.
func (c Conditioning) BatchSize() int {
	t := c.Tensor
	if t == nil && len(c.List) > 0 {
		t = c.List[0]
	}
	if t == nil {
		return 0
	}
	shape := t.Shape()
	if len(shape) == 0 {
		return 0
	}
	return shape[0]
}

// IsList reports whether the conditioning is a tensor list.
func (c Conditioning) IsList() bool { return c.List != nil }

// PreprocessorInfo records how the hint was produced.
type PreprocessorInfo struct {
	Name       string
	Resolution int
	ThresholdA float64
	ThresholdB float64
}

// ForwardDescriptor is the model-ready form of one unit for a single call.
type ForwardDescriptor struct {
	UnitIndex    int
	Model        Model
	ModelType    ModelType
	Preprocessor PreprocessorInfo

	Hint Conditioning
	// HRHint is nil unless the high-res pass is enabled and the preprocessor
	// produced an image.
	HRHint *Conditioning

	Weight        float64
	GuidanceStart float64
	GuidanceEnd   float64

	SoftInjection        bool
	CFGInjection         bool
	GlobalAveragePooling bool

	// HintLatent is the encoded hint used by lama-style inpainting.
	HintLatent *tensor.Dense
	// Frames is the number of source frames before guidance duplication.
	Frames int
}
