package pipeline

import (
	"github.com/pdevine/tensor"

	"framectl/internal/control"
	"framectl/internal/imageops"
	"framectl/internal/preprocess"
)

// conditioningShape holds the per-unit rules for turning preprocessor
// results into a conditioning batch.
type conditioningShape struct {
	unit   int
	module string
	model  string
	mtype  control.ModelType
	plus   bool
	faceID bool
}

func (s conditioningShape) acceptsImage() bool {
	switch s.mtype {
	case control.ModelT2IStyleAdapter, control.ModelReVision, control.ModelIPAdapter:
		return false
	default:
		return true
	}
}

// extract picks the embedding field the model type consumes.
func (s conditioningShape) extract(e *preprocess.Embedding) (*tensor.Dense, error) {
	if e == nil {
		return nil, s.fail("preprocessor produced neither an image nor an embedding")
	}
	var (
		t     *tensor.Dense
		field string
	)
	switch s.mtype {
	case control.ModelT2IStyleAdapter:
		t, field = e.LastHiddenState, "last_hidden_state"
	case control.ModelReVision:
		t, field = e.ImageEmbeds, "image_embeds"
	case control.ModelIPAdapter:
		switch {
		case s.plus:
			field = "hidden_states"
			if n := len(e.HiddenStates); n >= 2 {
				t = e.HiddenStates[n-2]
			}
		case s.faceID:
			field = "raw"
			if len(e.Raw) > 0 {
				t = e.Raw[0]
			}
		default:
			t, field = e.ImageEmbeds, "image_embeds"
		}
	default:
		return nil, s.fail(s.mtype.String() + " needs an image, preprocessor produced an embedding")
	}
	if t == nil {
		return nil, s.fail("preprocessor result has no " + field)
	}
	return t, nil
}

// stack concatenates per-frame parts with guidance duplication and wraps
// IP-Adapter variants in their list forms.
func (s conditioningShape) stack(parts []*tensor.Dense) (control.Conditioning, error) {
	stacked, err := imageops.Stack(parts)
	if err != nil {
		return control.Conditioning{}, err
	}
	switch {
	case s.mtype == control.ModelIPAdapter && s.plus:
		return control.Conditioning{List: []*tensor.Dense{stacked, nil}}, nil
	case s.faceID:
		return control.Conditioning{List: []*tensor.Dense{stacked}}, nil
	default:
		return control.Conditioning{Tensor: stacked}, nil
	}
}

func (s conditioningShape) fail(reason string) error {
	return &control.ModelTypeError{Unit: s.unit, Module: s.module, Model: s.model, Reason: reason}
}
