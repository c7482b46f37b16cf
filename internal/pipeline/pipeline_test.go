package pipeline_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/pdevine/tensor"
	"github.com/stretchr/testify/require"

	"framectl/internal/control"
	"framectl/internal/controlmodel"
	"framectl/internal/host"
	"framectl/internal/imageops"
	"framectl/internal/logging"
	"framectl/internal/pipeline"
	"framectl/internal/preprocess"
	"framectl/internal/services"
	"framectl/internal/testsupport"
)

type staticUnits []*control.Unit

func (s staticUnits) EnabledUnits(*host.Call) []*control.Unit { return s }

type fakeModel struct {
	name string
	arch string
	plus bool
}

func (m *fakeModel) Name() string         { return m.name }
func (m *fakeModel) Architecture() string { return m.arch }
func (m *fakeModel) IsPlus() bool         { return m.plus }

type loader struct {
	models map[string]control.Model
	loads  int
}

func (l *loader) LoadControlModel(_ context.Context, _ *host.Call, id string) (control.Model, error) {
	l.loads++
	m, ok := l.models[id]
	if !ok {
		return nil, errors.New("no such model")
	}
	return m, nil
}

func newLoader() *loader {
	return &loader{models: map[string]control.Model{
		"canny":   &fakeModel{name: "canny", arch: controlmodel.ArchControlNet},
		"ip":      &fakeModel{name: "ip", arch: controlmodel.ArchIPAdapter},
		"ip-plus": &fakeModel{name: "ip-plus", arch: controlmodel.ArchIPAdapter, plus: true},
		"mystery": &fakeModel{name: "mystery", arch: "unet_v9"},
	}}
}

type memInputs map[string]image.Image

func (m memInputs) ChooseInput(_ context.Context, _ *host.Call, unit *control.Unit, index int) (image.Image, control.ResizeMode, error) {
	img, ok := m[unit.Image]
	if !ok {
		return nil, unit.ResizeMode, &control.MissingInputError{Unit: index}
	}
	return img, unit.ResizeMode, nil
}

type fakeEncoder struct{ calls int }

func (e *fakeEncoder) EncodeLatent(_ context.Context, _ *host.Call, hint *tensor.Dense) (*tensor.Dense, error) {
	e.calls++
	return tensor.New(tensor.WithShape(1, 4, 2, 2), tensor.WithBacking(make([]float32, 16))), nil
}

func embedding(v float32) *tensor.Dense {
	return tensor.New(tensor.WithShape(1, 4), tensor.WithBacking([]float32{v, v, v, v}))
}

func registry() *preprocess.Registry {
	reg := preprocess.Default()
	reg.Register("clip_vision", func(image.Image, preprocess.Params) (preprocess.Result, error) {
		return preprocess.Result{Embedding: &preprocess.Embedding{
			ImageEmbeds:     embedding(1),
			LastHiddenState: embedding(2),
			HiddenStates:    []*tensor.Dense{embedding(3), embedding(4), embedding(5)},
		}}, nil
	})
	reg.Register("revision_clipvision", func(image.Image, preprocess.Params) (preprocess.Result, error) {
		return preprocess.Result{Embedding: &preprocess.Embedding{ImageEmbeds: embedding(6)}}, nil
	})
	reg.Register("ip-adapter_face_id", func(image.Image, preprocess.Params) (preprocess.Result, error) {
		return preprocess.Result{Embedding: &preprocess.Embedding{Raw: []*tensor.Dense{embedding(7)}}}, nil
	})
	return reg
}

func inputs() memInputs {
	return memInputs{
		"a.png":    testsupport.GradientImage(16, 16),
		"b.png":    testsupport.GradientImage(16, 16),
		"c.png":    testsupport.GradientImage(16, 16),
		"mask.png": testsupport.SolidImage(16, 16, color.NRGBA{R: 200, G: 10, B: 10, A: 128}),
	}
}

type fixture struct {
	loader  *loader
	encoder *fakeEncoder
	proc    *pipeline.Processor
}

func newFixture(t *testing.T, units ...*control.Unit) *fixture {
	t.Helper()
	l := newLoader()
	cache, err := controlmodel.NewCache(l, 4, logging.NewNop())
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	enc := &fakeEncoder{}
	svc := host.Services{Units: staticUnits(units), Inputs: inputs(), Encoder: enc}
	return &fixture{loader: l, encoder: enc, proc: pipeline.New(svc, registry(), cache, 7, logging.NewNop())}
}

func newCall() *host.Call {
	return &host.Call{Seed: 42, Subseed: 7, Width: 16, Height: 16, BatchSize: 3, CheckpointHash: "sd15"}
}

func batchUnit(module, model string, frames ...string) *control.Unit {
	u := &control.Unit{Enabled: true, Module: module, Model: model, InputMode: control.InputBatch, Weight: 1}
	for _, f := range frames {
		u.Frames = append(u.Frames, control.FrameRef{Image: f})
	}
	return u
}

func shape(t *tensor.Dense) []int { return []int(t.Shape()) }

func TestProcessStacksWithGuidanceDuplication(t *testing.T) {
	unit := batchUnit("none", "canny", "a.png", "b.png", "c.png")
	unit.ControlMode = control.ModePrompt
	unit.GuidanceStart, unit.GuidanceEnd = 0.1, 0.8
	f := newFixture(t, unit)

	plan, err := f.proc.Process(context.Background(), newCall())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	require.Len(t, plan.Descriptors, 1)
	desc := plan.Descriptors[0]
	require.Equal(t, control.ModelControlNet, desc.ModelType)
	require.Equal(t, []int{6, 3, 16, 16}, shape(desc.Hint.Tensor))
	require.Nil(t, desc.HRHint)
	require.Equal(t, 3, desc.Frames)
	require.True(t, desc.SoftInjection)
	require.False(t, desc.CFGInjection)
	require.InDelta(t, 0.1, desc.GuidanceStart, 1e-9)
	require.InDelta(t, 0.8, desc.GuidanceEnd, 1e-9)
	require.Len(t, plan.DetectedMaps, 3)
	require.True(t, plan.Seeded)
	if unit.Image != "" {
		t.Fatalf("processing must not leave frame paths on the unit, got %q", unit.Image)
	}
}

func TestProcessSingleFrameNotDuplicated(t *testing.T) {
	unit := &control.Unit{Enabled: true, Module: "invert", Model: "canny", Image: "a.png", Weight: 0.5}
	f := newFixture(t, unit)
	plan, err := f.proc.Process(context.Background(), newCall())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	require.Equal(t, []int{1, 3, 16, 16}, shape(plan.Descriptors[0].Hint.Tensor))
}

func TestProcessHighResProducesIndependentHint(t *testing.T) {
	unit := batchUnit("none", "canny", "a.png", "b.png")
	f := newFixture(t, unit)
	call := newCall()
	call.HighRes, call.HRWidth, call.HRHeight = true, 32, 24

	plan, err := f.proc.Process(context.Background(), call)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	desc := plan.Descriptors[0]
	require.NotNil(t, desc.HRHint)
	require.Equal(t, []int{4, 3, 24, 32}, shape(desc.HRHint.Tensor))
	require.Equal(t, []int{4, 3, 16, 16}, shape(desc.Hint.Tensor))
}

func TestProcessIsDeterministic(t *testing.T) {
	run := func() []float32 {
		unit := batchUnit("shuffle", "canny", "a.png", "b.png")
		f := newFixture(t, unit)
		plan, err := f.proc.Process(context.Background(), newCall())
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		return append([]float32(nil), imageops.Float32s(plan.Descriptors[0].Hint.Tensor)...)
	}
	require.Equal(t, run(), run())
}

func TestProcessRandomSeedFallsBackToGeneratedSeed(t *testing.T) {
	unit := &control.Unit{Enabled: true, Module: "shuffle", Model: "canny", Image: "a.png"}
	call := newCall()
	call.Seed, call.Subseed, call.AllSeeds = -1, -1, []int64{1234}

	plan, err := newFixture(t, unit).proc.Process(context.Background(), call)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	require.True(t, plan.Seeded)
	require.Equal(t, uint32(2468), plan.Seed)

	call.AllSeeds = nil
	plan, err = newFixture(t, unit).proc.Process(context.Background(), call)
	if err != nil {
		t.Fatalf("seed failure must not abort: %v", err)
	}
	require.False(t, plan.Seeded)
	require.Len(t, plan.Descriptors, 1)
}

func TestProcessUnresolvableModelType(t *testing.T) {
	unit := &control.Unit{Enabled: true, Module: "none", Model: "mystery", Image: "a.png"}
	_, err := newFixture(t, unit).proc.Process(context.Background(), newCall())
	var typeErr *control.ModelTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("expected model type error, got %v", err)
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestProcessUnknownPreprocessorFailsBeforeModelLoad(t *testing.T) {
	unit := &control.Unit{Enabled: true, Module: "does_not_exist", Model: "canny", Image: "a.png"}
	f := newFixture(t, unit)
	if _, err := f.proc.Process(context.Background(), newCall()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	require.Zero(t, f.loader.loads)
}

func TestProcessEmbeddingHasNoHighResHint(t *testing.T) {
	unit := &control.Unit{Enabled: true, Module: "revision_clipvision", Image: "a.png"}
	f := newFixture(t, unit)
	call := newCall()
	call.HighRes, call.HRWidth, call.HRHeight = true, 32, 32

	plan, err := f.proc.Process(context.Background(), call)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	desc := plan.Descriptors[0]
	require.Equal(t, control.ModelReVision, desc.ModelType)
	require.Nil(t, desc.Model)
	require.Nil(t, desc.HRHint)
	require.Equal(t, []int{1, 4}, shape(desc.Hint.Tensor))
	require.Zero(t, f.loader.loads, "model-free units must not load models")
}

func TestProcessIPAdapterPlusWrapsHiddenStates(t *testing.T) {
	unit := batchUnit("clip_vision", "ip-plus", "a.png", "b.png")
	plan, err := newFixture(t, unit).proc.Process(context.Background(), newCall())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	hint := plan.Descriptors[0].Hint
	require.True(t, hint.IsList())
	require.Len(t, hint.List, 2)
	require.Nil(t, hint.List[1])
	require.Equal(t, []int{4, 4}, shape(hint.List[0]))
	// penultimate hidden state
	require.Equal(t, float32(4), imageops.Float32s(hint.List[0])[0])
}

func TestProcessIPAdapterUsesImageEmbeds(t *testing.T) {
	unit := &control.Unit{Enabled: true, Module: "clip_vision", Model: "ip", Image: "a.png"}
	plan, err := newFixture(t, unit).proc.Process(context.Background(), newCall())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	hint := plan.Descriptors[0].Hint
	require.False(t, hint.IsList())
	require.Equal(t, float32(1), imageops.Float32s(hint.Tensor)[0])
}

func TestProcessFaceIDYieldsTensorList(t *testing.T) {
	unit := &control.Unit{Enabled: true, Module: "ip-adapter_face_id", Model: "ip", Image: "a.png"}
	plan, err := newFixture(t, unit).proc.Process(context.Background(), newCall())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	hint := plan.Descriptors[0].Hint
	require.Len(t, hint.List, 1)
	require.Equal(t, float32(7), imageops.Float32s(hint.List[0])[0])
}

func TestProcessIPAdapterRejectsImageResult(t *testing.T) {
	unit := &control.Unit{Enabled: true, Module: "none", Model: "ip", Image: "a.png"}
	var typeErr *control.ModelTypeError
	if _, err := newFixture(t, unit).proc.Process(context.Background(), newCall()); !errors.As(err, &typeErr) {
		t.Fatalf("expected model type error, got %v", err)
	}
}

func TestProcessInpaintOnlyBuildsBlend(t *testing.T) {
	unit := &control.Unit{Enabled: true, Module: "inpaint_only", Model: "canny", Image: "mask.png"}
	plan, err := newFixture(t, unit).proc.Process(context.Background(), newCall())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	require.Equal(t, []int{1, 4, 16, 16}, shape(plan.Descriptors[0].Hint.Tensor))
	require.Len(t, plan.PostProcessors, 1)
}

func TestProcessInpaintOnlyDowngradedWithHostMask(t *testing.T) {
	unit := &control.Unit{Enabled: true, Module: "inpaint_only", Model: "canny", Image: "mask.png"}
	call := newCall()
	call.Img2Img = true
	call.ImageMask = testsupport.SolidImage(16, 16, color.NRGBA{A: 255})

	plan, err := newFixture(t, unit).proc.Process(context.Background(), call)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	require.Equal(t, "inpaint", plan.Descriptors[0].Preprocessor.Name)
	require.Empty(t, plan.PostProcessors)
	require.Equal(t, "inpaint_only", unit.Module, "the configured unit keeps its module")
}

func TestProcessLamaEncodesNoiseModifier(t *testing.T) {
	unit := &control.Unit{Enabled: true, Module: "inpaint_only+lama", Model: "canny", Image: "mask.png"}
	f := newFixture(t, unit)
	plan, err := f.proc.Process(context.Background(), newCall())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	require.Equal(t, 1, f.encoder.calls)
	require.NotNil(t, plan.NoiseModifier)
	require.Same(t, plan.NoiseModifier, plan.Descriptors[0].HintLatent)
	require.Len(t, plan.PostProcessors, 1)
}

func TestProcessMultipleRecolorUnits(t *testing.T) {
	lum := &control.Unit{Enabled: true, Module: "recolor_luminance", Model: "canny", Image: "a.png"}
	inten := &control.Unit{Enabled: true, Module: "recolor_intensity", Model: "canny", Image: "b.png"}
	plan, err := newFixture(t, lum, inten).proc.Process(context.Background(), newCall())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	require.Len(t, plan.PostProcessors, 2)
	if plan.PostProcessors[0] == plan.PostProcessors[1] {
		t.Fatal("each recolor unit needs its own processor")
	}
}

func TestProcessCheckpointChangeReloadsModels(t *testing.T) {
	unit := &control.Unit{Enabled: true, Module: "none", Model: "canny", Image: "a.png"}
	f := newFixture(t, unit)
	call := newCall()
	for range 2 {
		if _, err := f.proc.Process(context.Background(), call); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	require.Equal(t, 1, f.loader.loads, "same checkpoint reuses the cached model")

	call.CheckpointHash = "sdxl"
	if _, err := f.proc.Process(context.Background(), call); err != nil {
		t.Fatalf("Process: %v", err)
	}
	require.Equal(t, 2, f.loader.loads)
}

func TestProcessNoUnits(t *testing.T) {
	plan, err := newFixture(t).proc.Process(context.Background(), newCall())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	require.True(t, plan.Empty())
}
