package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math/rand/v2"

	"github.com/pdevine/tensor"

	"framectl/internal/control"
	"framectl/internal/controlmodel"
	"framectl/internal/host"
	"framectl/internal/imageops"
	"framectl/internal/logging"
	"framectl/internal/postprocess"
	"framectl/internal/preprocess"
	"framectl/internal/services"
)

const stage = "pipeline"

// DetectedMap is a fitted control map kept for display.
type DetectedMap struct {
	Unit   int
	Module string
	Image  image.Image
}

// Plan is everything one generation call needs from the enabled units.
type Plan struct {
	Descriptors    []*control.ForwardDescriptor
	PostProcessors postprocess.Chain
	DetectedMaps   []DetectedMap
	// NoiseModifier is the encoded hint of a lama inpainting unit, if any.
	NoiseModifier *tensor.Dense
	LowVRAM       bool
	Seed          uint32
	Seeded        bool
}

// Empty reports whether no unit produced a descriptor.
func (p *Plan) Empty() bool { return p == nil || len(p.Descriptors) == 0 }

// Processor turns enabled units into a Plan.
type Processor struct {
	services  host.Services
	registry  *preprocess.Registry
	models    *controlmodel.Cache
	blurSigma int
	logger    *slog.Logger
}

// New builds a processor. Missing optional services fall back to the file
// input chooser, the built-in detect mapper and the call's own dimensions.
func New(svc host.Services, registry *preprocess.Registry, models *controlmodel.Cache, blurSigma int, logger *slog.Logger) *Processor {
	if registry == nil {
		registry = preprocess.Default()
	}
	if svc.Inputs == nil {
		svc.Inputs = host.FileInputs{}
	}
	if svc.Targets == nil {
		svc.Targets = host.CallDimensions{}
	}
	if svc.DetectMap == nil {
		svc.DetectMap = imageops.DetectMapper{KeepAlpha: func(module string) bool {
			return registry.Family(module).PairsMasks()
		}}
	}
	if blurSigma <= 0 {
		blurSigma = 7
	}
	return &Processor{
		services:  svc,
		registry:  registry,
		models:    models,
		blurSigma: blurSigma,
		logger:    logging.NewComponentLogger(logger, stage),
	}
}

// Process runs every enabled unit in declaration order.
func (p *Processor) Process(ctx context.Context, call *host.Call) (*Plan, error) {
	ctx = services.WithStage(ctx, stage)
	logger := logging.WithContext(ctx, p.logger)

	plan := &Plan{}
	if p.services.Units == nil {
		return plan, nil
	}
	units := p.services.Units.EnabledUnits(call)
	if len(units) == 0 {
		return plan, nil
	}

	if p.models != nil {
		p.models.Sync(call.CheckpointHash)
	}

	modules := make([]string, len(units))
	for i, unit := range units {
		modules[i] = p.registry.Basename(unit.Module)
	}
	p.registry.UnloadUnused(modules)

	seed, err := preprocess.DeriveSeed(call.Seed, call.Subseed, call.AllSeeds)
	if err != nil {
		logging.WarnWithContext(logger, "preprocessor seed unavailable, using unseeded randomness", "seed_derivation_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stochastic preprocessors are not reproducible for this call"),
		)
	} else {
		plan.Seed = seed
		plan.Seeded = true
		logger.Debug("preprocessor seed derived", logging.Int("seed", int(seed)))
	}

	for idx, unit := range units {
		rng := preprocess.Unseeded()
		if plan.Seeded {
			rng = preprocess.NewRand(seed)
		}
		if err := p.processUnit(services.WithUnitIndex(ctx, idx), call, idx, unit, modules[idx], rng, plan); err != nil {
			return nil, err
		}
		plan.LowVRAM = plan.LowVRAM || unit.LowVRAM
	}

	logger.Info("control units processed",
		logging.Int("units", len(plan.Descriptors)),
		logging.Int("post_processors", len(plan.PostProcessors)),
		logging.Bool("seeded", plan.Seeded),
	)
	return plan, nil
}

func (p *Processor) processUnit(ctx context.Context, call *host.Call, idx int, unit *control.Unit, module string, rng *rand.Rand, plan *Plan) error {
	logger := logging.WithContext(ctx, p.logger)
	u := *unit
	u.Normalize()

	family := p.registry.Family(module)
	if family == preprocess.FamilyInpaintOnly && module == "inpaint_only" && call.Img2Img && call.ImageMask != nil {
		logging.WarnWithContext(logger, "host inpainting and control inpainting both enabled, using plain inpaint", "inpaint_duplicated",
			logging.String(logging.FieldImpact, "inpaint-only blending disabled for this unit"),
		)
		module = "inpaint"
		family = p.registry.Family(module)
	}
	u.Module = module

	spec, err := p.registry.Lookup(module)
	if err != nil {
		return err
	}

	model, mtype, err := p.resolveModel(ctx, call, idx, &u, family)
	if err != nil {
		return err
	}

	dims := p.services.Targets.TargetDimensions(call)
	inputs, mode, err := p.acquire(ctx, call, idx, &u, family, dims)
	if err != nil {
		return err
	}

	resolution := u.ProcessorRes
	if u.PixelPerfect {
		resolution = imageops.PixelPerfect(inputs[0].Bounds(), dims.Height, dims.Width, mode)
	}
	logger.Info("running preprocessor",
		logging.String("module", module),
		logging.String("model_type", mtype.String()),
		logging.Int("frames", len(inputs)),
		logging.Int("resolution", resolution),
	)

	params := preprocess.Params{Resolution: resolution, ThresholdA: u.ThresholdA, ThresholdB: u.ThresholdB, Rand: rng}
	shape := conditioningShape{
		unit:   idx,
		module: module,
		model:  u.Model,
		mtype:  mtype,
		plus:   mtype == control.ModelIPAdapter && controlmodel.IsPlus(model),
		faceID: family == preprocess.FamilyFaceID,
	}
	var base, hr []*tensor.Dense
	imageLike := true
	for i, input := range inputs {
		res, err := p.registry.Run(spec, input, params)
		if err != nil {
			return services.Wrap(services.ErrExternalTool, stage, "preprocess", fmt.Sprintf("unit %d frame %d (%s)", idx, i, module), err)
		}
		if !res.IsImage() {
			imageLike = false
			t, err := shape.extract(res.Embedding)
			if err != nil {
				return err
			}
			base = append(base, t)
			plan.DetectedMaps = append(plan.DetectedMaps, DetectedMap{Unit: idx, Module: module, Image: input})
			continue
		}
		if !shape.acceptsImage() {
			return &control.ModelTypeError{Unit: idx, Module: module, Model: u.Model, Reason: mtype.String() + " needs an embedding, preprocessor produced an image"}
		}
		if call.HighRes {
			t, shown := p.services.DetectMap.DetectMap(res.Image, module, mode, dims.HRHeight, dims.HRWidth)
			hr = append(hr, t)
			plan.DetectedMaps = append(plan.DetectedMaps, DetectedMap{Unit: idx, Module: module, Image: shown})
		}
		t, shown := p.services.DetectMap.DetectMap(res.Image, module, mode, dims.Height, dims.Width)
		base = append(base, t)
		plan.DetectedMaps = append(plan.DetectedMaps, DetectedMap{Unit: idx, Module: module, Image: shown})
	}

	hint, err := shape.stack(base)
	if err != nil {
		return services.Wrap(services.ErrValidation, stage, "stack conditioning", fmt.Sprintf("unit %d", idx), err)
	}
	desc := &control.ForwardDescriptor{
		UnitIndex: idx,
		Model:     model,
		ModelType: mtype,
		Preprocessor: control.PreprocessorInfo{
			Name:       module,
			Resolution: resolution,
			ThresholdA: u.ThresholdA,
			ThresholdB: u.ThresholdB,
		},
		Hint:                 hint,
		Weight:               u.Weight,
		GuidanceStart:        u.GuidanceStart,
		GuidanceEnd:          u.GuidanceEnd,
		SoftInjection:        u.ControlMode.SoftInjection(),
		CFGInjection:         u.ControlMode.CFGInjection(),
		GlobalAveragePooling: (mtype == control.ModelControlNet || mtype == control.ModelControlLoRA) && controlmodel.GlobalAveragePooling(model),
		Frames:               len(inputs),
	}
	if call.HighRes && imageLike && len(hr) > 0 {
		hrHint, err := shape.stack(hr)
		if err != nil {
			return services.Wrap(services.ErrValidation, stage, "stack high-res conditioning", fmt.Sprintf("unit %d", idx), err)
		}
		desc.HRHint = &hrHint
	}

	if family.EncodesLatent() && p.services.Encoder != nil {
		latent, err := p.services.Encoder.EncodeLatent(ctx, call, hint.Tensor)
		if err != nil {
			return services.Wrap(services.ErrExternalTool, stage, "encode hint latent", fmt.Sprintf("unit %d", idx), err)
		}
		desc.HintLatent = latent
		plan.NoiseModifier = latent
	}
	plan.Descriptors = append(plan.Descriptors, desc)

	p.addPostProcessors(logger, plan, desc, family, u.IsBatch())
	return nil
}

func (p *Processor) resolveModel(ctx context.Context, call *host.Call, idx int, u *control.Unit, family preprocess.Family) (control.Model, control.ModelType, error) {
	switch family {
	case preprocess.FamilyReference:
		return nil, control.ModelAttentionInjection, nil
	case preprocess.FamilyRevision:
		return nil, control.ModelReVision, nil
	}
	if p.models == nil {
		return nil, 0, services.Wrap(services.ErrConfiguration, stage, "load model", "no model loader configured", nil)
	}
	model, err := p.models.Load(ctx, call, u.Model)
	if err != nil {
		return nil, 0, err
	}
	if r, ok := model.(controlmodel.Resetter); ok {
		r.Reset()
	}
	mtype, err := controlmodel.Classify(model)
	if err != nil {
		return nil, 0, &control.ModelTypeError{Unit: idx, Module: u.Module, Model: u.Model, Reason: err.Error()}
	}
	if mtype == control.ModelControlLoRA {
		if _, ok := controlmodel.LoRA(model); !ok {
			return nil, 0, &control.ModelTypeError{Unit: idx, Module: u.Module, Model: u.Model, Reason: "control lora model carries no weights"}
		}
	}
	return model, mtype, nil
}

// acquire loads every input frame of the unit as an independent copy.
func (p *Processor) acquire(ctx context.Context, call *host.Call, idx int, u *control.Unit, family preprocess.Family, dims host.Dimensions) ([]image.Image, control.ResizeMode, error) {
	refs := []control.FrameRef{{Image: u.Image, Mask: u.Mask}}
	if u.IsBatch() {
		refs = u.Frames
	}
	if len(refs) == 0 {
		return nil, u.ResizeMode, &control.MissingInputError{Unit: idx}
	}

	mode := u.ResizeMode
	inputs := make([]image.Image, 0, len(refs))
	for _, ref := range refs {
		u.Image, u.Mask = ref.Image, ref.Mask
		img, m, err := p.services.Inputs.ChooseInput(ctx, call, u, idx)
		if err != nil {
			return nil, mode, err
		}
		mode = m
		if p.services.Cropper != nil && call.ImageMask != nil {
			img = p.services.Cropper.CropWithMask(call, u, img, mode)
		}
		var frame image.Image = imageops.Clone(img)
		if family == preprocess.FamilyInpaintLama && mode == control.ResizeOuterFit {
			_, frame = p.services.DetectMap.DetectMap(frame, u.Module, mode, dims.HRHeight, dims.HRWidth)
		}
		inputs = append(inputs, frame)
	}
	return inputs, mode, nil
}

func (p *Processor) addPostProcessors(logger *slog.Logger, plan *Plan, desc *control.ForwardDescriptor, family preprocess.Family, batch bool) {
	target := desc.Hint.Tensor
	if desc.HRHint != nil {
		target = desc.HRHint.Tensor
	}
	if target == nil {
		return
	}
	var (
		proc postprocess.Processor
		err  error
	)
	switch {
	case family.BlendsInpaint():
		proc, err = postprocess.NewInpaintBlend(desc.UnitIndex, target, desc.Frames, p.blurSigma, batch, logger)
	case family == preprocess.FamilyRecolorLuminance:
		proc, err = postprocess.NewRecolorBlend(desc.UnitIndex, target, desc.Frames, postprocess.RecolorLuminance, batch, logger)
	case family == preprocess.FamilyRecolorIntensity:
		proc, err = postprocess.NewRecolorBlend(desc.UnitIndex, target, desc.Frames, postprocess.RecolorIntensity, batch, logger)
	default:
		return
	}
	if err != nil {
		logging.ErrorWithContext(logger, "post-processor unavailable", "postprocess_build_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "generated frames are not blended for this unit"),
		)
		return
	}
	plan.PostProcessors = append(plan.PostProcessors, proc)
}
