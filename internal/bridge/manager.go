package bridge

import (
	"log/slog"

	"framectl/internal/config"
	"framectl/internal/controlmodel"
	"framectl/internal/framesource"
	"framectl/internal/host"
	"framectl/internal/inject"
	"framectl/internal/logging"
	"framectl/internal/motion"
	"framectl/internal/pipeline"
	"framectl/internal/postprocess"
	"framectl/internal/preprocess"
	"framectl/internal/runlog"
)

const stage = "bridge"

// Options wires the collaborators a Manager drives. Network is required for
// calls that enable units; RunLog, Schedule and Motion are optional.
type Options struct {
	Config   *config.Config
	Services host.Services
	Registry *preprocess.Registry
	Models   *controlmodel.Cache
	Network  host.Network
	LoRA     host.LoRABinder
	RunLog   *runlog.Store
	// Schedule receives the motion override when Motion is set.
	Schedule host.ScheduleHolder
	Motion   *motion.Config
	Logger   *slog.Logger
}

// HookState is the per-session record of what Install replaced.
type HookState struct {
	installed bool
	points    *host.HookPoints

	batch       host.BatchEntry
	generation  host.GenerationEntry
	postprocess host.PostprocessEntry

	batchHook       *batchWrapper
	generationHook  *generationWrapper
	postprocessHook *postprocessWrapper

	injector *motion.Injector
	pending  map[*host.Call]postprocess.Chain
}

// Installed reports whether the wrappers are in place.
func (s *HookState) Installed() bool { return s != nil && s.installed }

// Manager builds the wrappers and installs them.
type Manager struct {
	opts      Options
	resolver  *framesource.Resolver
	assigner  *framesource.Assigner
	processor *pipeline.Processor
	hook      *inject.Hook
	logger    *slog.Logger
}

// NewManager prepares the pipeline stages shared by every installation.
func NewManager(opts Options) (*Manager, error) {
	if opts.Registry == nil {
		opts.Registry = preprocess.Default()
	}
	if opts.Config == nil {
		cfg := config.Default()
		opts.Config = &cfg
	}
	if opts.Models == nil && opts.Services.Models != nil {
		cache, err := controlmodel.NewCache(opts.Services.Models, opts.Config.Control.ModelCacheSize, opts.Logger)
		if err != nil {
			return nil, err
		}
		opts.Models = cache
	}
	inputs := opts.Services.Inputs
	if inputs == nil {
		inputs = host.FileInputs{}
	}
	return &Manager{
		opts:     opts,
		resolver: framesource.NewResolver(opts.Config, opts.Logger),
		assigner: &framesource.Assigner{
			Inputs:   inputs,
			Registry: opts.Registry,
			Logger:   opts.Logger,
		},
		processor: pipeline.New(opts.Services, opts.Registry, opts.Models, opts.Config.Control.InpaintBlurSigma, opts.Logger),
		hook:      inject.New(opts.Network, opts.LoRA, opts.Logger),
		logger:    logging.NewComponentLogger(opts.Logger, stage),
	}, nil
}

// Install wraps the hook points and records the originals in state. It is a
// no-op when points is nil (no control extension), when state is already
// installed, or when points already carry control wrappers from another
// state.
func (m *Manager) Install(state *HookState, points *host.HookPoints) {
	if state == nil || points == nil {
		m.logger.Debug("control extension not present, hooks not installed")
		return
	}
	if state.installed {
		m.logger.Info("control hooks already installed")
		return
	}
	if _, wrapped := points.Batch.(*batchWrapper); wrapped {
		m.logger.Info("hook points already carry control wrappers")
		return
	}

	state.points = points
	state.batch = points.Batch
	state.generation = points.Generation
	state.postprocess = points.Postprocess
	state.pending = make(map[*host.Call]postprocess.Chain)

	state.batchHook = &batchWrapper{m: m, state: state, next: state.batch}
	state.generationHook = &generationWrapper{m: m, state: state, next: state.generation}
	state.postprocessHook = &postprocessWrapper{m: m, state: state, next: state.postprocess}
	points.Batch = state.batchHook
	points.Generation = state.generationHook
	points.Postprocess = state.postprocessHook

	if m.opts.Motion != nil && m.opts.Schedule != nil {
		state.injector = motion.NewInjector(m.opts.Schedule, m.opts.Logger)
		state.injector.Apply(*m.opts.Motion)
	}
	state.installed = true
	m.logger.Info("control hooks installed", logging.Bool("motion_override", state.injector != nil))
}

// Uninstall restores the hook points recorded by Install. A point that has
// since been replaced by someone else is left alone; the wrapper it holds
// becomes a pass-through to the recorded original. It is a no-op when
// nothing is installed.
func (m *Manager) Uninstall(state *HookState) {
	if !state.Installed() {
		m.logger.Debug("control hooks not installed, nothing to restore")
		return
	}
	points := state.points
	replaced := 0
	if points.Batch == host.BatchEntry(state.batchHook) {
		points.Batch = state.batch
	} else {
		replaced++
	}
	if points.Generation == host.GenerationEntry(state.generationHook) {
		points.Generation = state.generation
	} else {
		replaced++
	}
	if points.Postprocess == host.PostprocessEntry(state.postprocessHook) {
		points.Postprocess = state.postprocess
	} else {
		replaced++
	}
	if state.injector != nil {
		state.injector.Restore()
	}
	*state = HookState{}
	if replaced > 0 {
		logging.WarnWithContext(m.logger, "hook points replaced after install", "hooks_replaced",
			logging.Int("points", replaced),
			logging.String(logging.FieldImpact, "control wrappers stay in the call chain as pass-throughs"),
		)
		return
	}
	m.logger.Info("control hooks restored")
}

// Hook exposes the injection hook so callers can check its state.
func (m *Manager) Hook() *inject.Hook { return m.hook }
