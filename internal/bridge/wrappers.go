package bridge

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/pdevine/tensor"

	"framectl/internal/control"
	"framectl/internal/framesource"
	"framectl/internal/host"
	"framectl/internal/logging"
	"framectl/internal/runlog"
	"framectl/internal/services"
)

// batchWrapper resolves frame sources and reconciles lengths, then delegates.
type batchWrapper struct {
	m     *Manager
	state *HookState
	next  host.BatchEntry
}

func (w *batchWrapper) ProcessImages(ctx context.Context, call *host.Call) (result *host.Result, err error) {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	ctx = services.WithRunID(ctx, call.ID)
	ctx = services.WithStage(ctx, "batch")
	if !w.state.Installed() {
		return w.next.ProcessImages(ctx, call)
	}
	logger := logging.WithContext(ctx, w.m.logger)
	defer delete(w.state.pending, call)

	var units []*control.Unit
	if w.m.opts.Services.Units != nil {
		units = w.m.opts.Services.Units.EnabledUnits(call)
	}
	if len(units) == 0 {
		return w.next.ProcessImages(ctx, call)
	}

	w.m.beginRun(ctx, call, units)
	defer func() {
		frames := 0
		if result != nil {
			frames = len(result.Frames)
		}
		w.m.finishRun(ctx, call, units, frames, err)
	}()

	global, err := w.m.resolver.ResolveGlobal(ctx, call.Video)
	if err != nil {
		return nil, err
	}
	defer framesource.Discard(logger, global)

	for idx, unit := range units {
		if err := w.m.assigner.AssignUnitSource(services.WithUnitIndex(ctx, idx), call, unit, idx, global); err != nil {
			return nil, err
		}
	}

	expansion := 0
	if call.BatchExpansion {
		expansion = call.InitImages
	}
	rec := framesource.Reconcile(units, &call.Video, call.BatchSize, expansion)
	if rec.Applied {
		call.BatchSize = rec.BatchSize
		logger.Info("frame counts reconciled",
			logging.Int("length", rec.Length),
			logging.Int("video_length", rec.VideoLength),
			logging.Int("batch_size", rec.BatchSize),
		)
	}

	result, err = w.next.ProcessImages(ctx, call)
	if err != nil {
		return nil, err
	}
	annotate(result, call, global)
	return result, nil
}

// annotate adds the reconciled video settings to the result info, the way a
// host records generation parameters next to its outputs.
func annotate(result *host.Result, call *host.Call, global *framesource.Source) {
	if result == nil {
		return
	}
	if result.Info == nil {
		result.Info = make(map[string]string)
	}
	result.Info["run_id"] = call.ID
	result.Info["video_length"] = strconv.Itoa(call.Video.VideoLength)
	result.Info["batch_size"] = strconv.Itoa(call.BatchSize)
	if call.Video.VideoSource != "" {
		result.Info["video_source"] = call.Video.VideoSource
	}
	if global != nil && global.Kind != framesource.KindNone {
		result.Info["frame_source"] = global.Kind.String()
	}
}

// generationWrapper builds the plan and keeps the hook attached while the
// original entry produces frames.
type generationWrapper struct {
	m     *Manager
	state *HookState
	next  host.GenerationEntry
}

func (w *generationWrapper) Generate(ctx context.Context, call *host.Call, denoise host.Denoiser) ([]*tensor.Dense, error) {
	if !w.state.Installed() {
		if w.next != nil {
			return w.next.Generate(ctx, call, denoise)
		}
		return denoise(ctx)
	}
	ctx = services.WithRunID(ctx, call.ID)
	plan, err := w.m.processor.Process(ctx, call)
	if err != nil {
		return nil, err
	}
	if plan.NoiseModifier != nil {
		call.NoiseModifier = plan.NoiseModifier
	}

	generate := func(ctx context.Context) ([]*tensor.Dense, error) {
		if w.next != nil {
			return w.next.Generate(ctx, call, denoise)
		}
		return denoise(ctx)
	}

	var frames []*tensor.Dense
	if plan.Empty() {
		frames, err = generate(ctx)
	} else {
		err = w.m.hook.Run(ctx, plan.Descriptors, plan.LowVRAM, func(ctx context.Context) error {
			var runErr error
			frames, runErr = generate(ctx)
			return runErr
		})
	}
	if err != nil {
		return nil, err
	}
	if len(plan.PostProcessors) > 0 && w.state.pending != nil {
		w.state.pending[call] = plan.PostProcessors
	}
	return frames, nil
}

// postprocessWrapper runs the pending post-processors for a call over its
// frames in place. While installed it replaces the original entry; next is
// only called once the state has been uninstalled.
type postprocessWrapper struct {
	m     *Manager
	state *HookState
	next  host.PostprocessEntry
}

func (w *postprocessWrapper) PostprocessBatch(ctx context.Context, call *host.Call, frames []*tensor.Dense) error {
	if !w.state.Installed() {
		if w.next != nil {
			return w.next.PostprocessBatch(ctx, call, frames)
		}
		return nil
	}
	chain, ok := w.state.pending[call]
	if !ok {
		return nil
	}
	delete(w.state.pending, call)
	copy(frames, chain.Apply(frames))
	logging.WithContext(services.WithRunID(ctx, call.ID), w.m.logger).Debug("post-processors applied",
		logging.Int("processors", len(chain)),
		logging.Int("frames", len(frames)),
	)
	return nil
}

func (m *Manager) beginRun(ctx context.Context, call *host.Call, units []*control.Unit) {
	if m.opts.RunLog == nil {
		return
	}
	run := &runlog.Run{
		ID:          call.ID,
		Seed:        call.Seed,
		Subseed:     call.Subseed,
		BatchSize:   call.BatchSize,
		VideoLength: call.Video.VideoLength,
		VideoSource: call.Video.VideoSource,
		Checkpoint:  call.CheckpointHash,
		Units:       unitRecords(units),
	}
	if err := m.opts.RunLog.Begin(ctx, run); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "run ledger begin failed", "runlog_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this call is missing from the run ledger"),
		)
	}
}

func (m *Manager) finishRun(ctx context.Context, call *host.Call, units []*control.Unit, frames int, runErr error) {
	if m.opts.RunLog == nil {
		return
	}
	out := runlog.Outcome{
		Status:      services.FailureStatus(runErr),
		Frames:      frames,
		VideoLength: call.Video.VideoLength,
		BatchSize:   call.BatchSize,
		Units:       unitRecords(units),
	}
	if runErr != nil {
		out.Error = runErr.Error()
	}
	if err := m.opts.RunLog.Finish(ctx, call.ID, out); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "run ledger finish failed", "runlog_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run stays marked running until the next sweep"),
		)
	}
}

func unitRecords(units []*control.Unit) []runlog.UnitRecord {
	out := make([]runlog.UnitRecord, 0, len(units))
	for i, u := range units {
		frames := len(u.Frames)
		if !u.IsBatch() {
			frames = 1
		}
		out = append(out, runlog.UnitRecord{
			Index:     i,
			Module:    u.Module,
			Model:     u.Model,
			InputMode: u.InputMode.String(),
			Frames:    frames,
			Weight:    u.Weight,
		})
	}
	return out
}
