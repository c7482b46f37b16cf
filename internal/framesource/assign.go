package framesource

import (
	"context"
	"log/slog"
	"path/filepath"

	"framectl/internal/control"
	"framectl/internal/host"
	"framectl/internal/logging"
	"framectl/internal/preprocess"
	"framectl/internal/services"
)

// Assigner backfills unit inputs from the global source and expands batch
// directories into frame lists.
type Assigner struct {
	Inputs   host.InputChooser
	Registry *preprocess.Registry
	Logger   *slog.Logger
}

// AssignUnitSource resolves where unit reads its frames from. Batch units
// without frames take the global source. A simple unit with no image falls
// back to the global source as a batch when the host cannot choose an input
// for it. Inpainting batch units pair the image/ and mask/ subdirectories
// positionally.
func (a *Assigner) AssignUnitSource(ctx context.Context, call *host.Call, unit *control.Unit, index int, global *Source) error {
	if call.BatchExpansion && unit.Image == "" {
		unit.InputMode = control.InputBatch
	}

	switch {
	case unit.IsBatch():
		if !unit.HasSource() {
			if global.Empty() {
				return &control.MissingInputError{Unit: index}
			}
			unit.BatchDir = global.Dir
		}
	case unit.Image == "":
		if a.Inputs != nil {
			if _, _, err := a.Inputs.ChooseInput(ctx, call, unit, index); err == nil {
				return nil
			}
		}
		if global.Empty() {
			return &control.MissingInputError{Unit: index}
		}
		logging.WithContext(ctx, a.logger()).Debug("unit has no input image, using global frames",
			logging.Int(logging.FieldUnitIndex, index),
			logging.String("frames_dir", global.Dir),
		)
		unit.BatchDir = global.Dir
		unit.InputMode = control.InputBatch
	default:
		return nil
	}

	if len(unit.Frames) > 0 {
		return nil
	}
	return a.expand(unit, index)
}

func (a *Assigner) expand(unit *control.Unit, index int) error {
	if a.pairsMasks(unit.Module) {
		images, err := ListFrames(filepath.Join(unit.BatchDir, "image"))
		if err != nil {
			return services.Wrap(services.ErrNotFound, stage, "list inpaint images", unit.BatchDir, err)
		}
		masks, err := ListFrames(filepath.Join(unit.BatchDir, "mask"))
		if err != nil {
			return services.Wrap(services.ErrNotFound, stage, "list inpaint masks", unit.BatchDir, err)
		}
		if len(images) != len(masks) {
			return &control.MaskCountMismatchError{Unit: index, Images: len(images), Masks: len(masks)}
		}
		if len(images) == 0 {
			return &control.MissingInputError{Unit: index}
		}
		unit.Frames = make([]control.FrameRef, len(images))
		for i := range images {
			unit.Frames[i] = control.FrameRef{Image: images[i], Mask: masks[i]}
		}
		return nil
	}

	paths, err := ListFrames(unit.BatchDir)
	if err != nil {
		return services.Wrap(services.ErrNotFound, stage, "list frames", unit.BatchDir, err)
	}
	if len(paths) == 0 {
		return &control.MissingInputError{Unit: index}
	}
	unit.Frames = make([]control.FrameRef, len(paths))
	for i, path := range paths {
		unit.Frames[i] = control.FrameRef{Image: path}
	}
	return nil
}

func (a *Assigner) pairsMasks(module string) bool {
	if a.Registry == nil {
		return preprocess.FamilyOf(module).PairsMasks()
	}
	return a.Registry.Family(module).PairsMasks()
}

func (a *Assigner) logger() *slog.Logger {
	if a.Logger == nil {
		return logging.NewNop()
	}
	return a.Logger
}
