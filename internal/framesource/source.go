package framesource

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"framectl/internal/config"
	"framectl/internal/control"
	"framectl/internal/logging"
	"framectl/internal/media/ffprobe"
	"framectl/internal/preflight"
	"framectl/internal/services"
)

const stage = "framesource"

// Kind identifies where a Source's frames came from.
type Kind int

const (
	KindNone Kind = iota
	KindDirectory
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindVideo:
		return "video"
	default:
		return "none"
	}
}

// Source is the global frame sequence shared by units without their own input.
type Source struct {
	Dir    string
	Kind   Kind
	Frames int

	workspace *workspace
}

// Empty reports whether the source carries no frames directory.
func (s *Source) Empty() bool {
	return s == nil || s.Dir == ""
}

// Release removes a decoded workspace. It is safe to call on any Source,
// including nil and already released ones.
func (s *Source) Release() error {
	if s == nil || s.workspace == nil {
		return nil
	}
	ws := s.workspace
	s.workspace = nil
	return ws.remove()
}

// Discard releases src and logs a warning when its workspace cannot be
// removed.
func Discard(logger *slog.Logger, src *Source) {
	if src == nil {
		return
	}
	dir := src.Dir
	if err := src.Release(); err != nil {
		warnCleanup(logger, dir, err)
	}
}

func warnCleanup(logger *slog.Logger, dir string, err error) {
	logging.WarnWithContext(logger, "frame workspace cleanup failed", "workspace_cleanup_failed",
		logging.Error(err),
		logging.String("workspace", dir),
		logging.String(logging.FieldImpact, "decoded frames remain on disk until the next resolver start"),
	)
}

// Resolver resolves the global frame source of a call.
type Resolver struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewResolver builds a resolver and prunes stale workspaces left under
// frames_dir by earlier processes.
func NewResolver(cfg *config.Config, logger *slog.Logger) *Resolver {
	r := &Resolver{cfg: cfg, logger: logging.NewComponentLogger(logger, stage)}
	if pruned := PruneStale(cfg.Paths.FramesDir, r.logger); pruned > 0 {
		r.logger.Info("pruned stale frame workspaces", logging.Int("count", pruned))
	}
	return r
}

// ResolveGlobal decodes params.VideoSource into a fresh workspace when set,
// falls back to the params.VideoPath directory, and otherwise returns an
// empty Source.
func (r *Resolver) ResolveGlobal(ctx context.Context, params control.VideoParams) (*Source, error) {
	if src := strings.TrimSpace(params.VideoSource); src != "" {
		return r.decode(ctx, src)
	}
	if dir := strings.TrimSpace(params.VideoPath); dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, services.Wrap(services.ErrNotFound, stage, "stat frame directory", dir, err)
		}
		if !info.IsDir() {
			return nil, services.Wrap(services.ErrValidation, stage, "stat frame directory", dir+" is not a directory", nil)
		}
		return &Source{Dir: dir, Kind: KindDirectory}, nil
	}
	return &Source{}, nil
}

func (r *Resolver) decode(ctx context.Context, src string) (*Source, error) {
	logger := logging.WithContext(ctx, r.logger)
	if _, err := os.Stat(src); err != nil {
		return nil, services.Wrap(services.ErrNotFound, stage, "stat video", src, err)
	}

	probe, err := ffprobe.Inspect(ctx, r.cfg.Media.FFprobeBinary, src)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stage, "probe video", src, err)
	}
	if _, ok := probe.VideoStream(); !ok {
		return nil, services.Wrap(services.ErrValidation, stage, "probe video", src+" has no video stream", nil)
	}

	if err := os.MkdirAll(r.cfg.Paths.FramesDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stage, "create frames dir", r.cfg.Paths.FramesDir, err)
	}
	if minFree := r.cfg.Control.MinFreeMiB; minFree > 0 {
		if check := preflight.CheckFreeSpace("frames", r.cfg.Paths.FramesDir, minFree); !check.Passed {
			return nil, services.Wrap(services.ErrValidation, stage, "check free space", check.Detail, nil)
		}
	}

	ws, err := createWorkspace(r.cfg.Paths.FramesDir)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stage, "create workspace", r.cfg.Paths.FramesDir, err)
	}

	start := time.Now()
	if err := r.runFFmpeg(ctx, src, ws.dir); err != nil {
		if rmErr := ws.remove(); rmErr != nil {
			warnCleanup(logger, ws.dir, rmErr)
		}
		return nil, services.Wrap(services.ErrExternalTool, stage, "decode video", src, err)
	}

	frames, err := ListFrames(ws.dir)
	if err == nil && len(frames) == 0 {
		err = fmt.Errorf("ffmpeg produced no frames")
	}
	if err != nil {
		if rmErr := ws.remove(); rmErr != nil {
			warnCleanup(logger, ws.dir, rmErr)
		}
		return nil, services.Wrap(services.ErrExternalTool, stage, "decode video", src, err)
	}

	logger.Info("decoded video into frames",
		logging.String("source", src),
		logging.String("workspace", ws.dir),
		logging.Int("frames", len(frames)),
		logging.Int("estimated_frames", probe.EstimatedFrames()),
		logging.Duration("elapsed", time.Since(start)),
	)
	return &Source{Dir: ws.dir, Kind: KindVideo, Frames: len(frames), workspace: ws}, nil
}

func (r *Resolver) runFFmpeg(ctx context.Context, src, dir string) error {
	if timeout := r.cfg.Media.DecodeTimeoutSeconds; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}
	ext := strings.TrimPrefix(r.cfg.Media.FrameExtension, ".")
	if ext == "" {
		ext = "png"
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-i", src,
		"-vsync", "0",
		"-start_number", "0",
		filepath.Join(dir, "%05d."+ext),
	}
	cmd := exec.CommandContext(ctx, r.cfg.Media.FFmpegBinary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
