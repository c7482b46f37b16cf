package framesource_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"framectl/internal/config"
	"framectl/internal/control"
	"framectl/internal/framesource"
	"framectl/internal/host"
	"framectl/internal/logging"
	"framectl/internal/preprocess"
	"framectl/internal/services"
	"framectl/internal/testsupport"
)

const ffprobeStub = `#!/bin/sh
printf '{"streams":[{"codec_type":"video","avg_frame_rate":"24/1","nb_frames":"3"}],"format":{"duration":"0.125"}}'
`

const ffmpegStub = `#!/bin/sh
for a in "$@"; do last="$a"; done
dir=$(dirname "$last")
for i in 0 1 2; do : > "$dir/0000$i.png"; done
`

const ffmpegFailStub = `#!/bin/sh
echo "invalid data found when processing input" >&2
exit 1
`

func newVideoConfig(t *testing.T, ffmpeg string) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubScripts(map[string]string{
		"ffmpeg":  ffmpeg,
		"ffprobe": ffprobeStub,
	}))
	return cfg
}

func writeVideo(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(testsupport.BaseDir(cfg), "clip.mp4")
	testsupport.WriteFile(t, path, 64)
	return path
}

func TestResolveGlobalDecodesVideo(t *testing.T) {
	cfg := newVideoConfig(t, ffmpegStub)
	video := writeVideo(t, cfg)
	resolver := framesource.NewResolver(cfg, logging.NewNop())

	src, err := resolver.ResolveGlobal(context.Background(), control.VideoParams{VideoSource: video})
	if err != nil {
		t.Fatalf("ResolveGlobal: %v", err)
	}
	if src.Kind != framesource.KindVideo || src.Frames != 3 {
		t.Fatalf("unexpected source %#v", src)
	}
	if filepath.Dir(src.Dir) != cfg.Paths.FramesDir {
		t.Fatalf("workspace %s not under %s", src.Dir, cfg.Paths.FramesDir)
	}
	if _, err := os.Stat(src.Dir + ".lock"); err != nil {
		t.Fatalf("expected workspace lock file: %v", err)
	}

	dir := src.Dir
	if err := src.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected workspace removed, stat err=%v", err)
	}
	if _, err := os.Stat(dir + ".lock"); !os.IsNotExist(err) {
		t.Fatalf("expected lock file removed, stat err=%v", err)
	}
	if err := src.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestResolveGlobalDecodeFailureCleansUp(t *testing.T) {
	cfg := newVideoConfig(t, ffmpegFailStub)
	video := writeVideo(t, cfg)
	resolver := framesource.NewResolver(cfg, logging.NewNop())

	src, err := resolver.ResolveGlobal(context.Background(), control.VideoParams{VideoSource: video})
	if err == nil {
		t.Fatalf("expected decode error, got source %#v", src)
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid data") {
		t.Fatalf("expected ffmpeg stderr in error, got %v", err)
	}
	entries, readErr := os.ReadDir(cfg.Paths.FramesDir)
	if readErr != nil {
		t.Fatalf("read frames dir: %v", readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no leftover workspaces, found %d entries", len(entries))
	}
}

func TestResolveGlobalMissingVideo(t *testing.T) {
	cfg := newVideoConfig(t, ffmpegStub)
	resolver := framesource.NewResolver(cfg, logging.NewNop())
	_, err := resolver.ResolveGlobal(context.Background(), control.VideoParams{VideoSource: filepath.Join(t.TempDir(), "nope.mp4")})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolveGlobalDirectoryAndEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	resolver := framesource.NewResolver(cfg, logging.NewNop())
	dir := t.TempDir()

	src, err := resolver.ResolveGlobal(context.Background(), control.VideoParams{VideoPath: dir})
	if err != nil {
		t.Fatalf("ResolveGlobal: %v", err)
	}
	if src.Kind != framesource.KindDirectory || src.Dir != dir {
		t.Fatalf("unexpected source %#v", src)
	}
	if err := src.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("directory sources must survive release: %v", err)
	}

	empty, err := resolver.ResolveGlobal(context.Background(), control.VideoParams{})
	if err != nil {
		t.Fatalf("ResolveGlobal empty: %v", err)
	}
	if !empty.Empty() || empty.Kind != framesource.KindNone {
		t.Fatalf("expected empty source, got %#v", empty)
	}
}

func TestNewResolverPrunesStaleWorkspaces(t *testing.T) {
	cfg := newVideoConfig(t, ffmpegStub)
	video := writeVideo(t, cfg)
	stale := filepath.Join(cfg.Paths.FramesDir, "frames-stale")
	testsupport.WriteFile(t, filepath.Join(stale, "00000.png"), 8)

	resolver := framesource.NewResolver(cfg, logging.NewNop())
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale workspace pruned, stat err=%v", err)
	}

	active, err := resolver.ResolveGlobal(context.Background(), control.VideoParams{VideoSource: video})
	if err != nil {
		t.Fatalf("ResolveGlobal: %v", err)
	}
	defer active.Release()
	if pruned := framesource.PruneStale(cfg.Paths.FramesDir, logging.NewNop()); pruned != 0 {
		t.Fatalf("pruned %d workspaces while one is in use", pruned)
	}
	if _, err := os.Stat(active.Dir); err != nil {
		t.Fatalf("active workspace removed: %v", err)
	}
}

func TestListFramesNaturalOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"10.png", "2.png", "1.jpg", "frame_10.png", "frame_9.png", "notes.txt", ".hidden.png"} {
		testsupport.WriteFile(t, filepath.Join(dir, name), 1)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	frames, err := framesource.ListFrames(dir)
	if err != nil {
		t.Fatalf("ListFrames: %v", err)
	}
	var names []string
	for _, f := range frames {
		names = append(names, filepath.Base(f))
	}
	if strings.Join(names, ",") != "1.jpg,2.png,10.png,frame_9.png,frame_10.png" {
		t.Fatalf("unexpected order %v", names)
	}
}

func newAssigner() *framesource.Assigner {
	return &framesource.Assigner{Inputs: host.FileInputs{}, Registry: preprocess.Default(), Logger: logging.NewNop()}
}

func TestAssignUnitSourceBatchTakesGlobal(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFrames(t, dir, 4, 8, 8)
	unit := &control.Unit{Enabled: true, Module: "none", InputMode: control.InputBatch}

	err := newAssigner().AssignUnitSource(context.Background(), &host.Call{}, unit, 0, &framesource.Source{Dir: dir, Kind: framesource.KindDirectory})
	if err != nil {
		t.Fatalf("AssignUnitSource: %v", err)
	}
	if unit.BatchDir != dir || len(unit.Frames) != 4 {
		t.Fatalf("unexpected unit after assignment: dir=%s frames=%d", unit.BatchDir, len(unit.Frames))
	}
	if filepath.Base(unit.Frames[3].Image) != "3.png" {
		t.Fatalf("unexpected last frame %s", unit.Frames[3].Image)
	}
}

func TestAssignUnitSourceMissingInput(t *testing.T) {
	for _, mode := range []control.InputMode{control.InputBatch, control.InputSimple} {
		unit := &control.Unit{Enabled: true, Module: "none", InputMode: mode}
		err := newAssigner().AssignUnitSource(context.Background(), &host.Call{}, unit, 2, &framesource.Source{})
		var missing *control.MissingInputError
		if !errors.As(err, &missing) || missing.Unit != 2 {
			t.Fatalf("mode %v: expected missing input error for unit 2, got %v", mode, err)
		}
		if !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("mode %v: expected configuration error", mode)
		}
	}
}

func TestAssignUnitSourceSimpleFallsBackToGlobal(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFrames(t, dir, 3, 8, 8)
	unit := &control.Unit{Enabled: true, Module: "none"}

	err := newAssigner().AssignUnitSource(context.Background(), &host.Call{}, unit, 0, &framesource.Source{Dir: dir})
	if err != nil {
		t.Fatalf("AssignUnitSource: %v", err)
	}
	if !unit.IsBatch() || len(unit.Frames) != 3 {
		t.Fatalf("expected simple unit promoted to batch with 3 frames, got mode=%v frames=%d", unit.InputMode, len(unit.Frames))
	}
}

func TestAssignUnitSourceSimpleWithImageUntouched(t *testing.T) {
	unit := &control.Unit{Enabled: true, Module: "none", Image: "/inputs/pose.png"}
	if err := newAssigner().AssignUnitSource(context.Background(), &host.Call{}, unit, 0, &framesource.Source{Dir: t.TempDir()}); err != nil {
		t.Fatalf("AssignUnitSource: %v", err)
	}
	if unit.IsBatch() || unit.Frames != nil {
		t.Fatalf("simple unit with image should not change: %#v", unit)
	}
}

func TestAssignUnitSourceBatchExpansionForcesBatch(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFrames(t, dir, 2, 8, 8)
	unit := &control.Unit{Enabled: true, Module: "none"}
	call := &host.Call{Img2Img: true, BatchExpansion: true, InitImages: 2}

	if err := newAssigner().AssignUnitSource(context.Background(), call, unit, 0, &framesource.Source{Dir: dir}); err != nil {
		t.Fatalf("AssignUnitSource: %v", err)
	}
	if !unit.IsBatch() || len(unit.Frames) != 2 {
		t.Fatalf("expected batch unit with 2 frames, got mode=%v frames=%d", unit.InputMode, len(unit.Frames))
	}
}

func TestAssignUnitSourceInpaintPairsMasks(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFrames(t, filepath.Join(dir, "image"), 3, 8, 8)
	testsupport.WriteFrames(t, filepath.Join(dir, "mask"), 3, 8, 8)
	unit := &control.Unit{Enabled: true, Module: "inpaint_only", InputMode: control.InputBatch, BatchDir: dir}

	if err := newAssigner().AssignUnitSource(context.Background(), &host.Call{}, unit, 0, &framesource.Source{}); err != nil {
		t.Fatalf("AssignUnitSource: %v", err)
	}
	if len(unit.Frames) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(unit.Frames))
	}
	for i, ref := range unit.Frames {
		if filepath.Base(filepath.Dir(ref.Image)) != "image" || filepath.Base(filepath.Dir(ref.Mask)) != "mask" {
			t.Fatalf("pair %d not split by subdirectory: %#v", i, ref)
		}
		if filepath.Base(ref.Image) != filepath.Base(ref.Mask) {
			t.Fatalf("pair %d misaligned: %#v", i, ref)
		}
	}
}

func TestAssignUnitSourceMaskCountMismatch(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFrames(t, filepath.Join(dir, "image"), 5, 8, 8)
	testsupport.WriteFrames(t, filepath.Join(dir, "mask"), 4, 8, 8)
	unit := &control.Unit{Enabled: true, Module: "inpaint_only+lama", InputMode: control.InputBatch, BatchDir: dir}

	err := newAssigner().AssignUnitSource(context.Background(), &host.Call{}, unit, 1, &framesource.Source{})
	var mismatch *control.MaskCountMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected mask count mismatch, got %v", err)
	}
	if mismatch.Images != 5 || mismatch.Masks != 4 || mismatch.Unit != 1 {
		t.Fatalf("unexpected mismatch detail %#v", mismatch)
	}
}

func refs(n int) []control.FrameRef {
	return make([]control.FrameRef, n)
}

func TestReconcileScenario(t *testing.T) {
	a := &control.Unit{Enabled: true, InputMode: control.InputBatch, Frames: refs(10)}
	b := &control.Unit{Enabled: true, Image: "pose.png"}
	params := &control.VideoParams{VideoLength: 12}

	res := framesource.Reconcile([]*control.Unit{a, b}, params, 8, 0)
	if !res.Applied || res.Length != 8 || res.VideoLength != 8 || res.BatchSize != 8 {
		t.Fatalf("unexpected reconciliation %#v", res)
	}
	if params.VideoLength != 8 {
		t.Fatalf("expected params video length 8, got %d", params.VideoLength)
	}
	if len(a.Frames) != 8 {
		t.Fatalf("expected unit A truncated to 8, got %d", len(a.Frames))
	}
	if b.Frames != nil || b.Image != "pose.png" {
		t.Fatalf("unit B must be unaffected: %#v", b)
	}
}

func TestReconcileWithoutBatchUnitsTrustsDeclared(t *testing.T) {
	params := &control.VideoParams{VideoLength: 16}
	res := framesource.Reconcile([]*control.Unit{{Enabled: true, Image: "x.png"}}, params, 8, 0)
	if res.Applied || res.VideoLength != 16 || res.BatchSize != 8 {
		t.Fatalf("unexpected reconciliation %#v", res)
	}
}

func TestReconcileDefaultRaisesToMinimum(t *testing.T) {
	unit := &control.Unit{InputMode: control.InputBatch, Frames: refs(6)}
	params := &control.VideoParams{VideoLength: 2, Default: true}
	res := framesource.Reconcile([]*control.Unit{unit}, params, 16, 0)
	if res.VideoLength != 6 || res.BatchSize != 6 || len(unit.Frames) != 6 {
		t.Fatalf("unexpected reconciliation %#v frames=%d", res, len(unit.Frames))
	}
}

func TestReconcileExpansionParticipates(t *testing.T) {
	unit := &control.Unit{InputMode: control.InputBatch, Frames: refs(9)}
	params := &control.VideoParams{}
	res := framesource.Reconcile([]*control.Unit{unit}, params, 16, 5)
	if res.Length != 5 || len(unit.Frames) != 5 {
		t.Fatalf("expected expansion count to cap length, got %#v frames=%d", res, len(unit.Frames))
	}
}

func TestReconcileProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		counts := rapid.SliceOfN(rapid.IntRange(1, 24), 1, 4).Draw(rt, "counts")
		batch := rapid.IntRange(1, 24).Draw(rt, "batch")
		request := rapid.IntRange(0, 32).Draw(rt, "request")
		useDefault := rapid.Bool().Draw(rt, "default")

		units := make([]*control.Unit, 0, len(counts)+1)
		expected := batch
		for _, c := range counts {
			units = append(units, &control.Unit{InputMode: control.InputBatch, Frames: refs(c)})
			expected = min(expected, c)
		}
		single := &control.Unit{Image: "still.png"}
		units = append(units, single)
		params := &control.VideoParams{VideoLength: request, Default: useDefault}

		res := framesource.Reconcile(units, params, batch, 0)

		require.True(rt, res.Applied)
		require.Equal(rt, expected, res.Length)
		require.LessOrEqual(rt, res.BatchSize, expected)
		if useDefault || request <= 0 || request >= expected {
			require.Equal(rt, expected, res.VideoLength)
		} else {
			require.Equal(rt, request, res.VideoLength)
		}
		require.Equal(rt, res.VideoLength, params.VideoLength)
		for _, unit := range units[:len(counts)] {
			require.Len(rt, unit.Frames, res.VideoLength)
		}
		require.Nil(rt, single.Frames)
	})
}
