package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"framectl/internal/control"
	"framectl/internal/fileutil"
	"framectl/internal/framesource"
	"framectl/internal/media/ffprobe"
)

func newFramesCommand(ctx *commandContext) *cobra.Command {
	framesCmd := &cobra.Command{
		Use:   "frames",
		Short: "Inspect and extract video frames",
	}
	framesCmd.AddCommand(newFramesProbeCommand(ctx))
	framesCmd.AddCommand(newFramesExtractCommand(ctx))
	framesCmd.AddCommand(newFramesListCommand())
	return framesCmd
}

func newFramesProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <video>",
		Short: "Show the video stream of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := ffprobe.Inspect(cmd.Context(), cfg.Media.FFprobeBinary, args[0])
			if err != nil {
				return err
			}
			stream, ok := result.VideoStream()
			if !ok {
				return fmt.Errorf("%s has no video stream", args[0])
			}
			rows := [][]string{
				{"Codec", stream.CodecName},
				{"Size", fmt.Sprintf("%dx%d", stream.Width, stream.Height)},
				{"Frame rate", strconv.FormatFloat(stream.FrameRate(), 'f', 3, 64)},
				{"Duration", strconv.FormatFloat(result.DurationSeconds(), 'f', 2, 64) + "s"},
				{"Frames", strconv.Itoa(result.EstimatedFrames())},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Property", "Value"}, rows, nil))
			return nil
		},
	}
}

func newFramesExtractCommand(ctx *commandContext) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "extract <video>",
		Short: "Decode a video into numbered frames",
		Long: "Decode a video the way a generation call does. Without --out the frames\n" +
			"are decoded into a temporary workspace and removed again, which checks\n" +
			"that the video is usable.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			video, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve video path: %w", err)
			}
			resolver := framesource.NewResolver(cfg, ctx.commandLogger())
			src, err := resolver.ResolveGlobal(cmd.Context(), control.VideoParams{VideoSource: video})
			if err != nil {
				return err
			}
			defer src.Release()

			out := cmd.OutOrStdout()
			target := strings.TrimSpace(outDir)
			if target == "" {
				fmt.Fprintf(out, "Decoded %d frames from %s (workspace removed)\n", src.Frames, video)
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create output parent: %w", err)
			}
			if err := fileutil.MoveDir(src.Dir, target); err != nil {
				return fmt.Errorf("move frames to %s: %w", target, err)
			}
			fmt.Fprintf(out, "Wrote %d frames to %s\n", src.Frames, target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Keep the decoded frames in this new directory")
	return cmd
}

func newFramesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "list <dir>",
		Short:       "List frames in playback order",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			frames, err := framesource.ListFrames(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, frame := range frames {
				fmt.Fprintln(out, frame)
			}
			fmt.Fprintf(out, "%d frames\n", len(frames))
			return nil
		},
	}
}
