package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"framectl/internal/control"
	"framectl/internal/framesource"
	"framectl/internal/host"
	"framectl/internal/jobfile"
	"framectl/internal/preprocess"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <job.toml>",
		Short: "Resolve frame sources and reconcile lengths for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			job, err := jobfile.Load(args[0])
			if err != nil {
				return err
			}
			logger := ctx.commandLogger()
			registry := preprocess.Default()
			call := job.HostCall()
			units := job.EnabledUnits(call)

			resolver := framesource.NewResolver(cfg, logger)
			global, err := resolver.ResolveGlobal(cmd.Context(), call.Video)
			if err != nil {
				return err
			}
			defer framesource.Discard(logger, global)

			assigner := &framesource.Assigner{Inputs: host.FileInputs{}, Registry: registry, Logger: logger}
			for idx, unit := range units {
				if err := assigner.AssignUnitSource(cmd.Context(), call, unit, idx, global); err != nil {
					return err
				}
			}
			requested := call.Video.VideoLength
			rec := framesource.Reconcile(units, &call.Video, call.BatchSize, 0)
			if rec.Applied {
				call.BatchSize = rec.BatchSize
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Module", "Family", "Input", "Frames", "Model", "Weight", "Window"},
				planRows(units, registry),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "Frame source: %s\n", describeSource(global))
			if rec.Applied {
				fmt.Fprintf(out, "Video length: %d (requested %d)\n", call.Video.VideoLength, requested)
			} else {
				fmt.Fprintf(out, "Video length: %d (no batch units, not reconciled)\n", call.Video.VideoLength)
			}
			fmt.Fprintf(out, "Batch size: %d\n", call.BatchSize)
			return nil
		},
	}
}

func planRows(units []*control.Unit, registry *preprocess.Registry) [][]string {
	rows := make([][]string, 0, len(units))
	for i, u := range units {
		frames := "1"
		if u.IsBatch() {
			frames = strconv.Itoa(len(u.Frames))
		}
		model := u.Model
		if model == "" {
			model = "-"
		}
		module := registry.Basename(u.Module)
		rows = append(rows, []string{
			strconv.Itoa(i),
			module,
			displayLabel(registry.Family(module).String()),
			displayLabel(u.InputMode.String()),
			frames,
			model,
			strconv.FormatFloat(u.Weight, 'f', 2, 64),
			fmt.Sprintf("%.2f-%.2f", u.GuidanceStart, u.GuidanceEnd),
		})
	}
	return rows
}

func describeSource(src *framesource.Source) string {
	if src.Empty() {
		return "none"
	}
	if src.Frames == 0 {
		return fmt.Sprintf("%s %s", src.Kind, src.Dir)
	}
	return fmt.Sprintf("%s %s (%d frames)", src.Kind, src.Dir, src.Frames)
}
