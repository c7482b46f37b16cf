package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"framectl/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, disk space and external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			results := preflight.RunAll(cmd.Context(), cfg)
			report := newCheckReport(out, "Environment")
			for _, result := range results {
				report.add(result)
			}
			fmt.Fprintln(out, strings.Join(report.lines, "\n"))
			fmt.Fprintln(out, report.summary(len(results)))
			if report.failed > 0 {
				return fmt.Errorf("%s", report.summary(len(results)))
			}
			return nil
		},
	}
}
