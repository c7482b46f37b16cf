package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"framectl/internal/runlog"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statuses []string

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded generation calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *runlog.Store) error {
				runs, err := store.List(cmd.Context(), limit, statuses...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Started", "Status", "Units", "Length", "Batch", "Frames", "Error"},
					runRows(runs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	runsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	runsCmd.Flags().StringSliceVar(&statuses, "status", nil, "Only show runs with these statuses")

	runsCmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Mark runs left running by a dead process as failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *runlog.Store) error {
				n, err := store.MarkAbandoned(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %d abandoned runs as failed\n", n)
				return nil
			})
		},
	})
	return runsCmd
}

func runRows(runs []*runlog.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		id := run.ID
		if len(id) > 8 {
			id = id[:8]
		}
		started := "-"
		if !run.CreatedAt.IsZero() {
			started = run.CreatedAt.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{
			id,
			started,
			displayLabel(run.Status),
			strconv.Itoa(len(run.Units)),
			strconv.Itoa(run.VideoLength),
			strconv.Itoa(run.BatchSize),
			strconv.Itoa(run.Frames),
			truncate(run.Error, 48),
		})
	}
	return rows
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
