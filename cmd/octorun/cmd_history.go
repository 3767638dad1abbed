package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nvandessel/octorun/internal/history"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or show one run in full",
		Long: `List recorded runs, newest first. With a run ID (or a unique prefix of
one) show that run including the input file it was started with.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			store, err := e.openHistory()
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("run history is disabled (history.enabled = false)")
			}
			defer store.Close()

			w := cmd.OutOrStdout()
			if len(args) == 1 {
				r, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return writeJSON(w, r)
				}
				printRunDetail(w, r)
				return nil
			}

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(w, map[string]any{"runs": runs, "count": len(runs)})
			}
			printRunList(w, runs, time.Now())
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}

func printRunList(w io.Writer, runs []history.Run, now time.Time) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	fmt.Fprintf(w, "%-8s  %-14s  %-13s  %5s  %14s  %s\n", "ID", "STARTED", "STATUS", "ITER", "TOTAL ENERGY", "CALC FILE")
	for _, r := range runs {
		calc := r.CalcFile
		if calc == "" {
			calc = "-"
		}
		fmt.Fprintf(w, "%-8s  %-14s  %-13s  %5d  %14.6f  %s\n",
			shortID(r.ID), humanize.RelTime(r.StartedAt, now, "ago", "from now"), r.Status,
			r.Iterations, r.TotalEnergy, calc)
	}
}

func printRunDetail(w io.Writer, r *history.Run) {
	fmt.Fprintf(w, "Run %s\n", r.ID)
	fmt.Fprintf(w, "  started:          %s (%s)\n", r.StartedAt.Local().Format(time.RFC3339), humanize.Time(r.StartedAt))
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(w, "  duration:         %s\n", r.Duration().Round(time.Millisecond))
	}
	fmt.Fprintf(w, "  status:           %s\n", r.Status)
	if r.CalcFile != "" {
		fmt.Fprintf(w, "  calc file:        %s\n", r.CalcFile)
	}
	fmt.Fprintf(w, "  workdir:          %s\n", r.Workdir)
	if r.Error != "" {
		fmt.Fprintf(w, "  error:            %s\n", r.Error)
	}
	if r.Status == history.StatusOK {
		fmt.Fprintf(w, "  iterations:       %d\n", r.Iterations)
		fmt.Fprintf(w, "  total energy:     %g\n", r.TotalEnergy)
		fmt.Fprintf(w, "  kinetic energy:   %g\n", r.KineticEnergy)
		fmt.Fprintf(w, "  external energy:  %g\n", r.ExternalEnergy)
		if len(r.DensityShape) > 0 {
			fmt.Fprintf(w, "  density shape:    %v\n", r.DensityShape)
		}
	}
	if r.Input != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Input:")
		for _, line := range strings.Split(strings.TrimRight(r.Input, "\n"), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}
