package main

import (
	"fmt"
	"io"
	"time"

	"github.com/nvandessel/octorun/internal/calculation"
	"github.com/nvandessel/octorun/internal/history"
	"github.com/nvandessel/octorun/internal/pipeline"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <calc-file>",
		Short: "Run the engine on a calculation file",
		Long: `Render the calculation file into an input file, run the engine in the
working folder and print the parsed energies, SCF iterations and density
shape. The folder is removed afterwards unless --keep, workdir.keep or the
file's keep_folder is set.

Examples:
  octorun run h.yaml
  octorun run h.hcl --keep --workdir /scratch/h
  OCTOPUS="mpirun -np 4 octopus" octorun run big.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workdir, _ := cmd.Flags().GetString("workdir")
			keep, _ := cmd.Flags().GetBool("keep")
			noHistory, _ := cmd.Flags().GetBool("no-history")

			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if cmd.Flags().Changed("timeout") {
				e.cfg.Engine.Timeout, _ = cmd.Flags().GetDuration("timeout")
			}

			var store *history.Store
			if !noHistory {
				if store, err = e.openHistory(); err != nil {
					return err
				}
				if store != nil {
					defer store.Close()
				}
			}

			ctx, stop := interruptContext(cmd.Context())
			defer stop()

			out, runErr := pipeline.RunFile(ctx, args[0], pipeline.Options{
				Config:  e.cfg,
				Logger:  e.logger,
				Events:  e.events,
				History: store,
				Workdir: workdir,
				Keep:    keep,
			})
			if out == nil {
				return runErr
			}
			defer out.Release()

			if jsonOutput(cmd) {
				if err := writeJSON(cmd.OutOrStdout(), runReport{Run: out.Run, Result: out.Result}); err != nil {
					return err
				}
			} else {
				printRun(cmd.OutOrStdout(), out.Run, out.Result)
			}
			return runErr
		},
	}

	cmd.Flags().String("workdir", "", "Working folder (overrides workdir.path)")
	cmd.Flags().Bool("keep", false, "Keep the working folder after the run")
	cmd.Flags().Duration("timeout", 0, "Kill the engine after this long (overrides engine.timeout)")
	cmd.Flags().Bool("no-history", false, "Do not record the run in the history database")
	return cmd
}

type runReport struct {
	Run    *history.Run        `json:"run"`
	Result *calculation.Result `json:"result,omitempty"`
}

func printRun(w io.Writer, r *history.Run, res *calculation.Result) {
	fmt.Fprintf(w, "run %s  %s  (%s)\n", shortID(r.ID), r.Status, r.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  workdir:          %s\n", r.Workdir)
	if r.Error != "" {
		fmt.Fprintf(w, "  error:            %s\n", r.Error)
	}
	if res == nil {
		return
	}
	fmt.Fprintf(w, "  iterations:       %d\n", res.Iterations)
	fmt.Fprintf(w, "  total energy:     %g\n", res.TotalEnergy)
	fmt.Fprintf(w, "  kinetic energy:   %g\n", res.KineticEnergy)
	fmt.Fprintf(w, "  external energy:  %g\n", res.ExternalEnergy)
	if res.Density != nil {
		fmt.Fprintf(w, "  density shape:    %v\n", res.Density.Shape())
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "  warning:          %s\n", warning)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
