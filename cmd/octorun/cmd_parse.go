package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/octorun/internal/calcfile"
	"github.com/nvandessel/octorun/internal/calculation"
	"github.com/nvandessel/octorun/internal/params"
	"github.com/spf13/cobra"
)

func newParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <dir>",
		Short: "Parse the output of a finished calculation",
		Long: `Parse the report (static/info) of a calculation folder kept from an
earlier run. <dir> may be the calculation folder or its static folder.

With --density the density file is loaded as well; pass the calculation
file with --calc so the output mode and dimensionality match the run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			calcPath, _ := cmd.Flags().GetString("calc")
			readDensity, _ := cmd.Flags().GetBool("density")

			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			m := params.NewModel()
			if calcPath != "" {
				f, err := calcfile.Load(calcPath)
				if err != nil {
					return err
				}
				if err := f.Apply(m); err != nil {
					return err
				}
			}

			res, err := calculation.ReadResult(staticDir(args[0]), m, readDensity, e.logger)
			if err != nil {
				return err
			}
			defer res.Release()

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "iterations:       %d\n", res.Iterations)
			fmt.Fprintf(w, "total energy:     %g\n", res.TotalEnergy)
			fmt.Fprintf(w, "kinetic energy:   %g\n", res.KineticEnergy)
			fmt.Fprintf(w, "external energy:  %g\n", res.ExternalEnergy)
			if res.Density != nil {
				fmt.Fprintf(w, "density shape:    %v\n", res.Density.Shape())
			}
			for _, warning := range res.Warnings {
				fmt.Fprintf(w, "warning:          %s\n", warning)
			}
			return nil
		},
	}
	cmd.Flags().String("calc", "", "Calculation file the folder was produced from")
	cmd.Flags().Bool("density", false, "Also load the density")
	return cmd
}

// staticDir accepts either the calculation folder or its static folder.
func staticDir(dir string) string {
	static := filepath.Join(dir, calculation.StaticDir)
	if info, err := os.Stat(static); err == nil && info.IsDir() {
		return static
	}
	return dir
}
