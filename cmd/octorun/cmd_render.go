package main

import (
	"fmt"
	"os"

	"github.com/nvandessel/octorun/internal/pipeline"
	"github.com/spf13/cobra"
)

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <calc-file>",
		Short: "Print the input file a calculation file produces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")

			input, err := pipeline.Render(args[0])
			if err != nil {
				return err
			}

			if output != "" {
				if err := os.WriteFile(output, []byte(input), 0644); err != nil {
					return fmt.Errorf("failed to write %s: %w", output, err)
				}
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"calc_file": args[0], "input": input, "output": output})
			}
			if output == "" {
				fmt.Fprint(cmd.OutOrStdout(), input)
			}
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Write the input file here instead of stdout")
	return cmd
}
