package main

import (
	"fmt"
	"os"

	"github.com/nvandessel/octorun/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage octorun configuration",
		Long: `View and modify octorun configuration settings.

Configuration is stored in ~/.octorun/config.yaml unless --config names
another file. Environment variables (OCTOPUS, OCTORUN_TIMEOUT,
OCTORUN_WORKDIR, OCTORUN_KEEP_FOLDER, OCTORUN_HISTORY, OCTORUN_HISTORY_PATH,
OCTORUN_LOG_LEVEL, OCTORUN_OTEL_ENDPOINT) override the file.

Examples:
  octorun config list
  octorun config get engine.program
  octorun config set engine.program "mpirun -np 4 octopus"
  octorun config set engine.timeout 2h`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)
	return cmd
}

// configPath returns --config or the default location.
func configPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p, nil
	}
	return config.DefaultPath()
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Configuration (%s):\n\n", path)
			for _, key := range config.Keys() {
				v, _ := cfg.Get(key)
				fmt.Fprintf(w, "  %-16s %s\n", key+":", valueOrDefault(fmt.Sprint(v), "(default)"))
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			key := args[0]
			value, found := cfg.Get(key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"key": key, "value": fmt.Sprint(value)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			// Environment overrides must not leak into the saved file.
			cfg := config.Default()
			if _, err := os.Stat(path); err == nil {
				loaded, err := config.LoadFromFile(path)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				cfg = loaded
			}

			key, value := args[0], args[1]
			if err := cfg.Set(key, value); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"status": "updated", "key": key, "value": value})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

func valueOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
