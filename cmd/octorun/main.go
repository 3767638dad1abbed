package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/nvandessel/octorun/internal/config"
	"github.com/nvandessel/octorun/internal/history"
	"github.com/nvandessel/octorun/internal/logging"
	"github.com/nvandessel/octorun/internal/tracing"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "octorun",
		Short: "Prepare, run and parse Octopus DFT calculations",
		Long: `octorun renders Octopus input files from declarative calculation files,
runs the engine in a scoped working folder and extracts energies, SCF
iterations and the electron density from its output.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.octorun/config.yaml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newRenderCmd(),
		newParseCmd(),
		newHistoryCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "octorun version %s\n", version)
			return nil
		},
	}
}

// env bundles the settings and loggers shared by every command.
type env struct {
	cfg    *config.OctorunConfig
	logger *slog.Logger
	events *logging.EventLogger

	shutdownTracing func(context.Context) error
}

// loadEnv reads the configuration named by --config and builds the loggers.
func loadEnv(cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &env{
		cfg:    cfg,
		logger: logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()),
	}
	if dir, err := config.Dir(); err == nil {
		e.events = logging.NewEventLogger(dir, cfg.Logging.Level)
	}

	e.shutdownTracing, err = tracing.Setup(cmd.Context(), "octorun", cfg.Tracing.Endpoint)
	if err != nil {
		e.logger.Warn("tracing disabled", "endpoint", cfg.Tracing.Endpoint, "error", err)
	}
	return e, nil
}

func (e *env) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.shutdownTracing(ctx); err != nil {
		e.logger.Warn("flushing traces", "error", err)
	}
	e.events.Close()
}

// openHistory returns nil when history is disabled.
func (e *env) openHistory() (*history.Store, error) {
	if !e.cfg.History.Enabled {
		return nil, nil
	}
	path, err := e.cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
