// Package pipeline runs calculation files end to end: load, configure,
// execute and record.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/nvandessel/octorun/internal/calcfile"
	"github.com/nvandessel/octorun/internal/calculation"
	"github.com/nvandessel/octorun/internal/config"
	"github.com/nvandessel/octorun/internal/engine"
	"github.com/nvandessel/octorun/internal/history"
	"github.com/nvandessel/octorun/internal/logging"
	"github.com/nvandessel/octorun/internal/params"
	"github.com/nvandessel/octorun/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Options carries the shared services a run needs. Only Config is required.
type Options struct {
	Config  *config.OctorunConfig
	Logger  *slog.Logger
	Events  *logging.EventLogger
	History *history.Store

	// Workdir overrides Config.Workdir.Path when set.
	Workdir string

	// Keep forces the working folder to be kept.
	Keep bool

	// PerRun places the working folder in a subfolder named after the run
	// ID, so concurrent runs never share one.
	PerRun bool
}

// Outcome is what a finished run produced. Result is nil when the run
// failed before results were read.
type Outcome struct {
	Run    *history.Run
	Result *calculation.Result
}

// Release frees the result's density buffer.
func (o *Outcome) Release() {
	if o != nil {
		o.Result.Release()
	}
}

// Render loads a calculation file and returns the input file it produces.
func Render(path string) (string, error) {
	f, err := calcfile.Load(path)
	if err != nil {
		return "", err
	}
	m := params.NewModel()
	if err := f.Apply(m); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return strings.Join(m.Lines(), "\n") + "\n", nil
}

// RunFile executes the calculation described by the file at path. The
// returned Outcome is non-nil whenever the engine was reached, even if the
// run failed, so callers can report the recorded history entry.
func RunFile(ctx context.Context, path string, opts Options) (_ *Outcome, retErr error) {
	ctx, span := tracing.Tracer().Start(ctx, "pipeline.RunFile", trace.WithAttributes(
		attribute.String("octorun.calc_file", path),
	))
	defer func() {
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, retErr.Error())
		}
		span.End()
	}()

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f, err := calcfile.Load(path)
	if err != nil {
		return nil, err
	}

	run := history.NewRun(path, "", "")

	folder := cfg.Workdir.Path
	if opts.Workdir != "" {
		folder = opts.Workdir
	}
	if opts.PerRun {
		folder = filepath.Join(folder, run.ID)
	}
	keep := opts.Keep || cfg.Workdir.Keep || f.KeepFolder

	events := opts.Events.ForRun(run.ID)
	logger = logger.With("run_id", run.ID)

	calc, err := calculation.New(calculation.Options{
		Folder: folder,
		Keep:   keep,
		Runner: engine.NewRunner(cfg.Engine.Program, cfg.Engine.Timeout, logger),
		Logger: logger,
		Events: events,
	})
	if err != nil {
		return nil, err
	}
	if err := f.Apply(calc.Model); err != nil {
		if cerr := calc.Close(); cerr != nil {
			logger.Warn("work folder not released", "path", calc.Folder(), "error", cerr)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	run.Workdir = calc.Folder()
	run.Input = calc.Input()
	events.Log("run_started", map[string]any{"calc_file": path, "workdir": run.Workdir, "keep": keep})
	logger.Info("running engine", "calc_file", path, "workdir", run.Workdir)

	res, runErr := calc.Execute(ctx, f.ReadDensity)
	run.Finish(res, runErr)
	span.SetAttributes(
		attribute.String("octorun.run_id", run.ID),
		attribute.String("octorun.status", string(run.Status)),
		attribute.Int("octorun.iterations", run.Iterations),
	)
	events.Log("run_finished", map[string]any{"status": string(run.Status), "iterations": run.Iterations})

	if opts.History != nil {
		// A fresh context so cancelled runs are still recorded.
		if err := opts.History.Record(context.Background(), run); err != nil {
			logger.Warn("run not recorded", "error", err)
		}
	}

	return &Outcome{Run: run, Result: res}, runErr
}
