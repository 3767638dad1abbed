// Package calculation ties one parameter model to one working folder and
// one engine run: write the input file, run the engine, read the results.
package calculation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvandessel/octorun/internal/density"
	"github.com/nvandessel/octorun/internal/engine"
	"github.com/nvandessel/octorun/internal/logging"
	"github.com/nvandessel/octorun/internal/params"
	"github.com/nvandessel/octorun/internal/report"
	"github.com/nvandessel/octorun/internal/workdir"
)

// File names inside the working folder.
const (
	InputFile  = "inp"
	LogFile    = "output"
	StaticDir  = "static"
	ReportFile = "info"
)

// ErrOutput wraps every failure to read the engine's report or density.
var ErrOutput = errors.New("reading engine output")

// Result holds the values extracted from a finished run.
type Result struct {
	TotalEnergy    float64        `json:"total_energy"`
	KineticEnergy  float64        `json:"kinetic_energy"`
	ExternalEnergy float64        `json:"external_energy"`
	Iterations     int            `json:"iterations"`
	Density        *density.Field `json:"density,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
}

// Converged reports whether the SCF cycle converged.
func (r *Result) Converged() bool { return r.Iterations > 0 }

// Release frees the density buffer, if any.
func (r *Result) Release() {
	if r != nil {
		r.Density.Release()
	}
}

// Options configures a Calculation.
type Options struct {
	// Folder is the working folder; empty means workdir.DefaultName.
	Folder string

	// Keep leaves the folder in place on Close.
	Keep bool

	// Runner launches the engine. Nil means engine.DefaultProgram.
	Runner *engine.Runner

	Logger *slog.Logger
	Events *logging.EventLogger
}

// Calculation is one configure/run/parse cycle. It is not safe for
// concurrent use.
type Calculation struct {
	*params.Model

	dir    *workdir.Dir
	runner *engine.Runner
	logger *slog.Logger
	events *logging.EventLogger
}

// New acquires the working folder and returns a Calculation with a fresh
// parameter model.
func New(opts Options) (*Calculation, error) {
	dir, err := workdir.Acquire(opts.Folder, opts.Keep)
	if err != nil {
		return nil, err
	}

	runner := opts.Runner
	if runner == nil {
		runner = engine.NewRunner(engine.DefaultProgram, 0, opts.Logger)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Calculation{
		Model:  params.NewModel(),
		dir:    dir,
		runner: runner,
		logger: logger,
		events: opts.Events,
	}, nil
}

// Folder returns the working folder path.
func (c *Calculation) Folder() string { return c.dir.Path() }

// KeepFolder changes whether Close removes the working folder.
func (c *Calculation) KeepFolder(keep bool) { c.dir.SetKeep(keep) }

// Input returns the rendered input file.
func (c *Calculation) Input() string {
	lines := c.Lines()
	return strings.Join(lines, "\n") + "\n"
}

// WriteInput renders the model into the folder's input file, replacing any
// previous content.
func (c *Calculation) WriteInput() error {
	path := c.dir.Path(InputFile)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating input file: %w", err)
	}
	if _, err := c.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("writing input file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing input file: %w", err)
	}

	c.logger.Debug("input written", "path", path)
	c.logger.Log(context.Background(), logging.LevelTrace, "input file", "content", c.Input())
	c.events.Log("input_written", map[string]any{"path": path, "lines": len(c.Lines())})
	return nil
}

// Run launches the engine in the working folder and waits for it to exit.
func (c *Calculation) Run(ctx context.Context) error {
	start := time.Now()
	err := c.runner.Run(ctx, c.dir.Path(), c.dir.Path(LogFile))

	fields := map[string]any{"duration_ms": time.Since(start).Milliseconds()}
	var exitErr *engine.ExitError
	if errors.As(err, &exitErr) {
		fields["exit_code"] = exitErr.Code
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	c.events.Log("engine_finished", fields)
	return err
}

// Output parses the report and, when readDensity is set and the Output
// parameter requests it, loads the density.
func (c *Calculation) Output(readDensity bool) (*Result, error) {
	static := c.dir.Path(StaticDir)
	res, err := ReadResult(static, c.Model, readDensity, c.logger)
	if err != nil {
		c.events.Log("report_failed", map[string]any{"error": err.Error()})
		return nil, err
	}

	fields := map[string]any{
		"iterations":   res.Iterations,
		"converged":    res.Converged(),
		"total_energy": res.TotalEnergy,
	}
	if res.Density != nil {
		fields["density_shape"] = res.Density.Shape()
	}
	c.events.Log("report_parsed", fields)
	return res, nil
}

// Close releases the working folder.
func (c *Calculation) Close() error {
	return c.dir.Release()
}

// Execute writes the input, runs the engine and reads the results, then
// closes the calculation whatever the outcome. A cleanup failure is
// reported only when the cycle itself succeeded.
//
// A non-zero engine exit does not discard a complete report: the results are
// returned with the exit error as a warning. When the report cannot be read
// either, the exit error is returned.
func (c *Calculation) Execute(ctx context.Context, readDensity bool) (res *Result, err error) {
	defer func() {
		if cerr := c.Close(); cerr != nil {
			if err == nil {
				err = fmt.Errorf("releasing work folder: %w", cerr)
			} else {
				c.logger.Warn("work folder not released", "path", c.Folder(), "error", cerr)
			}
		}
	}()

	if err := c.WriteInput(); err != nil {
		return nil, err
	}
	runErr := c.Run(ctx)
	var exitErr *engine.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return nil, runErr
	}

	res, err = c.Output(readDensity)
	if runErr == nil {
		return res, err
	}
	if err != nil {
		return nil, runErr
	}
	c.logger.Warn("engine failed but its report is complete", "exit_code", exitErr.Code, "log", exitErr.Log)
	res.Warnings = append(res.Warnings, runErr.Error())
	return res, nil
}

// ReadResult parses staticDir/info and optionally the density file, using
// the model for output mode, Output setting and dimensionality.
func ReadResult(staticDir string, model *params.Model, readDensity bool, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rep, err := report.ParseFile(filepath.Join(staticDir, ReportFile))
	if err != nil {
		return nil, fmt.Errorf("%w: report: %w", ErrOutput, err)
	}
	for _, w := range rep.Warnings {
		logger.Warn(w, "dir", staticDir)
	}

	res := &Result{
		TotalEnergy:    rep.TotalEnergy,
		KineticEnergy:  rep.KineticEnergy,
		ExternalEnergy: rep.ExternalEnergy,
		Iterations:     rep.Iterations,
		Warnings:       rep.Warnings,
	}

	if readDensity && density.Requested(model.Output()) {
		field, err := density.Load(staticDir, model.OutputHow(), model.Dimensions())
		if err != nil {
			return nil, fmt.Errorf("%w: density: %w", ErrOutput, err)
		}
		logger.Debug("density loaded", "shape", field.Shape())
		res.Density = field
	}
	return res, nil
}
