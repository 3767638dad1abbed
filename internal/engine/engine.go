// Package engine launches the simulation executable in a working folder and
// captures its combined output.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/nvandessel/octorun/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultProgram is the executable used when none is configured.
const DefaultProgram = "octopus"

// ExitError is returned when the engine exits with a non-zero status.
type ExitError struct {
	Code int
	Log  string // path of the captured output
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("engine exited with status %d (see %s)", e.Code, e.Log)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Runner runs the engine. The zero value runs DefaultProgram without a
// timeout.
type Runner struct {
	// Command is the program followed by its arguments.
	Command []string

	// Timeout bounds a run. Zero means no limit beyond the caller's context.
	Timeout time.Duration

	Logger *slog.Logger
}

// NewRunner splits program on whitespace so wrappers such as
// "mpirun -np 4 octopus" work without a shell.
func NewRunner(program string, timeout time.Duration, logger *slog.Logger) *Runner {
	cmd := strings.Fields(program)
	if len(cmd) == 0 {
		cmd = []string{DefaultProgram}
	}
	return &Runner{Command: cmd, Timeout: timeout, Logger: logger}
}

// Run executes the engine with dir as working directory, writing stdout and
// stderr to logPath. It blocks until the process exits.
func (r *Runner) Run(ctx context.Context, dir, logPath string) (err error) {
	command := r.Command
	if len(command) == 0 {
		command = []string{DefaultProgram}
	}

	ctx, span := tracing.Tracer().Start(ctx, "engine.Run", trace.WithAttributes(
		attribute.String("octorun.engine.command", strings.Join(command, " ")),
		attribute.String("octorun.workdir", dir),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	out, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("creating engine log: %w", err)
	}
	defer out.Close()

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out

	logger.Debug("starting engine", "command", strings.Join(command, " "), "dir", dir)
	start := time.Now()
	err = cmd.Run()
	logger.Debug("engine finished", "duration", time.Since(start), "error", err)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("engine interrupted: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode(), Log: logPath, Err: err}
		}
		return fmt.Errorf("starting engine: %w", err)
	}
	return nil
}
