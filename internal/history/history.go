// Package history records finished calculations in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/octorun/internal/calculation"
	"github.com/nvandessel/octorun/internal/engine"
	_ "modernc.org/sqlite" // SQLite driver
)

// Status is the outcome of a recorded run.
type Status string

const (
	StatusOK           Status = "ok"
	StatusEngineFailed Status = "engine_failed"
	StatusParseFailed  Status = "parse_failed"
	StatusFailed       Status = "failed"
)

// ErrNotFound is returned by Get when no run matches.
var ErrNotFound = errors.New("run not found")

// fixed-width so that text ordering matches time ordering
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Run is one history entry.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	CalcFile   string    `json:"calc_file,omitempty"`
	Workdir    string    `json:"workdir"`
	Input      string    `json:"input"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`

	Iterations     int     `json:"iterations"`
	TotalEnergy    float64 `json:"total_energy"`
	KineticEnergy  float64 `json:"kinetic_energy"`
	ExternalEnergy float64 `json:"external_energy"`
	DensityShape   []int   `json:"density_shape,omitempty"`
}

// NewRun starts a history entry with a fresh ID.
func NewRun(calcFile, workdir, input string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		CalcFile:  calcFile,
		Workdir:   workdir,
		Input:     input,
	}
}

// Finish stamps the run with its outcome.
func (r *Run) Finish(res *calculation.Result, err error) {
	r.FinishedAt = time.Now().UTC()
	r.Status = Classify(err)
	if err != nil {
		r.Error = err.Error()
	}
	if res == nil {
		return
	}
	r.Iterations = res.Iterations
	r.TotalEnergy = res.TotalEnergy
	r.KineticEnergy = res.KineticEnergy
	r.ExternalEnergy = res.ExternalEnergy
	if res.Density != nil {
		r.DensityShape = res.Density.Shape()
	}
}

// Duration is zero for runs that never finished.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Classify maps a calculation error onto a run status.
func Classify(err error) Status {
	var exitErr *engine.ExitError
	switch {
	case err == nil:
		return StatusOK
	case errors.As(err, &exitErr), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusEngineFailed
	case errors.Is(err, calculation.ErrOutput):
		return StatusParseFailed
	default:
		return StatusFailed
	}
}

// Store is the SQLite-backed history.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Record inserts or replaces a run.
func (s *Store) Record(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	var shape sql.NullString
	if len(r.DensityShape) > 0 {
		b, err := json.Marshal(r.DensityShape)
		if err != nil {
			return fmt.Errorf("failed to encode density shape: %w", err)
		}
		shape = sql.NullString{String: string(b), Valid: true}
	}

	var finished sql.NullString
	if !r.FinishedAt.IsZero() {
		finished = sql.NullString{String: r.FinishedAt.UTC().Format(timeFormat), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			id, started_at, finished_at, calc_file, workdir, input, status, error,
			iterations, total_energy, kinetic_energy, external_energy, density_shape
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC().Format(timeFormat), finished,
		nullString(r.CalcFile), r.Workdir, r.Input, string(r.Status), nullString(r.Error),
		r.Iterations, r.TotalEnergy, r.KineticEnergy, r.ExternalEnergy, shape,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

const selectRuns = `
	SELECT id, started_at, finished_at, calc_file, workdir, input, status, error,
	       iterations, total_energy, kinetic_energy, external_energy, density_shape
	FROM runs`

// Get returns the run with the given ID or unique ID prefix.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx, selectRuns+` WHERE substr(id, 1, ?) = ? ORDER BY id = ? DESC LIMIT 2`,
		len(id), id, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}

	switch {
	case len(runs) == 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case runs[0].ID == id || len(runs) == 1:
		return &runs[0], nil
	default:
		return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
	}
}

// List returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := selectRuns + ` ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return scanRuns(rows)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                          Run
			started                    string
			finished, calcFile, errStr sql.NullString
			status                     string
			shape                      sql.NullString
			iterations                 sql.NullInt64
			total, kinetic, external   sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &started, &finished, &calcFile, &r.Workdir, &r.Input, &status, &errStr,
			&iterations, &total, &kinetic, &external, &shape); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		var err error
		if r.StartedAt, err = time.Parse(timeFormat, started); err != nil {
			return nil, fmt.Errorf("run %s: bad started_at: %w", r.ID, err)
		}
		if finished.Valid {
			if r.FinishedAt, err = time.Parse(timeFormat, finished.String); err != nil {
				return nil, fmt.Errorf("run %s: bad finished_at: %w", r.ID, err)
			}
		}
		if shape.Valid {
			if err := json.Unmarshal([]byte(shape.String), &r.DensityShape); err != nil {
				return nil, fmt.Errorf("run %s: bad density shape: %w", r.ID, err)
			}
		}
		r.CalcFile = calcFile.String
		r.Error = errStr.String
		r.Status = Status(status)
		r.Iterations = int(iterations.Int64)
		r.TotalEnergy = total.Float64
		r.KineticEnergy = kinetic.Float64
		r.ExternalEnergy = external.Float64
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
