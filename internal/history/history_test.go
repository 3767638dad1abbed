package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/octorun/internal/calculation"
	"github.com/nvandessel/octorun/internal/density"
	"github.com/nvandessel/octorun/internal/engine"
	"github.com/nvandessel/octorun/internal/report"

	_ "modernc.org/sqlite"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sub", "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, StatusOK},
		{"exit", fmt.Errorf("run: %w", &engine.ExitError{Code: 1}), StatusEngineFailed},
		{"timeout", fmt.Errorf("engine interrupted: %w", context.DeadlineExceeded), StatusEngineFailed},
		{"canceled", context.Canceled, StatusEngineFailed},
		{"report", fmt.Errorf("%w: report: %w", calculation.ErrOutput, report.ErrIncompleteReport), StatusParseFailed},
		{"other", errors.New("disk full"), StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRecordGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	field, err := density.Reshape([]float64{1, 2, 3, 4, 5, 6, 7, 8}, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer field.Release()

	r := NewRun("h.yaml", "/tmp/calc", "CalculationMode = gs\n")
	r.Finish(&calculation.Result{
		TotalEnergy:    -0.5,
		KineticEnergy:  0.25,
		ExternalEnergy: -0.75,
		Iterations:     7,
		Density:        field,
	}, nil)

	if err := s.Record(ctx, r); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusOK || got.Iterations != 7 || got.TotalEnergy != -0.5 {
		t.Errorf("Get() = %+v", got)
	}
	if got.CalcFile != "h.yaml" || got.Input != "CalculationMode = gs\n" {
		t.Errorf("text fields lost: %+v", got)
	}
	if len(got.DensityShape) != 3 || got.DensityShape[0] != 2 {
		t.Errorf("DensityShape = %v, want [2 2 2]", got.DensityShape)
	}
	if !got.StartedAt.Equal(r.StartedAt) || !got.FinishedAt.Equal(r.FinishedAt) {
		t.Errorf("times = %v/%v, want %v/%v", got.StartedAt, got.FinishedAt, r.StartedAt, r.FinishedAt)
	}
	if got.Duration() < 0 {
		t.Errorf("Duration() = %v", got.Duration())
	}

	prefix, err := s.Get(ctx, r.ID[:8])
	if err != nil || prefix.ID != r.ID {
		t.Errorf("Get(prefix) = %v, %v", prefix, err)
	}
}

func TestRecord_Failure(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	r := NewRun("", "/tmp/calc", "")
	r.Finish(nil, &engine.ExitError{Code: 2, Log: "/tmp/calc/output"})
	if err := s.Record(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusEngineFailed || got.Error == "" {
		t.Errorf("Get() = %+v, want engine_failed with error", got)
	}
	if got.CalcFile != "" || got.DensityShape != nil {
		t.Errorf("unexpected fields: %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := openStore(t)
	for _, id := range []string{"", "missing"} {
		if _, err := s.Get(context.Background(), id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}

func TestGet_AmbiguousPrefix(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for _, id := range []string{"abc-1", "abc-2"} {
		if err := s.Record(ctx, &Run{ID: id, StartedAt: time.Now(), Status: StatusOK}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Get(ctx, "abc"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Get(abc) error = %v, want ambiguity error", err)
	}
	if got, err := s.Get(ctx, "abc-1"); err != nil || got.ID != "abc-1" {
		t.Errorf("Get(abc-1) = %v, %v", got, err)
	}
}

func TestList_NewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r := &Run{
			ID:        fmt.Sprintf("run-%d", i),
			StartedAt: base.Add(time.Duration(i) * time.Millisecond * 10),
			Status:    StatusOK,
		}
		if err := s.Record(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.List(ctx, 3)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("List(3) returned %d runs", len(runs))
	}
	for i, want := range []string{"run-4", "run-3", "run-2"} {
		if runs[i].ID != want {
			t.Errorf("runs[%d] = %s, want %s", i, runs[i].ID, want)
		}
	}

	all, err := s.List(ctx, 0)
	if err != nil || len(all) != 5 {
		t.Errorf("List(0) = %d runs, %v", len(all), err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Record(context.Background(), &Run{ID: "keep", StartedAt: time.Now(), Status: StatusOK}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	if _, err := s.Get(context.Background(), "keep"); err != nil {
		t.Errorf("run lost after reopen: %v", err)
	}
	if s.Path() != path {
		t.Errorf("Path() = %s", s.Path())
	}
}

func TestInitSchema_NewerVersion(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("second InitSchema() error = %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO schema_version (version, applied_at) VALUES (?, 'now')`, SchemaVersion+1); err != nil {
		t.Fatal(err)
	}
	if err := InitSchema(ctx, db); err == nil {
		t.Error("expected error for newer schema version")
	}
}
