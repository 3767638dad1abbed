package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/octorun/internal/calcfile"
	"github.com/nvandessel/octorun/internal/calculation"
	"github.com/nvandessel/octorun/internal/history"
	"github.com/nvandessel/octorun/internal/params"
	"github.com/nvandessel/octorun/internal/pathutil"
	"github.com/nvandessel/octorun/internal/pipeline"
	"github.com/nvandessel/octorun/internal/report"
)

// defaultHistoryLimit caps octorun_history when no limit is given.
const defaultHistoryLimit = 20

// registerTools registers all octorun MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "octorun_render",
		Description: "Render an engine input file from parameters, a box, species and coordinates, or from a calculation file",
	}, s.handleRender)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "octorun_parse",
		Description: "Extract iterations and energies from an engine report (static/info)",
	}, s.handleParse)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "octorun_history",
		Description: "List recent calculation runs, or show one run by ID",
	}, s.handleHistory)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "octorun_run",
		Description: "Run the engine on a calculation file and return the parsed results",
	}, s.handleRun)
}

func (s *Server) handleRender(ctx context.Context, req *sdk.CallToolRequest, args RenderInput) (_ *sdk.CallToolResult, _ RenderOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("octorun_render", start, retErr, map[string]any{
			"calc_file":   args.CalcFile,
			"parameters":  args.Parameters,
			"box":         args.Box != nil,
			"species":     len(args.Species),
			"coordinates": len(args.Coordinates),
		})
	}()

	if err := s.limits.Check("octorun_render"); err != nil {
		return nil, RenderOutput{}, err
	}

	m := params.NewModel()
	if args.CalcFile != "" {
		path, err := pathutil.Confine(args.CalcFile, s.roots)
		if err != nil {
			return nil, RenderOutput{}, err
		}
		f, err := calcfile.Load(path)
		if err != nil {
			return nil, RenderOutput{}, err
		}
		if err := f.Apply(m); err != nil {
			return nil, RenderOutput{}, err
		}
	}

	if len(args.Parameters) > 0 {
		entries := make(map[string]params.Value, len(args.Parameters))
		for _, key := range sortedKeys(args.Parameters) {
			v, err := params.FromAny(args.Parameters[key])
			if err != nil {
				return nil, RenderOutput{}, fmt.Errorf("parameter %s: %w", key, err)
			}
			entries[key] = v
		}
		m.SetParameters(entries)
	}

	f := &calcfile.File{}
	if args.Box != nil {
		f.Box = &calcfile.Box{Length: args.Box.Length, Spacing: args.Box.Spacing}
	}
	for i, sp := range args.Species {
		extra := make([]params.Scalar, 0, len(sp.Extra))
		for j, e := range sp.Extra {
			sc, err := params.ScalarFromAny(e)
			if err != nil {
				return nil, RenderOutput{}, fmt.Errorf("species %d extra %d: %w", i, j, err)
			}
			extra = append(extra, sc)
		}
		f.Species = append(f.Species, calcfile.Species{
			Name: sp.Name, Mass: sp.Mass, Kind: sp.Kind, Charge: sp.Charge, Extra: extra,
		})
	}
	for _, c := range args.Coordinates {
		f.Coordinates = append(f.Coordinates, calcfile.Coordinate{Name: c.Name, Position: c.Position})
	}
	if err := f.Apply(m); err != nil {
		return nil, RenderOutput{}, err
	}

	lines := m.Lines()
	return nil, RenderOutput{
		Input:      strings.Join(lines, "\n") + "\n",
		Lines:      len(lines),
		OutputHow:  m.OutputHow(),
		Dimensions: m.Dimensions(),
	}, nil
}

func (s *Server) handleParse(ctx context.Context, req *sdk.CallToolRequest, args ParseInput) (_ *sdk.CallToolResult, out ParseOutput, retErr error) {
	start := time.Now()
	defer func() {
		auditErr := retErr
		if auditErr == nil && out.ErrorKind != "" {
			// The kind only; report errors quote report lines.
			auditErr = errors.New(out.ErrorKind)
		}
		s.auditTool("octorun_parse", start, auditErr, map[string]any{
			"report": args.Report,
			"dir":    args.Dir,
		})
	}()

	if err := s.limits.Check("octorun_parse"); err != nil {
		return nil, ParseOutput{}, err
	}

	var (
		rep *report.Report
		err error
	)
	switch {
	case args.Report != "":
		rep, err = report.Parse(strings.NewReader(args.Report))
	case args.Dir != "":
		dir, cerr := pathutil.Confine(args.Dir, s.roots)
		if cerr != nil {
			return nil, ParseOutput{}, cerr
		}
		path := filepath.Join(dir, calculation.StaticDir, calculation.ReportFile)
		if _, serr := os.Stat(path); serr != nil {
			path = filepath.Join(dir, calculation.ReportFile)
		}
		rep, err = report.ParseFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, ParseOutput{}, fmt.Errorf("no report found in %s", pathutil.Redact(dir))
		}
	default:
		return nil, ParseOutput{}, fmt.Errorf("either 'report' or 'dir' is required")
	}

	if err != nil {
		return nil, describeParseError(err), nil
	}
	return nil, ParseOutput{
		Iterations:     rep.Iterations,
		Converged:      rep.Converged(),
		TotalEnergy:    rep.TotalEnergy,
		KineticEnergy:  rep.KineticEnergy,
		ExternalEnergy: rep.ExternalEnergy,
		Warnings:       rep.Warnings,
	}, nil
}

// describeParseError maps report errors onto their kind and fields.
func describeParseError(err error) ParseOutput {
	out := ParseOutput{Error: err.Error(), ErrorKind: "bad_value"}

	var dup *report.DuplicateFieldError
	var inc *report.IncompleteReportError
	var bad *report.FieldParseError
	switch {
	case errors.As(err, &dup):
		out.ErrorKind = "duplicate_field"
		out.Fields = []string{string(dup.Field)}
	case errors.As(err, &inc):
		out.ErrorKind = "incomplete_report"
		for _, f := range inc.Missing {
			out.Fields = append(out.Fields, string(f))
		}
	case errors.As(err, &bad):
		out.Fields = []string{string(bad.Field)}
	}
	return out
}

func (s *Server) handleHistory(ctx context.Context, req *sdk.CallToolRequest, args HistoryInput) (_ *sdk.CallToolResult, _ HistoryOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("octorun_history", start, retErr, map[string]any{
			"limit": args.Limit,
			"id":    args.ID,
		})
	}()

	if err := s.limits.Check("octorun_history"); err != nil {
		return nil, HistoryOutput{}, err
	}
	if s.history == nil {
		return nil, HistoryOutput{}, fmt.Errorf("run history is disabled")
	}

	if args.ID != "" {
		r, err := s.history.Get(ctx, args.ID)
		if err != nil {
			return nil, HistoryOutput{}, err
		}
		return nil, HistoryOutput{Runs: []RunSummary{summarize(r)}, Count: 1}, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	runs, err := s.history.List(ctx, limit)
	if err != nil {
		return nil, HistoryOutput{}, err
	}
	out := HistoryOutput{Runs: make([]RunSummary, 0, len(runs))}
	for i := range runs {
		out.Runs = append(out.Runs, summarize(&runs[i]))
	}
	out.Count = len(out.Runs)
	return nil, out, nil
}

func (s *Server) handleRun(ctx context.Context, req *sdk.CallToolRequest, args RunInput) (_ *sdk.CallToolResult, _ RunOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("octorun_run", start, retErr, map[string]any{
			"calc_file":   args.CalcFile,
			"keep_folder": args.KeepFolder,
		})
	}()

	if err := s.limits.Check("octorun_run"); err != nil {
		return nil, RunOutput{}, err
	}
	if args.CalcFile == "" {
		return nil, RunOutput{}, fmt.Errorf("'calc_file' parameter is required")
	}
	path, err := pathutil.Confine(args.CalcFile, s.roots)
	if err != nil {
		return nil, RunOutput{}, err
	}

	out, err := pipeline.RunFile(ctx, path, pipeline.Options{
		Config:  s.settings,
		Logger:  s.logger,
		Events:  s.events,
		History: s.history,
		Keep:    args.KeepFolder,
		PerRun:  true,
	})
	if out == nil {
		return nil, RunOutput{}, err
	}
	defer out.Release()

	return nil, RunOutput{Run: summarize(out.Run), Workdir: out.Run.Workdir}, nil
}

func summarize(r *history.Run) RunSummary {
	return RunSummary{
		ID:             r.ID,
		StartedAt:      r.StartedAt,
		DurationMs:     r.Duration().Milliseconds(),
		CalcFile:       r.CalcFile,
		Status:         string(r.Status),
		Error:          r.Error,
		Iterations:     r.Iterations,
		TotalEnergy:    r.TotalEnergy,
		KineticEnergy:  r.KineticEnergy,
		ExternalEnergy: r.ExternalEnergy,
		DensityShape:   r.DensityShape,
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
