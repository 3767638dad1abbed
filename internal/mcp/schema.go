package mcp

import "time"

// BoxInput describes a parallelepiped box.
type BoxInput struct {
	Length  float64 `json:"length" jsonschema:"Edge length of the box"`
	Spacing float64 `json:"spacing" jsonschema:"Grid spacing"`
}

// SpeciesInput is one species row.
type SpeciesInput struct {
	Name   string  `json:"name" jsonschema:"Species label"`
	Mass   float64 `json:"mass" jsonschema:"Mass"`
	Kind   string  `json:"kind" jsonschema:"Species kind, e.g. species_user_defined"`
	Charge float64 `json:"charge" jsonschema:"Valence charge"`
	Extra  []any   `json:"extra,omitempty" jsonschema:"Additional row fields; strings are single-quoted"`
}

// CoordinateInput places one atom.
type CoordinateInput struct {
	Name     string    `json:"name" jsonschema:"Species label"`
	Position []float64 `json:"position" jsonschema:"Cartesian position, one component per dimension"`
}

// RenderInput defines the input for the octorun_render tool.
type RenderInput struct {
	CalcFile    string            `json:"calc_file,omitempty" jsonschema:"Calculation file (.yaml, .yml or .hcl) applied before the other fields"`
	Parameters  map[string]any    `json:"parameters,omitempty" jsonschema:"Engine parameters; lists become blocks and lists of lists become tables"`
	Box         *BoxInput         `json:"box,omitempty" jsonschema:"Parallelepiped box"`
	Species     []SpeciesInput    `json:"species,omitempty" jsonschema:"Species rows"`
	Coordinates []CoordinateInput `json:"coordinates,omitempty" jsonschema:"Coordinate rows"`
}

// RenderOutput defines the output for the octorun_render tool.
type RenderOutput struct {
	Input      string `json:"input" jsonschema:"Rendered input file"`
	Lines      int    `json:"lines" jsonschema:"Number of lines"`
	OutputHow  string `json:"output_how" jsonschema:"Derived output mode"`
	Dimensions int    `json:"dimensions" jsonschema:"Effective dimensionality"`
}

// ParseInput defines the input for the octorun_parse tool.
type ParseInput struct {
	Report string `json:"report,omitempty" jsonschema:"Report text as written to static/info"`
	Dir    string `json:"dir,omitempty" jsonschema:"Calculation folder holding static/info; used when report is empty"`
}

// ParseOutput defines the output for the octorun_parse tool. A malformed
// report is described by ErrorKind rather than failing the call.
type ParseOutput struct {
	Iterations     int      `json:"iterations"`
	Converged      bool     `json:"converged"`
	TotalEnergy    float64  `json:"total_energy"`
	KineticEnergy  float64  `json:"kinetic_energy"`
	ExternalEnergy float64  `json:"external_energy"`
	Warnings       []string `json:"warnings,omitempty"`
	ErrorKind      string   `json:"error_kind,omitempty" jsonschema:"duplicate_field, incomplete_report or bad_value"`
	Error          string   `json:"error,omitempty"`
	Fields         []string `json:"fields,omitempty" jsonschema:"Fields involved in the error"`
}

// HistoryInput defines the input for the octorun_history tool.
type HistoryInput struct {
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of runs (default 20)"`
	ID    string `json:"id,omitempty" jsonschema:"Run ID or unique prefix; returns that run only"`
}

// RunSummary is a history entry without the rendered input.
type RunSummary struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	DurationMs     int64     `json:"duration_ms"`
	CalcFile       string    `json:"calc_file,omitempty"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	Iterations     int       `json:"iterations"`
	TotalEnergy    float64   `json:"total_energy"`
	KineticEnergy  float64   `json:"kinetic_energy"`
	ExternalEnergy float64   `json:"external_energy"`
	DensityShape   []int     `json:"density_shape,omitempty"`
}

// HistoryOutput defines the output for the octorun_history tool.
type HistoryOutput struct {
	Runs  []RunSummary `json:"runs"`
	Count int          `json:"count"`
}

// RunInput defines the input for the octorun_run tool.
type RunInput struct {
	CalcFile   string `json:"calc_file" jsonschema:"Calculation file (.yaml, .yml or .hcl)"`
	KeepFolder bool   `json:"keep_folder,omitempty" jsonschema:"Keep the working folder after the run"`
}

// RunOutput defines the output for the octorun_run tool. Engine and parse
// failures are reported through Status and Error.
type RunOutput struct {
	Run     RunSummary `json:"run"`
	Workdir string     `json:"workdir"`
}
