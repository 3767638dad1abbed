// Package calcfile loads declarative calculation files (YAML or HCL) and
// applies them to a parameter model.
package calcfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nvandessel/octorun/internal/params"
)

// ErrUnsupportedFormat is returned for file extensions other than .yaml,
// .yml and .hcl.
var ErrUnsupportedFormat = errors.New("unsupported calculation file format")

// Box describes a parallelepiped simulation box.
type Box struct {
	Length  float64 `yaml:"length" json:"length" hcl:"length"`
	Spacing float64 `yaml:"spacing" json:"spacing" hcl:"spacing"`
}

// Species is one user-defined species row.
type Species struct {
	Name   string          `json:"name"`
	Mass   float64         `json:"mass"`
	Kind   string          `json:"kind"`
	Charge float64         `json:"charge"`
	Extra  []params.Scalar `json:"-"`
}

// Coordinate places one atom of a species.
type Coordinate struct {
	Name     string    `yaml:"name" json:"name"`
	Position []float64 `yaml:"position" json:"position"`
}

// File is a decoded calculation file.
type File struct {
	Path        string
	Parameters  map[string]params.Value
	Box         *Box
	Species     []Species
	Coordinates []Coordinate

	// ReadDensity defaults to true when the file does not set it.
	ReadDensity bool
	KeepFolder  bool
}

// Load reads a calculation file, choosing the decoder by extension.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading calculation file: %w", err)
	}

	var f *File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err = ParseYAML(data)
	case ".hcl":
		f, err = ParseHCL(data, path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// Apply writes the file's settings into m: parameters first, then the box,
// then species and coordinates in file order.
func (f *File) Apply(m *params.Model) error {
	if len(f.Parameters) > 0 {
		m.SetParameters(f.Parameters)
	}
	if f.Box != nil {
		if f.Box.Length <= 0 || f.Box.Spacing <= 0 {
			return fmt.Errorf("box length and spacing must be positive, got %g and %g", f.Box.Length, f.Box.Spacing)
		}
		m.AddBoxParameters(f.Box.Length, f.Box.Spacing)
	}
	for i, s := range f.Species {
		if s.Name == "" {
			return fmt.Errorf("species %d: name is required", i)
		}
		m.AddSpecies(s.Name, s.Mass, s.Kind, s.Charge, s.Extra...)
	}
	for i, c := range f.Coordinates {
		if c.Name == "" {
			return fmt.Errorf("coordinate %d: name is required", i)
		}
		if len(c.Position) == 0 {
			return fmt.Errorf("coordinate %d (%s): position is required", i, c.Name)
		}
		m.AddCoordinate(c.Name, c.Position...)
	}
	return nil
}

// convertParameters classifies every decoded parameter once.
func convertParameters(raw map[string]any) (map[string]params.Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]params.Value, len(raw))
	for _, k := range keys {
		v, err := params.FromAny(raw[k])
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// convertExtra accepts a single value or a list of values.
func convertExtra(raw any) ([]params.Scalar, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		list = []any{raw}
	}
	out := make([]params.Scalar, 0, len(list))
	for i, v := range list {
		s, err := params.ScalarFromAny(v)
		if err != nil {
			return nil, fmt.Errorf("extra %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}
