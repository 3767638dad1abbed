package params

import (
	"math"
	"strings"
)

// Parameter names the model reads or derives.
const (
	KeyCalculationMode = "CalculationMode"
	KeyOutputHow       = "OutputHow"
	KeyOutput          = "Output"
	KeyDimensions      = "Dimensions"
	KeySpecies         = "Species"
	KeyCoordinates     = "Coordinates"
	KeyLsize           = "Lsize"
	KeySpacing         = "Spacing"
	KeyBoxShape        = "BoxShape"
)

// Output modes derived from Dimensions.
const (
	OutputHowCube  = "cube"
	OutputHowAxisX = "axis_x"
)

// DefaultDimensions applies when the Dimensions parameter is absent.
const DefaultDimensions = 3

// Model accumulates parameters, species and coordinates for one calculation.
// A Model is not safe for concurrent use; give every run its own instance.
type Model struct {
	params      map[string]Value
	species     [][]Scalar
	coordinates [][]Scalar
}

// NewModel returns a model seeded with a ground-state calculation that
// writes the density as a cube file.
func NewModel() *Model {
	return &Model{
		params: map[string]Value{
			KeyCalculationMode: ScalarValue(String("gs")),
			KeyOutputHow:       ScalarValue(String(OutputHowCube)),
			KeyOutput:          ScalarValue(String("density")),
		},
	}
}

// SetParameters merges entries into the model, later values winning, and
// recomputes OutputHow from Dimensions.
func (m *Model) SetParameters(entries map[string]Value) {
	for k, v := range entries {
		m.params[k] = v
	}

	if m.Dimensions() == 1 {
		m.params[KeyOutputHow] = ScalarValue(String(OutputHowAxisX))
	} else {
		m.params[KeyOutputHow] = ScalarValue(String(OutputHowCube))
	}
}

// Set is SetParameters for a single entry.
func (m *Model) Set(key string, v Value) {
	m.SetParameters(map[string]Value{key: v})
}

// AddBoxParameters configures a parallelepiped box of edge length L with the
// given grid spacing.
func (m *Model) AddBoxParameters(L, spacing float64) {
	m.SetParameters(map[string]Value{
		KeyLsize:    ScalarValue(Float(L / 2)),
		KeySpacing:  ScalarValue(Float(spacing)),
		KeyBoxShape: ScalarValue(String("parallelepiped")),
	})
}

// AddSpecies appends a species row. String extras are single-quoted.
func (m *Model) AddSpecies(name string, mass float64, kind string, charge float64, extra ...Scalar) {
	row := []Scalar{Quoted(name), Float(mass), String(kind), Float(charge)}
	for _, e := range extra {
		if e.Kind() == ScalarString {
			e = Quoted(e.String())
		}
		row = append(row, e)
	}
	m.species = append(m.species, row)
}

// AddCoordinate appends a coordinate row for the named species.
func (m *Model) AddCoordinate(name string, position ...float64) {
	row := []Scalar{Quoted(name)}
	for _, p := range position {
		row = append(row, Float(p))
	}
	m.coordinates = append(m.coordinates, row)
}

// Parameters returns a snapshot of the merged parameter set. Accumulated
// species and coordinates are injected only when the caller has not set the
// corresponding key explicitly.
func (m *Model) Parameters() map[string]Value {
	out := make(map[string]Value, len(m.params)+2)
	for k, v := range m.params {
		out[k] = v
	}
	if _, ok := out[KeySpecies]; !ok && len(m.species) > 0 {
		out[KeySpecies] = Nested(m.species...)
	}
	if _, ok := out[KeyCoordinates]; !ok && len(m.coordinates) > 0 {
		out[KeyCoordinates] = Nested(m.coordinates...)
	}
	return out
}

// Lines renders the merged parameter set.
func (m *Model) Lines() []string {
	return Render(m.Parameters())
}

// Dimensions returns the truncated integer value of Dimensions, or
// DefaultDimensions when it is absent or not numeric.
func (m *Model) Dimensions() int {
	v, ok := m.params[KeyDimensions]
	if !ok {
		return DefaultDimensions
	}
	s, ok := v.Scalar()
	if !ok {
		return DefaultDimensions
	}
	f, ok := s.Number()
	if !ok {
		return DefaultDimensions
	}
	return int(math.Trunc(f))
}

// OutputHow returns the derived output mode.
func (m *Model) OutputHow() string {
	return m.scalarText(KeyOutputHow)
}

// Output returns the Output setting, e.g. "density + potential".
func (m *Model) Output() string {
	return m.scalarText(KeyOutput)
}

func (m *Model) scalarText(key string) string {
	v, ok := m.params[key]
	if !ok {
		return ""
	}
	if s, ok := v.Scalar(); ok {
		return s.String()
	}
	parts := make([]string, 0, len(v.Items()))
	for _, s := range v.Items() {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, " + ")
}
