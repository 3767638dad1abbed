package calcfile

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type yamlFile struct {
	Parameters  map[string]any `yaml:"parameters"`
	Box         *Box           `yaml:"box"`
	Species     []yamlSpecies  `yaml:"species"`
	Coordinates []Coordinate   `yaml:"coordinates"`
	ReadDensity *bool          `yaml:"read_density"`
	KeepFolder  bool           `yaml:"keep_folder"`
}

type yamlSpecies struct {
	Name   string  `yaml:"name"`
	Mass   float64 `yaml:"mass"`
	Kind   string  `yaml:"kind"`
	Charge float64 `yaml:"charge"`
	Extra  any     `yaml:"extra"`
}

// ParseYAML decodes a YAML calculation file.
func ParseYAML(data []byte) (*File, error) {
	var raw yamlFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	parameters, err := convertParameters(raw.Parameters)
	if err != nil {
		return nil, err
	}

	f := &File{
		Parameters:  parameters,
		Box:         raw.Box,
		Coordinates: raw.Coordinates,
		ReadDensity: raw.ReadDensity == nil || *raw.ReadDensity,
		KeepFolder:  raw.KeepFolder,
	}
	for i, s := range raw.Species {
		extra, err := convertExtra(s.Extra)
		if err != nil {
			return nil, fmt.Errorf("species %d: %w", i, err)
		}
		f.Species = append(f.Species, Species{
			Name:   s.Name,
			Mass:   s.Mass,
			Kind:   s.Kind,
			Charge: s.Charge,
			Extra:  extra,
		})
	}
	return f, nil
}
