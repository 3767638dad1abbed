package calcfile

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

type hclFile struct {
	Parameters  *hclParameters  `hcl:"parameters,block"`
	Box         *Box            `hcl:"box,block"`
	Species     []hclSpecies    `hcl:"species,block"`
	Coordinates []hclCoordinate `hcl:"coordinate,block"`
	ReadDensity hcl.Expression  `hcl:"read_density,optional"`
	KeepFolder  hcl.Expression  `hcl:"keep_folder,optional"`
}

// hclParameters keeps the block body so arbitrary engine keys can be read
// as plain attributes.
type hclParameters struct {
	Remain hcl.Body `hcl:",remain"`
}

type hclSpecies struct {
	Name   string         `hcl:"name,label"`
	Mass   float64        `hcl:"mass"`
	Kind   string         `hcl:"kind"`
	Charge float64        `hcl:"charge"`
	Extra  hcl.Expression `hcl:"extra,optional"`
}

type hclCoordinate struct {
	Name     string    `hcl:"name,label"`
	Position []float64 `hcl:"position"`
}

// ParseHCL decodes an HCL calculation file. filename is used in
// diagnostics only.
func ParseHCL(src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %s", diags.Error())
	}

	var raw hclFile
	diags = gohcl.DecodeBody(file.Body, nil, &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	f := &File{Box: raw.Box}

	if raw.Parameters != nil {
		attrs, diags := raw.Parameters.Remain.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode parameters: %s", diags.Error())
		}
		values := make(map[string]any, len(attrs))
		for name, attr := range attrs {
			v, err := evalExpression(attr.Expr)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", name, err)
			}
			values[name] = v
		}
		parameters, err := convertParameters(values)
		if err != nil {
			return nil, err
		}
		f.Parameters = parameters
	}

	for _, s := range raw.Species {
		v, err := evalExpression(s.Extra)
		if err != nil {
			return nil, fmt.Errorf("species %s: %w", s.Name, err)
		}
		extra, err := convertExtra(v)
		if err != nil {
			return nil, fmt.Errorf("species %s: %w", s.Name, err)
		}
		f.Species = append(f.Species, Species{
			Name:   s.Name,
			Mass:   s.Mass,
			Kind:   s.Kind,
			Charge: s.Charge,
			Extra:  extra,
		})
	}

	for _, c := range raw.Coordinates {
		f.Coordinates = append(f.Coordinates, Coordinate{Name: c.Name, Position: c.Position})
	}

	readDensity, err := optionalBool(raw.ReadDensity, true)
	if err != nil {
		return nil, fmt.Errorf("read_density: %w", err)
	}
	keep, err := optionalBool(raw.KeepFolder, false)
	if err != nil {
		return nil, fmt.Errorf("keep_folder: %w", err)
	}
	f.ReadDensity = readDensity
	f.KeepFolder = keep

	return f, nil
}

// evalExpression evaluates a static expression. Absent optional
// attributes evaluate to nil.
func evalExpression(expr hcl.Expression) (any, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s", diags.Error())
	}
	return ctyToAny(val)
}

func optionalBool(expr hcl.Expression, def bool) (bool, error) {
	v, err := evalExpression(expr)
	if err != nil {
		return false, err
	}
	if v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("must be a bool, got %T", v)
	}
	return b, nil
}

// ctyToAny converts a cty value into the plain Go shapes params.FromAny
// understands. Whole numbers become int64.
func ctyToAny(val cty.Value) (any, error) {
	if !val.IsKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	if val.IsNull() {
		return nil, nil
	}

	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Bool:
		return val.True(), nil
	case ty == cty.Number:
		bf := val.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i, nil
			}
		}
		f, _ := bf.Float64()
		return f, nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			v, err := ctyToAny(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
