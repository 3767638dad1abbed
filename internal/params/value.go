// Package params holds the parameter model for an engine calculation and
// renders it into the engine's block-structured input grammar.
package params

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ScalarKind identifies the concrete type held by a Scalar.
type ScalarKind int

const (
	ScalarString ScalarKind = iota
	ScalarInt
	ScalarFloat
	ScalarBool
)

// String returns the kind name used in JSON output and error messages.
func (k ScalarKind) String() string {
	switch k {
	case ScalarInt:
		return "int"
	case ScalarFloat:
		return "float"
	case ScalarBool:
		return "bool"
	default:
		return "string"
	}
}

// Scalar is a single number, string or boolean. The rendered text is fixed
// when the scalar is constructed.
type Scalar struct {
	kind ScalarKind
	text string
}

// Int returns an integer scalar.
func Int(n int64) Scalar {
	return Scalar{kind: ScalarInt, text: strconv.FormatInt(n, 10)}
}

// Float returns a floating-point scalar in shortest round-trip form.
func Float(f float64) Scalar {
	return Scalar{kind: ScalarFloat, text: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Bool returns a boolean scalar.
func Bool(b bool) Scalar {
	return Scalar{kind: ScalarBool, text: strconv.FormatBool(b)}
}

// String returns a string scalar rendered verbatim.
func String(s string) Scalar {
	return Scalar{kind: ScalarString, text: s}
}

// Quoted returns a string scalar wrapped in single quotes, the form the
// engine expects for names inside blocks.
func Quoted(s string) Scalar {
	return Scalar{kind: ScalarString, text: "'" + s + "'"}
}

// Kind reports the scalar's type.
func (s Scalar) Kind() ScalarKind { return s.kind }

// String returns the rendered text.
func (s Scalar) String() string { return s.text }

// Number returns the numeric value of an int or float scalar. String scalars
// holding a number are accepted too.
func (s Scalar) Number() (float64, bool) {
	if s.kind == ScalarBool {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s.text), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Kind classifies a Value.
type Kind int

const (
	KindScalar Kind = iota
	KindFlat
	KindNested
)

func (k Kind) String() string {
	switch k {
	case KindFlat:
		return "flat"
	case KindNested:
		return "nested"
	default:
		return "scalar"
	}
}

// Value is a parameter value: a scalar, a flat block (one element per line)
// or a nested block (one row of fields per line).
type Value struct {
	kind   Kind
	scalar Scalar
	items  []Scalar
	rows   [][]Scalar
}

// ScalarValue wraps a single scalar.
func ScalarValue(s Scalar) Value {
	return Value{kind: KindScalar, scalar: s}
}

// Flat builds a flat block value.
func Flat(items ...Scalar) Value {
	return Value{kind: KindFlat, items: append([]Scalar(nil), items...)}
}

// Nested builds a nested block value. Rows are copied.
func Nested(rows ...[]Scalar) Value {
	cp := make([][]Scalar, len(rows))
	for i, r := range rows {
		cp[i] = append([]Scalar(nil), r...)
	}
	return Value{kind: KindNested, rows: cp}
}

// Kind returns the value's classification.
func (v Value) Kind() Kind { return v.kind }

// Scalar returns the wrapped scalar and whether v is a scalar value.
func (v Value) Scalar() (Scalar, bool) {
	return v.scalar, v.kind == KindScalar
}

// Items returns the elements of a flat block.
func (v Value) Items() []Scalar { return v.items }

// Rows returns the rows of a nested block.
func (v Value) Rows() [][]Scalar { return v.rows }

// Plain converts v back into Go values (strings, float64, int64, bool and
// slices of them) for JSON output.
func (v Value) Plain() any {
	switch v.kind {
	case KindFlat:
		out := make([]any, len(v.items))
		for i, s := range v.items {
			out[i] = s.plain()
		}
		return out
	case KindNested:
		out := make([]any, len(v.rows))
		for i, r := range v.rows {
			row := make([]any, len(r))
			for j, s := range r {
				row[j] = s.plain()
			}
			out[i] = row
		}
		return out
	default:
		return v.scalar.plain()
	}
}

func (s Scalar) plain() any {
	switch s.kind {
	case ScalarInt:
		n, _ := strconv.ParseInt(s.text, 10, 64)
		return n
	case ScalarFloat:
		f, _ := strconv.ParseFloat(s.text, 64)
		return f
	case ScalarBool:
		return s.text == "true"
	default:
		return s.text
	}
}

// ScalarFromAny converts a decoded Go value into a Scalar.
func ScalarFromAny(v any) (Scalar, error) {
	switch x := v.(type) {
	case Scalar:
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Int(int64(x)), nil
	case uint64:
		return Int(int64(x)), nil
	case float32:
		return numberScalar(float64(x)), nil
	case float64:
		return numberScalar(x), nil
	case nil:
		return Scalar{}, fmt.Errorf("null is not a valid parameter value")
	default:
		return Scalar{}, fmt.Errorf("unsupported scalar type %T", v)
	}
}

// numberScalar keeps whole numbers decoded as float64 (JSON) rendered as
// integers.
func numberScalar(f float64) Scalar {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return Int(int64(f))
	}
	return Float(f)
}

// FromAny classifies a decoded value by shape: non-sequences and
// single-element sequences of scalars are scalars, sequences of scalars are
// flat blocks, and sequences holding sequences are nested blocks.
func FromAny(v any) (Value, error) {
	if val, ok := v.(Value); ok {
		return val, nil
	}
	list, ok := v.([]any)
	if !ok {
		s, err := ScalarFromAny(v)
		if err != nil {
			return Value{}, err
		}
		return ScalarValue(s), nil
	}

	nested := false
	for _, elem := range list {
		if inner, ok := elem.([]any); ok && len(inner) > 1 {
			nested = true
			break
		}
	}

	if !nested {
		items := make([]Scalar, 0, len(list))
		for i, elem := range list {
			s, err := scalarOrSingleton(elem)
			if err != nil {
				return Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			items = append(items, s)
		}
		if len(items) == 1 {
			return ScalarValue(items[0]), nil
		}
		return Flat(items...), nil
	}

	rows := make([][]Scalar, 0, len(list))
	for i, elem := range list {
		inner, ok := elem.([]any)
		if !ok {
			inner = []any{elem}
		}
		row := make([]Scalar, 0, len(inner))
		for j, field := range inner {
			s, err := ScalarFromAny(field)
			if err != nil {
				return Value{}, fmt.Errorf("row %d field %d: %w", i, j, err)
			}
			row = append(row, s)
		}
		rows = append(rows, row)
	}
	return Nested(rows...), nil
}

func scalarOrSingleton(v any) (Scalar, error) {
	if inner, ok := v.([]any); ok {
		if len(inner) != 1 {
			return Scalar{}, fmt.Errorf("empty sequence is not a valid element")
		}
		return ScalarFromAny(inner[0])
	}
	return ScalarFromAny(v)
}
