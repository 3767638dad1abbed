// Package density loads the electron density written by the engine, either
// as a cube file (D-dimensional grid) or as a two-column axis cut.
package density

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/arrow/tensor"
)

// Field is a row-major N-dimensional array of float64 values.
type Field struct {
	t *tensor.Float64
}

// ShapeError is returned when a flat sequence cannot fill a cube of the
// inferred side length.
type ShapeError struct {
	Count int
	Side  int
	Dims  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("density: %d values do not fill a %d-dimensional grid of side %d", e.Count, e.Dims, e.Side)
}

// NewField wraps values in a Field of the given shape. The product of shape
// must equal len(values).
func NewField(values []float64, shape []int) (*Field, error) {
	n := 1
	shape64 := make([]int64, len(shape))
	for i, s := range shape {
		if s < 0 {
			return nil, fmt.Errorf("density: negative dimension %d", s)
		}
		n *= s
		shape64[i] = int64(s)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("density: no values")
	}
	if n != len(values) {
		return nil, fmt.Errorf("density: shape %v needs %d values, got %d", shape, n, len(values))
	}

	b := array.NewFloat64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, nil)
	arr := b.NewFloat64Array()
	defer arr.Release()

	return &Field{t: tensor.NewFloat64(arr.Data(), shape64, nil, nil)}, nil
}

// Reshape arranges a flat sequence into a dims-dimensional cube whose side
// is the rounded dims-th root of len(values).
func Reshape(values []float64, dims int) (*Field, error) {
	if dims < 1 {
		return nil, fmt.Errorf("density: invalid dimensions %d", dims)
	}
	side := int(math.Round(math.Pow(float64(len(values)), 1/float64(dims))))
	shape := make([]int, dims)
	n := 1
	for i := range shape {
		shape[i] = side
		n *= side
	}
	if n != len(values) {
		return nil, &ShapeError{Count: len(values), Side: side, Dims: dims}
	}
	return NewField(values, shape)
}

// Shape returns the size of each dimension.
func (f *Field) Shape() []int {
	s := f.t.Shape()
	out := make([]int, len(s))
	for i, v := range s {
		out[i] = int(v)
	}
	return out
}

// NumDims returns the number of dimensions.
func (f *Field) NumDims() int { return f.t.NumDims() }

// Len returns the total number of values.
func (f *Field) Len() int { return f.t.Len() }

// At returns the value at the given index, one coordinate per dimension.
func (f *Field) At(idx ...int) float64 {
	i64 := make([]int64, len(idx))
	for i, v := range idx {
		i64[i] = int64(v)
	}
	return f.t.Value(i64)
}

// Values returns the flat row-major values. The slice aliases the field's
// memory and must not be used after Release.
func (f *Field) Values() []float64 { return f.t.Float64Values() }

// Release frees the underlying buffer. Safe to call on nil.
func (f *Field) Release() {
	if f == nil || f.t == nil {
		return
	}
	f.t.Release()
	f.t = nil
}

// MarshalJSON encodes the field as {"shape": [...], "values": [...]}.
func (f *Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Shape  []int     `json:"shape"`
		Values []float64 `json:"values"`
	}{f.Shape(), f.Values()})
}
