package density

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestRequested(t *testing.T) {
	tests := []struct {
		output string
		want   bool
	}{
		{"density", true},
		{"wfs + density", true},
		{"density+potential", true},
		{"  density  ", true},
		{"potential", false},
		{"densityish", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Requested(tt.output); got != tt.want {
			t.Errorf("Requested(%q) = %v, want %v", tt.output, got, tt.want)
		}
	}
}

func TestReshape_Cube(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	f, err := Reshape(values, 3)
	if err != nil {
		t.Fatalf("Reshape() error = %v", err)
	}
	defer f.Release()

	if got := f.Shape(); !reflect.DeepEqual(got, []int{2, 2, 2}) {
		t.Errorf("Shape() = %v, want [2 2 2]", got)
	}
	if got := f.At(0, 0, 0); got != 1 {
		t.Errorf("At(0,0,0) = %v, want 1", got)
	}
	if got := f.At(1, 1, 1); got != 8 {
		t.Errorf("At(1,1,1) = %v, want 8", got)
	}
	// row-major: last index varies fastest
	if got := f.At(0, 0, 1); got != 2 {
		t.Errorf("At(0,0,1) = %v, want 2", got)
	}
	if got := f.At(1, 0, 0); got != 5 {
		t.Errorf("At(1,0,0) = %v, want 5", got)
	}
}

func TestReshape_TwoDims(t *testing.T) {
	f, err := Reshape([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, 2)
	if err != nil {
		t.Fatalf("Reshape() error = %v", err)
	}
	defer f.Release()
	if got := f.Shape(); !reflect.DeepEqual(got, []int{3, 3}) {
		t.Errorf("Shape() = %v, want [3 3]", got)
	}
	if got := f.At(2, 0); got != 7 {
		t.Errorf("At(2,0) = %v, want 7", got)
	}
}

func TestReshape_NotAPerfectPower(t *testing.T) {
	_, err := Reshape([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 3)
	var se *ShapeError
	if !errors.As(err, &se) {
		t.Fatalf("Reshape() error = %v, want *ShapeError", err)
	}
	if se.Side != 2 || se.Count != 10 {
		t.Errorf("ShapeError = %+v, want side 2 count 10", se)
	}
}

func TestLoadCube(t *testing.T) {
	header := strings.Repeat("header line\n", CubeHeaderLines)
	data := header + "1.0 2.0 3.0\n4.0 5.0\n6.0 7.0 8.0\n"

	f, err := LoadCube(strings.NewReader(data), 3)
	if err != nil {
		t.Fatalf("LoadCube() error = %v", err)
	}
	defer f.Release()
	if got := f.Shape(); !reflect.DeepEqual(got, []int{2, 2, 2}) {
		t.Errorf("Shape() = %v, want [2 2 2]", got)
	}
	if got := f.Values(); !reflect.DeepEqual(got, []float64{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("Values() = %v", got)
	}
}

func TestLoadCube_ShortHeader(t *testing.T) {
	if _, err := LoadCube(strings.NewReader("a\nb\n"), 3); err == nil {
		t.Error("LoadCube() expected error for truncated header")
	}
}

func TestLoadCube_BadValue(t *testing.T) {
	data := strings.Repeat("h\n", CubeHeaderLines) + "1.0 x 3.0\n"
	if _, err := LoadCube(strings.NewReader(data), 1); err == nil {
		t.Error("LoadCube() expected error for non-numeric value")
	}
}

func TestLoadAxis(t *testing.T) {
	data := "# x density\n-1.0 0.1\n0.0 0.5\n\n1.0 0.1 extra\n"
	f, err := LoadAxis(strings.NewReader(data))
	if err != nil {
		t.Fatalf("LoadAxis() error = %v", err)
	}
	defer f.Release()
	if got := f.Shape(); !reflect.DeepEqual(got, []int{3}) {
		t.Errorf("Shape() = %v, want [3]", got)
	}
	if got := f.Values(); !reflect.DeepEqual(got, []float64{0.1, 0.5, 0.1}) {
		t.Errorf("Values() = %v, want [0.1 0.5 0.1]", got)
	}
}

func TestLoadAxis_SingleColumn(t *testing.T) {
	if _, err := LoadAxis(strings.NewReader("header\n1.0\n")); err == nil {
		t.Error("LoadAxis() expected error for single-column row")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cube := strings.Repeat("h\n", CubeHeaderLines) + "1 2 3 4 5 6 7 8\n"
	if err := os.WriteFile(filepath.Join(dir, CubeFile), []byte(cube), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, AxisFile), []byte("x y\n0 4\n1 5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := Load(dir, "cube", 3)
	if err != nil {
		t.Fatalf("Load(cube) error = %v", err)
	}
	if f.NumDims() != 3 || f.Len() != 8 {
		t.Errorf("cube field dims=%d len=%d, want 3 and 8", f.NumDims(), f.Len())
	}
	f.Release()

	f, err = Load(dir, "axis_x", 1)
	if err != nil {
		t.Fatalf("Load(axis_x) error = %v", err)
	}
	if got := f.Values(); !reflect.DeepEqual(got, []float64{4, 5}) {
		t.Errorf("axis Values() = %v, want [4 5]", got)
	}
	f.Release()
}

func TestField_MarshalJSON(t *testing.T) {
	f, err := NewField([]float64{1, 2, 3, 4}, []int{2, 2})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Release()

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"shape":[2,2],"values":[1,2,3,4]}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestNewField_Errors(t *testing.T) {
	if _, err := NewField(nil, []int{0}); err == nil {
		t.Error("NewField(empty) expected error")
	}
	if _, err := NewField([]float64{1, 2, 3}, []int{2, 2}); err == nil {
		t.Error("NewField(shape mismatch) expected error")
	}
}

func TestRelease_NilSafe(t *testing.T) {
	var f *Field
	f.Release()
}
