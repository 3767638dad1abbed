package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const convergedInfo = `******************************* Grid ********************************
Simulation Box:
  Type = parallelepiped
*********************************************************************

SCF converged in   12 iterations

Some of the states are not fully converged!
Eigenvalues [H]
 #st  Spin   Eigenvalue      Occupation
   1   --    -0.500000       2.000000

Energy [H]:
      Total       =        -0.49975314
      Free        =        -0.49975314
      -----------
      Ion-ion     =         0.00000000
      Eigenvalues =        -0.49975314
      Hartree     =         0.00000000
      Int[n*v_xc] =         0.00000000
      Exchange    =         0.00000000
      Correlation =         0.00000000
      vanderWaals =         0.00000000
      Delta XC    =         0.00000000
      Entropy     =         0.00000000
      -TS         =        -0.00000000
      Kinetic     =         0.24987657
      External    =        -0.74962971
      Non-local   =         0.00000000
`

func TestParse_Converged(t *testing.T) {
	rep, err := Parse(strings.NewReader(convergedInfo))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if rep.Iterations != 12 {
		t.Errorf("Iterations = %d, want 12", rep.Iterations)
	}
	if rep.TotalEnergy != -0.49975314 {
		t.Errorf("TotalEnergy = %v, want -0.49975314", rep.TotalEnergy)
	}
	if rep.KineticEnergy != 0.24987657 {
		t.Errorf("KineticEnergy = %v, want 0.24987657", rep.KineticEnergy)
	}
	if rep.ExternalEnergy != -0.74962971 {
		t.Errorf("ExternalEnergy = %v, want -0.74962971", rep.ExternalEnergy)
	}
	if !rep.Converged() {
		t.Error("Converged() = false, want true")
	}
	if len(rep.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", rep.Warnings)
	}
}

func TestParse_NotConverged(t *testing.T) {
	info := strings.Replace(convergedInfo, "SCF converged in   12 iterations", "SCF *not* converged!", 1)

	rep, err := Parse(strings.NewReader(info))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if rep.Iterations != 0 {
		t.Errorf("Iterations = %d, want 0", rep.Iterations)
	}
	if rep.Converged() {
		t.Error("Converged() = true, want false")
	}
	if len(rep.Warnings) != 1 || rep.Warnings[0] != NotConvergedWarning {
		t.Errorf("Warnings = %v, want [%q]", rep.Warnings, NotConvergedWarning)
	}
	if rep.TotalEnergy != -0.49975314 {
		t.Errorf("TotalEnergy = %v, want -0.49975314", rep.TotalEnergy)
	}
}

func TestParse_DuplicateFields(t *testing.T) {
	tests := []struct {
		name  string
		extra string
		field Field
	}{
		{"total", "      Total       =        -1.0\n", FieldTotal},
		{"kinetic", "      Kinetic     =         1.0\n", FieldKinetic},
		{"external", "      External    =         1.0\n", FieldExternal},
		{"converged twice", "SCF converged in 3 iterations\n", FieldIterations},
		{"converged and not converged", "SCF *not* converged\n", FieldIterations},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(convergedInfo + tt.extra))
			if !errors.Is(err, ErrDuplicateField) {
				t.Fatalf("Parse() error = %v, want ErrDuplicateField", err)
			}
			if errors.Is(err, ErrIncompleteReport) {
				t.Error("duplicate error also matches ErrIncompleteReport")
			}
			var dup *DuplicateFieldError
			if !errors.As(err, &dup) {
				t.Fatalf("error %T is not *DuplicateFieldError", err)
			}
			if dup.Field != tt.field {
				t.Errorf("Field = %s, want %s", dup.Field, tt.field)
			}
		})
	}
}

func TestParse_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		drop    string
		missing []Field
	}{
		{"kinetic", "Kinetic", []Field{FieldKinetic}},
		{"external", "External", []Field{FieldExternal}},
		{"total", "Total ", []Field{FieldTotal}},
		{"iterations", "SCF converged", []Field{FieldIterations}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var kept []string
			for _, line := range strings.Split(convergedInfo, "\n") {
				if !strings.Contains(line, tt.drop) {
					kept = append(kept, line)
				}
			}
			_, err := Parse(strings.NewReader(strings.Join(kept, "\n")))
			if !errors.Is(err, ErrIncompleteReport) {
				t.Fatalf("Parse() error = %v, want ErrIncompleteReport", err)
			}
			var inc *IncompleteReportError
			if !errors.As(err, &inc) {
				t.Fatalf("error %T is not *IncompleteReportError", err)
			}
			if len(inc.Missing) != len(tt.missing) || inc.Missing[0] != tt.missing[0] {
				t.Errorf("Missing = %v, want %v", inc.Missing, tt.missing)
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	var inc *IncompleteReportError
	if !errors.As(err, &inc) {
		t.Fatalf("Parse() error = %v, want *IncompleteReportError", err)
	}
	if len(inc.Missing) != 4 {
		t.Errorf("Missing = %v, want all four fields", inc.Missing)
	}
}

func TestParse_TotalNeedsExactLabel(t *testing.T) {
	info := strings.Replace(convergedInfo, "      Free        =", "      Total free  =", 1)
	rep, err := Parse(strings.NewReader(info))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if rep.TotalEnergy != -0.49975314 {
		t.Errorf("TotalEnergy = %v, want -0.49975314", rep.TotalEnergy)
	}
}

func TestParse_BadNumber(t *testing.T) {
	info := strings.Replace(convergedInfo, "0.24987657", "n/a", 1)
	_, err := Parse(strings.NewReader(info))
	var pe *FieldParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Parse() error = %v, want *FieldParseError", err)
	}
	if pe.Field != FieldKinetic {
		t.Errorf("Field = %s, want %s", pe.Field, FieldKinetic)
	}
	if errors.Is(err, ErrDuplicateField) || errors.Is(err, ErrIncompleteReport) {
		t.Error("parse error matches a report error kind")
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info")
	if err := os.WriteFile(path, []byte(convergedInfo), 0644); err != nil {
		t.Fatal(err)
	}
	rep, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if rep.Iterations != 12 {
		t.Errorf("Iterations = %d, want 12", rep.Iterations)
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ParseFile(missing) error = %v, want ErrNotExist", err)
	}
}
