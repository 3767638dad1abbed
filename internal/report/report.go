// Package report extracts SCF results from the engine's static/info report.
//
// Every field must appear exactly once. A second match makes the report
// ambiguous and aborts parsing with a *DuplicateFieldError; a field that never
// appears yields an *IncompleteReportError. A run that did not converge is
// not an error: Iterations is 0 and a warning is attached to the Report.
package report

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	convergedMarker    = "SCF converged in "
	notConvergedMarker = "SCF *not* converged"
	iterationsSuffix   = "iterations"
)

// NotConvergedWarning is attached to reports whose SCF cycle did not converge.
const NotConvergedWarning = "SCF *not* converged"

// Report holds the values read from one report.
type Report struct {
	Iterations     int      `json:"iterations"`
	TotalEnergy    float64  `json:"total_energy"`
	KineticEnergy  float64  `json:"kinetic_energy"`
	ExternalEnergy float64  `json:"external_energy"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Converged reports whether the SCF cycle converged.
func (r *Report) Converged() bool {
	return r.Iterations > 0
}

// ParseFile parses the report at path.
func ParseFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse scans r once and extracts the required fields.
func Parse(r io.Reader) (*Report, error) {
	var (
		rep   Report
		found = make(map[Field]bool, len(requiredFields))
		lineN int
	)

	mark := func(f Field) error {
		if found[f] {
			return &DuplicateFieldError{Field: f, Line: lineN}
		}
		found[f] = true
		return nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineN++
		line := scanner.Text()

		if strings.Contains(line, convergedMarker) {
			if err := mark(FieldIterations); err != nil {
				return nil, err
			}
			n, err := parseIterations(line)
			if err != nil {
				return nil, &FieldParseError{Field: FieldIterations, Line: lineN, Text: line, Err: err}
			}
			rep.Iterations = n
		}
		if strings.Contains(line, notConvergedMarker) {
			if err := mark(FieldIterations); err != nil {
				return nil, err
			}
			rep.Iterations = 0
		}
		if lhs, _, ok := strings.Cut(line, "="); ok && strings.TrimSpace(lhs) == "Total" {
			if err := mark(FieldTotal); err != nil {
				return nil, err
			}
			v, err := valueAfterEquals(line)
			if err != nil {
				return nil, &FieldParseError{Field: FieldTotal, Line: lineN, Text: line, Err: err}
			}
			rep.TotalEnergy = v
		}
		if strings.Contains(line, "Kinetic") {
			if err := mark(FieldKinetic); err != nil {
				return nil, err
			}
			v, err := valueAfterEquals(line)
			if err != nil {
				return nil, &FieldParseError{Field: FieldKinetic, Line: lineN, Text: line, Err: err}
			}
			rep.KineticEnergy = v
		}
		if strings.Contains(line, "External") {
			if err := mark(FieldExternal); err != nil {
				return nil, err
			}
			v, err := valueAfterEquals(line)
			if err != nil {
				return nil, &FieldParseError{Field: FieldExternal, Line: lineN, Text: line, Err: err}
			}
			rep.ExternalEnergy = v
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var missing []Field
	for _, f := range requiredFields {
		if !found[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &IncompleteReportError{Missing: missing}
	}

	if rep.Iterations == 0 {
		rep.Warnings = append(rep.Warnings, NotConvergedWarning)
	}
	return &rep, nil
}

func parseIterations(line string) (int, error) {
	_, rest, _ := strings.Cut(line, strings.TrimSpace(convergedMarker))
	rest, _, _ = strings.Cut(rest, iterationsSuffix)
	return strconv.Atoi(strings.TrimSpace(rest))
}

// valueAfterEquals reads the number between the first and the second "=".
func valueAfterEquals(line string) (float64, error) {
	_, rest, ok := strings.Cut(line, "=")
	if !ok {
		return 0, errors.New("no '=' on line")
	}
	rest, _, _ = strings.Cut(rest, "=")
	return strconv.ParseFloat(strings.TrimSpace(rest), 64)
}
