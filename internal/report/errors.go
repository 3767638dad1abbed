package report

import (
	"errors"
	"fmt"
	"strings"
)

// Field identifies one of the logical values read from a report.
type Field string

const (
	FieldIterations Field = "iterations"
	FieldTotal      Field = "total_energy"
	FieldKinetic    Field = "kinetic_energy"
	FieldExternal   Field = "external_energy"
)

// requiredFields lists every field a complete report must contain, in
// report order.
var requiredFields = []Field{FieldIterations, FieldTotal, FieldKinetic, FieldExternal}

var (
	// ErrDuplicateField matches any *DuplicateFieldError.
	ErrDuplicateField = errors.New("report: field matched more than once")

	// ErrIncompleteReport matches any *IncompleteReportError.
	ErrIncompleteReport = errors.New("report: required fields missing")
)

// DuplicateFieldError reports an ambiguous report in which a field matched
// on more than one line.
type DuplicateFieldError struct {
	Field Field
	Line  int // 1-based line of the second match
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("report: %s matched again on line %d", e.Field, e.Line)
}

func (e *DuplicateFieldError) Is(target error) bool {
	return target == ErrDuplicateField
}

// IncompleteReportError lists the fields never found in a report.
type IncompleteReportError struct {
	Missing []Field
}

func (e *IncompleteReportError) Error() string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = string(f)
	}
	return "report: missing " + strings.Join(names, ", ")
}

func (e *IncompleteReportError) Is(target error) bool {
	return target == ErrIncompleteReport
}

// FieldParseError is returned when a matched line does not hold a number.
type FieldParseError struct {
	Field Field
	Line  int
	Text  string
	Err   error
}

func (e *FieldParseError) Error() string {
	return fmt.Sprintf("report: line %d: cannot read %s from %q: %v", e.Line, e.Field, e.Text, e.Err)
}

func (e *FieldParseError) Unwrap() error {
	return e.Err
}
