package analytics

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andresuchdata/pharmalytics/internal/domain"
)

// ErrMissingColumn is wrapped by ValidationError when a required column is absent
var ErrMissingColumn = errors.New("missing required column")

// RowViolation is one row/column problem found during normalization.
// Row is 1-based over data rows; 0 means the violation applies to the header.
type RowViolation struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Reason string `json:"reason"`
}

func (v RowViolation) String() string {
	if v.Row == 0 {
		return fmt.Sprintf("column %q: %s", v.Column, v.Reason)
	}
	return fmt.Sprintf("row %d, column %q: %s", v.Row, v.Column, v.Reason)
}

// ValidationError is returned when the raw input cannot be normalized. It is fatal.
type ValidationError struct {
	Violations []RowViolation `json:"violations"`
	cause      error
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	const maxShown = 5
	parts := make([]string, 0, maxShown)
	for i, v := range e.Violations {
		if i == maxShown {
			break
		}
		parts = append(parts, v.String())
	}
	msg := fmt.Sprintf("validation failed with %d violation(s): %s", len(e.Violations), strings.Join(parts, "; "))
	if len(e.Violations) > maxShown {
		msg += fmt.Sprintf("; and %d more", len(e.Violations)-maxShown)
	}
	return msg
}

// Unwrap exposes ErrMissingColumn when the failure came from the header check
func (e *ValidationError) Unwrap() error {
	return e.cause
}

func (e *ValidationError) add(row int, column, reason string) {
	e.Violations = append(e.Violations, RowViolation{Row: row, Column: column, Reason: reason})
}

// FieldError names one invalid option
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ConfigurationError is returned when options are out of range. It is fatal and raised before any computation.
type ConfigurationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ConfigurationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Reason
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

func (e *ConfigurationError) add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// Result section names used on warnings
const (
	SectionNormalizer      = "normalizer"
	SectionStatistics      = "statistics"
	SectionTrend           = "trend"
	SectionInventory       = "inventory"
	SectionAnomalies       = "anomalies"
	SectionABC             = "abc"
	SectionRecommendations = "recommendations"
)

func newWarning(section string, code domain.WarningCode, format string, args ...interface{}) domain.Warning {
	return domain.Warning{
		Section: section,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
