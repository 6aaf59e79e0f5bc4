package validate

import (
	"fmt"
	"strings"
)

// Violation is one broken rule, tied to the outline/lesson order it concerns
// (0 when document-level). Reason strings are fed back verbatim to the
// generative collaborator as corrective feedback, so they stay human-readable.
type Violation struct {
	Order  int    `json:"order,omitempty"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	var b strings.Builder
	if v.Order > 0 {
		fmt.Fprintf(&b, "entry %d: ", v.Order)
	}
	if v.Field != "" {
		fmt.Fprintf(&b, "%s: ", v.Field)
	}
	b.WriteString(v.Reason)
	return b.String()
}

// maxSchemaViolations caps how many shape problems a SchemaError reports.
// Shape errors usually cascade; the first few are the signal.
const maxSchemaViolations = 10

// SchemaError means the candidate is the wrong shape entirely. Always fatal
// to the current attempt.
type SchemaError struct {
	Violations []Violation
}

func NewSchemaError(violations []Violation) *SchemaError {
	if len(violations) > maxSchemaViolations {
		violations = violations[:maxSchemaViolations]
	}
	return &SchemaError{Violations: violations}
}

func (e *SchemaError) Error() string {
	return "schema: " + joinViolations(e.Violations)
}

// InvariantError means the candidate parsed but breaks structural rules. It
// carries ALL violations so a revising caller gets complete feedback in one
// round trip.
type InvariantError struct {
	Violations []Violation
}

func (e *InvariantError) Error() string {
	return "invariant: " + joinViolations(e.Violations)
}

func joinViolations(vs []Violation) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, "; ")
}

// ViolationsOf extracts the violation list from a SchemaError or
// InvariantError, nil for anything else.
func ViolationsOf(err error) []Violation {
	switch e := err.(type) {
	case *SchemaError:
		return e.Violations
	case *InvariantError:
		return e.Violations
	default:
		return nil
	}
}
