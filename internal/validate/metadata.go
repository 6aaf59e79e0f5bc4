package validate

import (
	"github.com/schemeworks/sow-backend/internal/types"
)

// Metadata checks the summary metadata produced after all lessons exist.
func Metadata(m types.SchemeMetadata) error {
	var vs []Violation
	if len(m.PolicyNotes) == 0 {
		vs = append(vs, Violation{Field: "policy_notes", Reason: "must not be empty"})
	}
	if len(m.SequencingNotes) == 0 {
		vs = append(vs, Violation{Field: "sequencing_notes", Reason: "must not be empty"})
	}
	if m.EstimatedDurationUnits <= 0 {
		vs = append(vs, Violation{Field: "estimated_duration_units", Reason: "must be positive"})
	}
	if len(vs) > 0 {
		return NewSchemaError(vs)
	}
	return nil
}
