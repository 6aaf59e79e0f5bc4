package validate

import (
	"fmt"

	"github.com/schemeworks/sow-backend/internal/types"
)

// capstoneTailWindow is how close to the end the single capstone entry must
// sit: within the last 3 positions.
const capstoneTailWindow = 3

// Outline checks a candidate outline against the published topic catalog.
// Shape problems come back as *SchemaError (truncated), invariant breaches
// as *InvariantError (complete). Nil means the outline is acceptable.
func Outline(o types.Outline, catalog map[string]bool) error {
	if schema := outlineShape(o); len(schema) > 0 {
		return NewSchemaError(schema)
	}
	if inv := outlineInvariants(o, catalog); len(inv) > 0 {
		return &InvariantError{Violations: inv}
	}
	return nil
}

func outlineShape(o types.Outline) []Violation {
	var vs []Violation
	if o.Subject == "" {
		vs = append(vs, Violation{Field: "subject", Reason: "must not be empty"})
	}
	if o.Level == "" {
		vs = append(vs, Violation{Field: "level", Reason: "must not be empty"})
	}
	if len(o.Entries) == 0 {
		vs = append(vs, Violation{Field: "entries", Reason: "must not be empty"})
	}
	for _, e := range o.Entries {
		if e.Kind != types.LessonKindTeach && e.Kind != types.LessonKindCapstone {
			vs = append(vs, Violation{Order: e.Order, Field: "kind", Reason: fmt.Sprintf("unknown kind %q", e.Kind)})
		}
		if e.Label == "" {
			vs = append(vs, Violation{Order: e.Order, Field: "label", Reason: "must not be empty"})
		}
		if e.UnitRef == "" {
			vs = append(vs, Violation{Order: e.Order, Field: "unit_ref", Reason: "must not be empty"})
		}
		if e.PrimaryTopic == "" {
			vs = append(vs, Violation{Order: e.Order, Field: "primary_topic", Reason: "must not be empty"})
		}
	}
	return vs
}

func outlineInvariants(o types.Outline, catalog map[string]bool) []Violation {
	var vs []Violation

	if o.TotalLessons != len(o.Entries) {
		vs = append(vs, Violation{
			Field:  "total_lessons",
			Reason: fmt.Sprintf("total_lessons is %d but outline has %d entries", o.TotalLessons, len(o.Entries)),
		})
	}

	for i, e := range o.Entries {
		want := i + 1
		if e.Order != want {
			vs = append(vs, Violation{
				Order:  e.Order,
				Field:  "order",
				Reason: fmt.Sprintf("expected order %d at position %d", want, i+1),
			})
		}
	}

	capstones := 0
	teaches := 0
	capstonePos := -1
	for i, e := range o.Entries {
		switch e.Kind {
		case types.LessonKindCapstone:
			capstones++
			capstonePos = i
		case types.LessonKindTeach:
			teaches++
		}
	}
	if capstones != 1 {
		vs = append(vs, Violation{Field: "entries", Reason: fmt.Sprintf("outline must contain exactly one capstone entry, found %d", capstones)})
	} else if len(o.Entries)-capstonePos > capstoneTailWindow {
		vs = append(vs, Violation{
			Order:  o.Entries[capstonePos].Order,
			Field:  "kind",
			Reason: fmt.Sprintf("capstone must sit within the last %d positions", capstoneTailWindow),
		})
	}
	if teaches == 0 {
		vs = append(vs, Violation{Field: "entries", Reason: "outline must contain at least one teach entry"})
	}

	for _, e := range o.Entries {
		for _, tc := range e.TopicCodes {
			if !catalog[tc] {
				vs = append(vs, Violation{
					Order:  e.Order,
					Field:  "topic_codes",
					Reason: fmt.Sprintf("topic code %q is not in the published topic catalog", tc),
				})
			}
		}
	}

	return vs
}
