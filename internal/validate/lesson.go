package validate

import (
	"fmt"

	"github.com/schemeworks/sow-backend/internal/types"
)

// Lesson checks one generated lesson against the outline entry it targets.
// seenRefs is the union of refs declared by previously accepted lessons;
// a lesson may cite its entry's topic codes or anything already seen.
func Lesson(l types.LessonSpec, entry types.OutlineEntry, seenRefs map[string]bool) error {
	if schema := lessonShape(l); len(schema) > 0 {
		return NewSchemaError(schema)
	}
	if inv := lessonInvariants(l, entry, seenRefs); len(inv) > 0 {
		return &InvariantError{Violations: inv}
	}
	return nil
}

func lessonShape(l types.LessonSpec) []Violation {
	var vs []Violation
	if l.Title == "" {
		vs = append(vs, Violation{Order: l.Order, Field: "title", Reason: "must not be empty"})
	}
	if l.Kind != types.LessonKindTeach && l.Kind != types.LessonKindCapstone {
		vs = append(vs, Violation{Order: l.Order, Field: "kind", Reason: fmt.Sprintf("unknown kind %q", l.Kind)})
	}
	if len(l.Cards) == 0 {
		vs = append(vs, Violation{Order: l.Order, Field: "cards", Reason: "must not be empty"})
	}
	for i, c := range l.Cards {
		if c.Kind == "" {
			vs = append(vs, Violation{Order: l.Order, Field: fmt.Sprintf("cards[%d].kind", i), Reason: "must not be empty"})
		}
		if c.ContentMD == "" && len(c.Steps) == 0 {
			vs = append(vs, Violation{Order: l.Order, Field: fmt.Sprintf("cards[%d]", i), Reason: "card must carry content_md or steps"})
		}
	}
	if l.DurationMinutes <= 0 {
		vs = append(vs, Violation{Order: l.Order, Field: "duration_minutes", Reason: "must be positive"})
	}
	return vs
}

func lessonInvariants(l types.LessonSpec, entry types.OutlineEntry, seenRefs map[string]bool) []Violation {
	var vs []Violation

	if l.Order != entry.Order {
		vs = append(vs, Violation{
			Order:  l.Order,
			Field:  "order",
			Reason: fmt.Sprintf("lesson order %d does not match outline entry order %d", l.Order, entry.Order),
		})
	}
	if l.Kind != entry.Kind {
		vs = append(vs, Violation{
			Order:  l.Order,
			Field:  "kind",
			Reason: fmt.Sprintf("lesson kind %q must mirror outline entry kind %q", l.Kind, entry.Kind),
		})
	}

	allowed := make(map[string]bool, len(entry.TopicCodes)+len(seenRefs))
	for _, tc := range entry.TopicCodes {
		allowed[tc] = true
	}
	for r := range seenRefs {
		allowed[r] = true
	}
	for _, r := range l.Refs {
		if !allowed[r] {
			vs = append(vs, Violation{
				Order:  l.Order,
				Field:  "refs",
				Reason: fmt.Sprintf("ref %q is neither a topic code of this entry nor a previously seen ref", r),
			})
		}
	}

	return vs
}
