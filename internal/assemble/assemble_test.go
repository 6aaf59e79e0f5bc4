package assemble

import (
	"errors"
	"testing"

	"github.com/schemeworks/sow-backend/internal/types"
	"github.com/schemeworks/sow-backend/internal/validate"
)

func lessonAt(order int, kind types.LessonKind, refs ...string) types.LessonSpec {
	cards := []types.LessonCard{{Kind: "explain", ContentMD: "body"}}
	if kind == types.LessonKindCapstone {
		cards = append(cards, types.LessonCard{Kind: "independent", Steps: []string{"project"}})
	}
	return types.LessonSpec{
		Order:           order,
		Kind:            kind,
		Title:           "t",
		Cards:           cards,
		Refs:            refs,
		DurationMinutes: 45,
	}
}

func testOutline() types.Outline {
	return types.Outline{Subject: "Mathematics", Level: "KS3-Y8", TotalLessons: 3}
}

func testMeta() types.SchemeMetadata {
	return types.SchemeMetadata{
		PolicyNotes:            []string{"p"},
		SequencingNotes:        []string{"s"},
		EstimatedDurationUnits: 3,
	}
}

func TestAssemble_SortsLessonsByOrder(t *testing.T) {
	lessons := []types.LessonSpec{
		lessonAt(3, types.LessonKindCapstone, "T1"),
		lessonAt(1, types.LessonKindTeach, "T1"),
		lessonAt(2, types.LessonKindTeach, "T1"),
	}

	doc, err := Assemble(testOutline(), lessons, testMeta(), "2026.1", validate.CrossEntryPolicy{})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	for i, l := range doc.Entries {
		if l.Order != i+1 {
			t.Fatalf("entries not ordered: position %d has order %d", i, l.Order)
		}
	}
	if doc.Subject != "Mathematics" || doc.Level != "KS3-Y8" || doc.Version != "2026.1" {
		t.Fatalf("identity fields wrong: %+v", doc)
	}
	// input slice must keep its original order
	if lessons[0].Order != 3 {
		t.Fatalf("input slice was mutated")
	}
}

func TestAssemble_RejectsGappedSequence(t *testing.T) {
	lessons := []types.LessonSpec{
		lessonAt(1, types.LessonKindTeach, "T1"),
		lessonAt(4, types.LessonKindCapstone, "T1"),
	}

	doc, err := Assemble(testOutline(), lessons, testMeta(), "1", validate.CrossEntryPolicy{})
	if doc != nil {
		t.Fatalf("a failed assembly must not yield a partial document")
	}
	var ie *validate.InvariantError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InvariantError, got %T: %v", err, err)
	}
	if len(ie.Violations) == 0 {
		t.Fatalf("expected violations")
	}
}

func TestAssemble_PairingPolicyEnforcedWhenSet(t *testing.T) {
	lessons := []types.LessonSpec{
		lessonAt(1, types.LessonKindTeach, "T1"),
		lessonAt(2, types.LessonKindTeach, "T2"),
		lessonAt(3, types.LessonKindTeach, "T2"),
		lessonAt(4, types.LessonKindTeach, "T2"),
		lessonAt(5, types.LessonKindCapstone, "T2"),
	}

	if _, err := Assemble(testOutline(), lessons, testMeta(), "1", validate.CrossEntryPolicy{}); err != nil {
		t.Fatalf("pairing off: %v", err)
	}
	if _, err := Assemble(testOutline(), lessons, testMeta(), "1", validate.CrossEntryPolicy{RequirePairing: true}); err == nil {
		t.Fatalf("pairing on: expected a violation for the unlinked teach lesson")
	}
}
