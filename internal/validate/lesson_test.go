package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/schemeworks/sow-backend/internal/types"
)

func teachEntry(order int, codes ...string) types.OutlineEntry {
	return types.OutlineEntry{
		Order:        order,
		Kind:         types.LessonKindTeach,
		Label:        "Sequences",
		UnitRef:      "U1",
		PrimaryTopic: codes[0],
		TopicCodes:   codes,
	}
}

func goodLesson(order int, refs ...string) types.LessonSpec {
	return types.LessonSpec{
		Order: order,
		Kind:  types.LessonKindTeach,
		Title: "Arithmetic sequences",
		Cards: []types.LessonCard{
			{Kind: "explain", ContentMD: "A sequence is..."},
			{Kind: "practice", Steps: []string{"Find the next term"}},
		},
		Refs:            refs,
		DurationMinutes: 50,
	}
}

func TestLesson_AcceptsWellFormed(t *testing.T) {
	entry := teachEntry(3, "M8.1a")
	if err := Lesson(goodLesson(3, "M8.1a"), entry, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestLesson_MissingTitleIsSchemaError(t *testing.T) {
	l := goodLesson(1, "M8.1a")
	l.Title = ""
	err := Lesson(l, teachEntry(1, "M8.1a"), nil)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SchemaError, got %T: %v", err, err)
	}
}

func TestLesson_CardWithoutContentOrSteps(t *testing.T) {
	l := goodLesson(1, "M8.1a")
	l.Cards = append(l.Cards, types.LessonCard{Kind: "review"})
	err := Lesson(l, teachEntry(1, "M8.1a"), nil)
	if err == nil || !strings.Contains(err.Error(), "card must carry content_md or steps") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLesson_OrderMustMatchEntry(t *testing.T) {
	err := Lesson(goodLesson(5, "M8.1a"), teachEntry(4, "M8.1a"), nil)
	var ie *InvariantError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InvariantError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "lesson order 5 does not match outline entry order 4") {
		t.Fatalf("unexpected error: %q", err.Error())
	}
}

func TestLesson_KindMustMirrorEntry(t *testing.T) {
	l := goodLesson(2, "M8.1a")
	l.Kind = types.LessonKindCapstone
	err := Lesson(l, teachEntry(2, "M8.1a"), nil)
	if err == nil || !strings.Contains(err.Error(), `lesson kind "capstone" must mirror outline entry kind "teach"`) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLesson_RefOutsideEntryAndSeen(t *testing.T) {
	err := Lesson(goodLesson(2, "M8.9z"), teachEntry(2, "M8.1a"), nil)
	if err == nil || !strings.Contains(err.Error(), `ref "M8.9z" is neither a topic code of this entry nor a previously seen ref`) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLesson_SeenRefFromEarlierLessonIsAllowed(t *testing.T) {
	seen := map[string]bool{"M8.1a": true}
	err := Lesson(goodLesson(2, "M8.1a", "M8.2b"), teachEntry(2, "M8.2b"), seen)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
