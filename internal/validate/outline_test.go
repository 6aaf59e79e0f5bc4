package validate

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/schemeworks/sow-backend/internal/types"
)

func goodOutline(n int) types.Outline {
	entries := make([]types.OutlineEntry, 0, n)
	for i := 1; i <= n; i++ {
		kind := types.LessonKindTeach
		if i == n {
			kind = types.LessonKindCapstone
		}
		entries = append(entries, types.OutlineEntry{
			Order:        i,
			Kind:         kind,
			Label:        fmt.Sprintf("Lesson %d", i),
			UnitRef:      "U1",
			PrimaryTopic: "T1",
			TopicCodes:   []string{"T1"},
		})
	}
	return types.Outline{
		Subject:      "Mathematics",
		Level:        "KS3-Y8",
		TotalLessons: n,
		Entries:      entries,
	}
}

func catalogOf(codes ...string) map[string]bool {
	m := make(map[string]bool, len(codes))
	for _, c := range codes {
		m[c] = true
	}
	return m
}

func TestOutline_AcceptsWellFormed(t *testing.T) {
	if err := Outline(goodOutline(6), catalogOf("T1")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestOutline_EmptySubjectIsSchemaError(t *testing.T) {
	o := goodOutline(4)
	o.Subject = ""
	err := Outline(o, catalogOf("T1"))
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SchemaError, got %T: %v", err, err)
	}
	if len(se.Violations) != 1 || se.Violations[0].Field != "subject" {
		t.Fatalf("unexpected violations: %+v", se.Violations)
	}
}

func TestOutline_TotalLessonsMismatch(t *testing.T) {
	o := goodOutline(5)
	o.TotalLessons = 7
	err := Outline(o, catalogOf("T1"))
	var ie *InvariantError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InvariantError, got %T: %v", err, err)
	}
	want := "total_lessons is 7 but outline has 5 entries"
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("expected %q in error, got %q", want, err.Error())
	}
}

func TestOutline_NonContiguousOrders(t *testing.T) {
	o := goodOutline(4)
	o.Entries[2].Order = 9
	err := Outline(o, catalogOf("T1"))
	var ie *InvariantError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InvariantError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "expected order 3 at position 3") {
		t.Fatalf("unexpected error: %q", err.Error())
	}
}

func TestOutline_RejectsZeroCapstones(t *testing.T) {
	o := goodOutline(4)
	o.Entries[3].Kind = types.LessonKindTeach
	err := Outline(o, catalogOf("T1"))
	if err == nil || !strings.Contains(err.Error(), "exactly one capstone entry, found 0") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOutline_RejectsTwoCapstones(t *testing.T) {
	o := goodOutline(5)
	o.Entries[3].Kind = types.LessonKindCapstone
	err := Outline(o, catalogOf("T1"))
	if err == nil || !strings.Contains(err.Error(), "exactly one capstone entry, found 2") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOutline_CapstoneOutsideTailWindow(t *testing.T) {
	// 8 entries, capstone at position 4: 8-3=5 > 3 so it is out of the window.
	o := goodOutline(8)
	o.Entries[7].Kind = types.LessonKindTeach
	o.Entries[3].Kind = types.LessonKindCapstone
	err := Outline(o, catalogOf("T1"))
	if err == nil || !strings.Contains(err.Error(), "capstone must sit within the last 3 positions") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOutline_CapstoneJustInsideTailWindow(t *testing.T) {
	// 6 entries, capstone at position 4 (index 3): 6-3=3 <= 3, acceptable.
	o := goodOutline(6)
	o.Entries[5].Kind = types.LessonKindTeach
	o.Entries[3].Kind = types.LessonKindCapstone
	if err := Outline(o, catalogOf("T1")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestOutline_RequiresAtLeastOneTeach(t *testing.T) {
	o := goodOutline(1)
	// single entry which is the capstone
	err := Outline(o, catalogOf("T1"))
	if err == nil || !strings.Contains(err.Error(), "at least one teach entry") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOutline_TopicCodeOutsideCatalog(t *testing.T) {
	o := goodOutline(4)
	o.Entries[1].TopicCodes = []string{"T1", "UNPUBLISHED"}
	err := Outline(o, catalogOf("T1"))
	var ie *InvariantError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InvariantError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), `topic code "UNPUBLISHED" is not in the published topic catalog`) {
		t.Fatalf("unexpected error: %q", err.Error())
	}
}

func TestOutline_InvariantErrorCarriesAllViolations(t *testing.T) {
	o := goodOutline(4)
	o.TotalLessons = 10
	o.Entries[0].TopicCodes = []string{"X1"}
	o.Entries[1].TopicCodes = []string{"X2"}
	err := Outline(o, catalogOf("T1"))
	vs := ViolationsOf(err)
	if len(vs) != 3 {
		t.Fatalf("expected 3 violations, got %d: %+v", len(vs), vs)
	}
}
