package validate

import (
	"fmt"

	"github.com/schemeworks/sow-backend/internal/types"
)

// CrossEntryPolicy configures the rules that differ between course
// structures. Pairing is off for simplified structures.
type CrossEntryPolicy struct {
	RequirePairing bool
	PairingWindow  int // subsequent positions searched for a follow-up; 0 means default
}

const defaultPairingWindow = 3

// CrossEntry checks the full accepted lesson sequence. Used by the assembler
// only; any non-empty result is fatal to the assembly attempt.
func CrossEntry(lessons []types.LessonSpec, policy CrossEntryPolicy) []Violation {
	var vs []Violation

	vs = append(vs, checkOrderSequence(lessons)...)
	vs = append(vs, checkCoverage(lessons)...)
	if policy.RequirePairing {
		window := policy.PairingWindow
		if window <= 0 {
			window = defaultPairingWindow
		}
		vs = append(vs, checkPairing(lessons, window)...)
	}
	return vs
}

// checkOrderSequence requires the order values to be exactly 1..N.
func checkOrderSequence(lessons []types.LessonSpec) []Violation {
	var vs []Violation
	seen := make(map[int]int, len(lessons))
	for _, l := range lessons {
		seen[l.Order]++
	}
	for order, n := range seen {
		if n > 1 {
			vs = append(vs, Violation{Order: order, Field: "order", Reason: fmt.Sprintf("order %d appears %d times", order, n)})
		}
		if order < 1 || order > len(lessons) {
			vs = append(vs, Violation{Order: order, Field: "order", Reason: fmt.Sprintf("order %d is outside 1..%d", order, len(lessons))})
		}
	}
	for want := 1; want <= len(lessons); want++ {
		if seen[want] == 0 {
			vs = append(vs, Violation{Order: want, Field: "order", Reason: fmt.Sprintf("missing order %d", want)})
		}
	}
	return vs
}

// checkCoverage requires exactly one capstone lesson and at least one lesson
// carrying independent-work cards.
func checkCoverage(lessons []types.LessonSpec) []Violation {
	var vs []Violation
	capstones := 0
	independent := 0
	for _, l := range lessons {
		if l.Kind == types.LessonKindCapstone {
			capstones++
		}
		for _, c := range l.Cards {
			if c.Kind == "independent" {
				independent++
				break
			}
		}
	}
	if capstones != 1 {
		vs = append(vs, Violation{Field: "entries", Reason: fmt.Sprintf("scheme must contain exactly one capstone lesson, found %d", capstones)})
	}
	if independent == 0 {
		vs = append(vs, Violation{Field: "entries", Reason: "scheme must contain at least one lesson with independent work"})
	}
	return vs
}

// checkPairing requires every teach lesson to have a semantically linked
// follow-up (one sharing at least one ref) within the next `window`
// positions. Lessons are inspected in order.
func checkPairing(lessons []types.LessonSpec, window int) []Violation {
	ordered := make(map[int]types.LessonSpec, len(lessons))
	maxOrder := 0
	for _, l := range lessons {
		ordered[l.Order] = l
		if l.Order > maxOrder {
			maxOrder = l.Order
		}
	}

	var vs []Violation
	for order := 1; order <= maxOrder; order++ {
		l, ok := ordered[order]
		if !ok || l.Kind != types.LessonKindTeach {
			continue
		}
		if order == maxOrder {
			// nothing can follow the final lesson
			continue
		}
		linked := false
		for next := order + 1; next <= order+window && next <= maxOrder; next++ {
			if sharesRef(l, ordered[next]) {
				linked = true
				break
			}
		}
		if !linked {
			vs = append(vs, Violation{
				Order:  order,
				Field:  "refs",
				Reason: fmt.Sprintf("teach lesson %d has no linked follow-up within %d positions", order, window),
			})
		}
	}
	return vs
}

func sharesRef(a, b types.LessonSpec) bool {
	set := make(map[string]bool, len(a.Refs))
	for _, r := range a.Refs {
		set[r] = true
	}
	for _, r := range b.Refs {
		if set[r] {
			return true
		}
	}
	return false
}
