package assemble

import (
	"sort"

	"github.com/schemeworks/sow-backend/internal/types"
	"github.com/schemeworks/sow-backend/internal/validate"
)

// Assemble merges the accepted lessons and metadata into the single
// persistable document. It is the last gate before persistence: the
// cross-entry checker runs over the full ordered sequence and any violation
// fails the whole assembly, never yielding a partial document. Inputs are
// not mutated.
func Assemble(outline types.Outline, lessons []types.LessonSpec, meta types.SchemeMetadata, version string, policy validate.CrossEntryPolicy) (*types.AssembledScheme, error) {
	ordered := make([]types.LessonSpec, len(lessons))
	copy(ordered, lessons)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	if vs := validate.CrossEntry(ordered, policy); len(vs) > 0 {
		return nil, &validate.InvariantError{Violations: vs}
	}

	return &types.AssembledScheme{
		Subject:  outline.Subject,
		Level:    outline.Level,
		Version:  version,
		Entries:  ordered,
		Metadata: meta,
	}, nil
}
