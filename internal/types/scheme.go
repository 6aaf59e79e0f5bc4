package types

// Pure JSON contracts for the scheme-of-work pipeline. Not DB models.

type LessonKind string

const (
	LessonKindTeach    LessonKind = "teach"
	LessonKindCapstone LessonKind = "capstone"
)

type OutlineEntry struct {
	Order        int        `json:"order"`
	Kind         LessonKind `json:"kind"`
	Label        string     `json:"label"`
	UnitRef      string     `json:"unit_ref"`
	PrimaryTopic string     `json:"primary_topic"`
	TopicCodes   []string   `json:"topic_codes"`
	Rationale    string     `json:"rationale"`
}

type Outline struct {
	Subject       string         `json:"subject"`
	Level         string         `json:"level"`
	TotalLessons  int            `json:"total_lessons"`
	StructureKind string         `json:"structure_kind"` // paired|simplified
	Entries       []OutlineEntry `json:"entries"`
}

type LessonCard struct {
	Kind      string   `json:"kind"`                 // explain|example|practice|independent|review
	ContentMD string   `json:"content_md,omitempty"` // explain/example/review
	Steps     []string `json:"steps,omitempty"`      // practice/independent
}

type LessonSpec struct {
	Order           int            `json:"order"`
	Kind            LessonKind     `json:"kind"`
	Title           string         `json:"title"`
	Cards           []LessonCard   `json:"cards"`
	Refs            []string       `json:"refs"`
	DurationMinutes int            `json:"duration_minutes"`
	Meta            map[string]any `json:"meta,omitempty"` // degraded flags, outstanding feedback
}

type SchemeMetadata struct {
	PolicyNotes            []string `json:"policy_notes"`
	SequencingNotes        []string `json:"sequencing_notes"`
	AccessibilityNotes     []string `json:"accessibility_notes"`
	EngagementNotes        []string `json:"engagement_notes"`
	EstimatedDurationUnits int      `json:"estimated_duration_units"`
}

// AssembledScheme is the only entity that crosses the persistence boundary.
// Built exactly once per run by the assembler; never mutated after.
type AssembledScheme struct {
	Subject  string         `json:"subject"`
	Level    string         `json:"level"`
	Version  string         `json:"version"`
	Entries  []LessonSpec   `json:"entries"`
	Metadata SchemeMetadata `json:"metadata"`
}

// Unit is one entry of the published unit/topic catalog a generation request
// is grounded in. Topic codes declared by outline entries must resolve here.
type Unit struct {
	Ref        string   `json:"ref"`
	Title      string   `json:"title"`
	TopicCodes []string `json:"topic_codes"`
}

type GenerationRequest struct {
	Subject        string `json:"subject"`
	Level          string `json:"level"`
	Version        string `json:"version"`
	TotalLessons   int    `json:"total_lessons"`
	StructureKind  string `json:"structure_kind"`
	Units          []Unit `json:"units"`
	RequirePairing bool   `json:"require_pairing"`
}

// TopicCatalog flattens the request's units into the set of topic codes an
// outline may declare.
func (r GenerationRequest) TopicCatalog() map[string]bool {
	out := make(map[string]bool)
	for _, u := range r.Units {
		for _, tc := range u.TopicCodes {
			out[tc] = true
		}
	}
	return out
}
