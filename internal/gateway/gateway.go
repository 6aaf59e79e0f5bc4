package gateway

import (
  "context"
  "encoding/json"
  "fmt"

  "github.com/google/uuid"
)

// Role tags which pipeline phase a collaborator call belongs to.
type Role string

const (
  RoleOutline  Role = "outline"
  RoleLesson   Role = "lesson"
  RoleMetadata Role = "metadata"
  RoleCritique Role = "critique"
)

type Usage struct {
  PromptTokens     int `json:"prompt_tokens"`
  CompletionTokens int `json:"completion_tokens"`
  TotalTokens      int `json:"total_tokens"`
}

func (u *Usage) Add(other Usage) {
  u.PromptTokens += other.PromptTokens
  u.CompletionTokens += other.CompletionTokens
  u.TotalTokens += other.TotalTokens
}

// Request is the uniform call contract: structured context in, structured
// candidate out. The pipeline never inspects how the collaborator produces
// the candidate.
type Request struct {
  Role       Role
  System     string
  Context    map[string]any
  SchemaName string
  Schema     map[string]any
}

// Result is a successfully produced candidate plus the usage it cost.
type Result struct {
  Candidate json.RawMessage
  Usage     Usage
}

// GenerationFailure means the generative collaborator did not produce a
// usable candidate. Consumes one retry attempt.
type GenerationFailure struct {
  Role   Role
  Reason string
  Err    error
}

func (e *GenerationFailure) Error() string {
  return fmt.Sprintf("generation failed (%s): %s", e.Role, e.Reason)
}
func (e *GenerationFailure) Unwrap() error { return e.Err }

// CritiqueFailure means the critic call itself failed, not that the
// candidate scored badly.
type CritiqueFailure struct {
  Reason string
  Err    error
}

func (e *CritiqueFailure) Error() string {
  return fmt.Sprintf("critique failed: %s", e.Reason)
}
func (e *CritiqueFailure) Unwrap() error { return e.Err }

type Generator interface {
  Generate(ctx context.Context, req Request) (*Result, error)
}

type DimensionScore struct {
  Name      string  `json:"name"`
  Score     float64 `json:"score"`
  Threshold float64 `json:"threshold"`
}

// Verdict is a critic's judgment of one candidate.
type Verdict struct {
  Dimensions       []DimensionScore `json:"dimensions"`
  Overall          float64          `json:"overall"`
  OverallThreshold float64          `json:"overall_threshold"`
  Feedback         []string         `json:"feedback"`
}

// Passed requires every dimension to clear its own threshold AND the overall
// score to clear its own. Both conditions are necessary.
func (v *Verdict) Passed() bool {
  for _, d := range v.Dimensions {
    if d.Score < d.Threshold {
      return false
    }
  }
  return v.Overall >= v.OverallThreshold
}

type Critic interface {
  Critique(ctx context.Context, role Role, candidate json.RawMessage, callContext map[string]any) (*Verdict, Usage, error)
}

// CallRecord is one collaborator call, success or not, handed to a CallSink
// for audit.
type CallRecord struct {
  RunID    *uuid.UUID
  Role     Role
  Model    string
  Prompt   string
  Response string
  Success  bool
  Error    string
  Usage    Usage
}

// CallSink receives a record for every collaborator call. Injected, never
// ambient; a nil sink disables auditing.
type CallSink interface {
  Record(ctx context.Context, rec CallRecord)
}

type runIDKey struct{}

// WithRunID scopes subsequent gateway calls to a generation run for audit.
func WithRunID(ctx context.Context, id uuid.UUID) context.Context {
  return context.WithValue(ctx, runIDKey{}, id)
}

func RunIDFrom(ctx context.Context) *uuid.UUID {
  if v, ok := ctx.Value(runIDKey{}).(uuid.UUID); ok {
    return &v
  }
  return nil
}
