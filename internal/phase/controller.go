package phase

import (
	"context"
	"encoding/json"

	"github.com/schemeworks/sow-backend/internal/gateway"
	"github.com/schemeworks/sow-backend/internal/logger"
	"github.com/schemeworks/sow-backend/internal/validate"
)

type State string

const (
	StateDrafting   State = "drafting"
	StateValidating State = "validating"
	StateCritiquing State = "critiquing"
	StateRevising   State = "revising"
	StateAccepted   State = "accepted"
	StateExhausted  State = "exhausted"
)

// DefaultMaxAttempts bounds the generate/critique/revise loop.
const DefaultMaxAttempts = 10

// Validator runs the local structural check for one phase. It returns nil,
// a *validate.SchemaError or a *validate.InvariantError.
type Validator func(candidate json.RawMessage) error

// Spec configures one phase of the pipeline. The loop shape is identical for
// outline, lesson and metadata; only the validator, schema and role differ.
type Spec struct {
	Role        gateway.Role
	System      string
	SchemaName  string
	Schema      map[string]any
	Context     map[string]any
	Validate    Validator
	MaxAttempts int
}

// Outcome is the terminal result of one phase. StateExhausted still carries
// the best-scoring candidate seen so the pipeline can proceed with a
// flagged-imperfect artifact.
type Outcome struct {
	State      State
	Candidate  json.RawMessage
	Verdict    *gateway.Verdict
	Violations []validate.Violation
	Feedback   []string
	Attempts   int
	Usage      gateway.Usage
}

func (o *Outcome) Accepted() bool { return o.State == StateAccepted }

type Controller struct {
	gen    gateway.Generator
	critic gateway.Critic
	log    *logger.Logger
}

func NewController(gen gateway.Generator, critic gateway.Critic, log *logger.Logger) *Controller {
	return &Controller{
		gen:    gen,
		critic: critic,
		log:    log.With("component", "PhaseController"),
	}
}

// Run drives one phase through the explicit state machine
// DRAFTING -> VALIDATING -> CRITIQUING -> {ACCEPTED | REVISING -> DRAFTING | EXHAUSTED}.
// Local validation failures skip the critic entirely; every failed cycle
// consumes one attempt.
func (c *Controller) Run(ctx context.Context, spec Spec) (*Outcome, error) {
	maxAttempts := spec.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	out := &Outcome{State: StateDrafting}
	log := c.log.With("role", spec.Role)

	var (
		candidate  json.RawMessage
		feedback   []string
		violations []validate.Violation

		bestCandidate json.RawMessage
		bestVerdict   *gateway.Verdict
		bestScore     = -1.0
	)

	state := StateDrafting
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch state {
		case StateDrafting:
			callCtx := make(map[string]any, len(spec.Context)+1)
			for k, v := range spec.Context {
				callCtx[k] = v
			}
			if len(feedback) > 0 {
				callCtx["corrective_feedback"] = feedback
			}

			res, err := c.gen.Generate(ctx, gateway.Request{
				Role:       spec.Role,
				System:     spec.System,
				Context:    callCtx,
				SchemaName: spec.SchemaName,
				Schema:     spec.Schema,
			})
			if err != nil {
				log.Warn("generation attempt failed", "attempt", out.Attempts+1, "error", err)
				state = StateRevising
				continue
			}
			out.Usage.Add(res.Usage)
			candidate = res.Candidate
			state = StateValidating

		case StateValidating:
			if err := spec.Validate(candidate); err != nil {
				violations = validate.ViolationsOf(err)
				feedback = feedbackFromViolations(violations)
				log.Debug("local validation failed, skipping critique", "attempt", out.Attempts+1, "violations", len(violations))
				// the first broken candidate is kept only as a last-resort
				// fallback when nothing ever reaches the critic
				if bestCandidate == nil {
					bestCandidate = candidate
				}
				state = StateRevising
				continue
			}
			violations = nil
			state = StateCritiquing

		case StateCritiquing:
			v, usage, err := c.critic.Critique(ctx, spec.Role, candidate, spec.Context)
			out.Usage.Add(usage)
			if err != nil {
				log.Warn("critique attempt failed", "attempt", out.Attempts+1, "error", err)
				// the candidate already passed local validation, so until a
				// verdict scores it outranks any broken fallback
				if bestVerdict == nil {
					bestCandidate = candidate
				}
				state = StateRevising
				continue
			}
			if v.Overall > bestScore {
				bestScore = v.Overall
				bestCandidate = candidate
				bestVerdict = v
			}
			if v.Passed() {
				out.State = StateAccepted
				out.Candidate = candidate
				out.Verdict = v
				out.Attempts++
				return out, nil
			}
			feedback = v.Feedback
			state = StateRevising

		case StateRevising:
			out.Attempts++
			if out.Attempts >= maxAttempts {
				out.State = StateExhausted
				out.Candidate = bestCandidate
				out.Verdict = bestVerdict
				out.Violations = violations
				out.Feedback = feedback
				log.Warn("attempt budget exhausted", "attempts", out.Attempts, "best_score", bestScore)
				return out, nil
			}
			state = StateDrafting
		}
	}
}

func feedbackFromViolations(vs []validate.Violation) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}
