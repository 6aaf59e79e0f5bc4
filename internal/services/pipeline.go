package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"

  "github.com/schemeworks/sow-backend/internal/assemble"
  "github.com/schemeworks/sow-backend/internal/gateway"
  "github.com/schemeworks/sow-backend/internal/logger"
  "github.com/schemeworks/sow-backend/internal/phase"
  "github.com/schemeworks/sow-backend/internal/types"
  "github.com/schemeworks/sow-backend/internal/validate"
)

const (
  outlineSystem = "You plan coherent schemes of work. Produce an ordered outline grounded " +
    "strictly in the published unit topic catalog, ending with a single capstone."
  lessonSystem = "You write one lesson specification at a time. Stay consistent with the " +
    "outline entry and with every previously accepted lesson; never contradict earlier refs."
  metadataSystem = "You summarize a finished scheme of work into policy, sequencing, " +
    "accessibility and engagement notes. Summarize only what the lessons actually contain."
)

// PipelineError wraps a pipeline failure with the stage it happened in.
type PipelineError struct {
  Stage string
  Err   error
}

func (e *PipelineError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *PipelineError) Unwrap() error { return e.Err }

func pipelineFail(stage string, err error) error {
  return &PipelineError{Stage: stage, Err: err}
}

// PipelineStage extracts the failing stage from a pipeline error, or "outline"
// when the error carries none.
func PipelineStage(err error) string {
  var pe *PipelineError
  if errors.As(err, &pe) {
    return pe.Stage
  }
  return "outline"
}

// PipelineResult carries everything the four phases produced.
type PipelineResult struct {
  Scheme         *types.AssembledScheme
  Metadata       types.SchemeMetadata
  Usage          gateway.Usage
  DegradedOrders []int
  // RunMeta holds flags for artifacts that passed validation but exhausted
  // their critique budget (outline_flagged, metadata_flagged).
  RunMeta map[string]any
}

// RunPipeline executes outline -> lessons -> metadata -> assemble against the
// given gateways. Lessons run strictly in outline order; lesson k sees only
// accepted lessons 1..k-1. A lesson that exhausts its attempt budget is kept
// degraded and the loop continues; outline, metadata and assembly exhaustion
// abort the pipeline.
func RunPipeline(
  ctx context.Context,
  log *logger.Logger,
  gen gateway.Generator,
  critic gateway.Critic,
  req types.GenerationRequest,
  maxAttempts int,
  progress func(stage string, pct int, msg string),
) (*PipelineResult, error) {
  if progress == nil {
    progress = func(string, int, string) {}
  }
  catalog := req.TopicCatalog()
  if len(catalog) == 0 {
    return nil, pipelineFail("outline", fmt.Errorf("no published topic catalog available"))
  }

  controller := phase.NewController(gen, critic, log)
  policy := validate.CrossEntryPolicy{RequirePairing: req.RequirePairing}

  result := &PipelineResult{RunMeta: map[string]any{}}

  progress("outline", 5, "Drafting outline")

  outlineOut, err := controller.Run(ctx, phase.Spec{
    Role:       gateway.RoleOutline,
    System:     outlineSystem,
    SchemaName: "scheme_outline",
    Schema:     outlineSchema(),
    Context:    map[string]any{"request": req},
    Validate: func(candidate json.RawMessage) error {
      var o types.Outline
      if uerr := json.Unmarshal(candidate, &o); uerr != nil {
        return validate.NewSchemaError([]validate.Violation{{Field: "outline", Reason: uerr.Error()}})
      }
      return validate.Outline(o, catalog)
    },
    MaxAttempts: maxAttempts,
  })
  if err != nil {
    return nil, pipelineFail("outline", err)
  }
  result.Usage.Add(outlineOut.Usage)

  if outlineOut.Candidate == nil {
    return nil, pipelineFail("outline", fmt.Errorf("outline generation produced no candidate after %d attempts", outlineOut.Attempts))
  }
  var outline types.Outline
  if uerr := json.Unmarshal(outlineOut.Candidate, &outline); uerr != nil {
    return nil, pipelineFail("outline", fmt.Errorf("outline candidate unparseable: %w", uerr))
  }
  if !outlineOut.Accepted() {
    if verr := validate.Outline(outline, catalog); verr != nil {
      return nil, pipelineFail("outline", fmt.Errorf("outline attempts exhausted without a structurally valid outline: %w", verr))
    }
    // structurally valid but below critique thresholds: proceed flagged
    result.RunMeta["outline_flagged"] = outlineOut.Feedback
  }
  progress("outline", 20, fmt.Sprintf("Outline ready with %d entries", len(outline.Entries)))

  accepted := make([]types.LessonSpec, 0, len(outline.Entries))
  seenRefs := map[string]bool{}
  total := len(outline.Entries)

  for i, entry := range outline.Entries {
    entry := entry
    refsSnapshot := make(map[string]bool, len(seenRefs))
    for r := range seenRefs {
      refsSnapshot[r] = true
    }

    out, err := controller.Run(ctx, phase.Spec{
      Role:       gateway.RoleLesson,
      System:     lessonSystem,
      SchemaName: "lesson_spec",
      Schema:     lessonSchema(),
      Context: map[string]any{
        "request":          req,
        "entry":            entry,
        "accepted_lessons": accepted,
      },
      Validate: func(candidate json.RawMessage) error {
        var l types.LessonSpec
        if uerr := json.Unmarshal(candidate, &l); uerr != nil {
          return validate.NewSchemaError([]validate.Violation{{Order: entry.Order, Field: "lesson", Reason: uerr.Error()}})
        }
        return validate.Lesson(l, entry, refsSnapshot)
      },
      MaxAttempts: maxAttempts,
    })
    if err != nil {
      return nil, pipelineFail("lessons", err)
    }
    result.Usage.Add(out.Usage)

    if out.Candidate == nil {
      return nil, pipelineFail("lessons", fmt.Errorf("lesson %d produced no candidate after %d attempts", entry.Order, out.Attempts))
    }
    var lesson types.LessonSpec
    if uerr := json.Unmarshal(out.Candidate, &lesson); uerr != nil {
      return nil, pipelineFail("lessons", fmt.Errorf("lesson %d: best candidate unparseable: %w", entry.Order, uerr))
    }

    if !out.Accepted() {
      if lesson.Meta == nil {
        lesson.Meta = map[string]any{}
      }
      lesson.Meta["degraded"] = true
      if len(out.Feedback) > 0 {
        lesson.Meta["outstanding_feedback"] = out.Feedback
      }
      if len(out.Violations) > 0 {
        lesson.Meta["outstanding_violations"] = out.Violations
      }
      // pin identity so a degraded lesson cannot derail sequencing
      lesson.Order = entry.Order
      lesson.Kind = entry.Kind
      result.DegradedOrders = append(result.DegradedOrders, entry.Order)
      log.Warn("lesson degraded, continuing", "order", entry.Order, "attempts", out.Attempts)
    }

    accepted = append(accepted, lesson)
    for _, r := range lesson.Refs {
      seenRefs[r] = true
    }

    progress("lessons", 20+int(float64(i+1)/float64(total)*50.0), fmt.Sprintf("Generated %d/%d lessons", i+1, total))
  }

  progress("metadata", 72, "Summarizing scheme metadata")

  metaOut, err := controller.Run(ctx, phase.Spec{
    Role:       gateway.RoleMetadata,
    System:     metadataSystem,
    SchemaName: "scheme_metadata",
    Schema:     metadataSchema(),
    Context: map[string]any{
      "request": req,
      "lessons": accepted,
    },
    Validate: func(candidate json.RawMessage) error {
      var m types.SchemeMetadata
      if uerr := json.Unmarshal(candidate, &m); uerr != nil {
        return validate.NewSchemaError([]validate.Violation{{Field: "metadata", Reason: uerr.Error()}})
      }
      return validate.Metadata(m)
    },
    MaxAttempts: maxAttempts,
  })
  if err != nil {
    return nil, pipelineFail("metadata", err)
  }
  result.Usage.Add(metaOut.Usage)

  if metaOut.Candidate == nil {
    return nil, pipelineFail("metadata", fmt.Errorf("metadata generation produced no candidate after %d attempts", metaOut.Attempts))
  }
  var meta types.SchemeMetadata
  if uerr := json.Unmarshal(metaOut.Candidate, &meta); uerr != nil {
    return nil, pipelineFail("metadata", fmt.Errorf("metadata candidate unparseable: %w", uerr))
  }
  if !metaOut.Accepted() {
    if verr := validate.Metadata(meta); verr != nil {
      return nil, pipelineFail("metadata", fmt.Errorf("metadata attempts exhausted without valid metadata: %w", verr))
    }
    result.RunMeta["metadata_flagged"] = metaOut.Feedback
  }
  result.Metadata = meta

  progress("assemble", 82, "Assembling scheme")

  doc, aerr := assemble.Assemble(outline, accepted, meta, req.Version, policy)
  if aerr != nil {
    return nil, pipelineFail("assemble", aerr)
  }
  result.Scheme = doc
  return result, nil
}
