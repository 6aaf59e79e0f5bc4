package services

// JSON schemas for the structured outputs each generative phase must
// return. Strict mode: every property required, no additional properties.

func outlineSchema() map[string]any {
  return map[string]any{
    "type": "object",
    "properties": map[string]any{
      "subject":        map[string]any{"type": "string"},
      "level":          map[string]any{"type": "string"},
      "total_lessons":  map[string]any{"type": "integer"},
      "structure_kind": map[string]any{"type": "string"},
      "entries": map[string]any{
        "type": "array",
        "items": map[string]any{
          "type": "object",
          "properties": map[string]any{
            "order":         map[string]any{"type": "integer"},
            "kind":          map[string]any{"type": "string", "enum": []string{"teach", "capstone"}},
            "label":         map[string]any{"type": "string"},
            "unit_ref":      map[string]any{"type": "string"},
            "primary_topic": map[string]any{"type": "string"},
            "topic_codes":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
            "rationale":     map[string]any{"type": "string"},
          },
          "required":             []string{"order", "kind", "label", "unit_ref", "primary_topic", "topic_codes", "rationale"},
          "additionalProperties": false,
        },
      },
    },
    "required":             []string{"subject", "level", "total_lessons", "structure_kind", "entries"},
    "additionalProperties": false,
  }
}

func lessonSchema() map[string]any {
  return map[string]any{
    "type": "object",
    "properties": map[string]any{
      "order": map[string]any{"type": "integer"},
      "kind":  map[string]any{"type": "string", "enum": []string{"teach", "capstone"}},
      "title": map[string]any{"type": "string"},
      "cards": map[string]any{
        "type": "array",
        "items": map[string]any{
          "type": "object",
          "properties": map[string]any{
            "kind":       map[string]any{"type": "string", "enum": []string{"explain", "example", "practice", "independent", "review"}},
            "content_md": map[string]any{"type": "string"},
            "steps":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
          },
          "required":             []string{"kind", "content_md", "steps"},
          "additionalProperties": false,
        },
      },
      "refs":             map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
      "duration_minutes": map[string]any{"type": "integer"},
    },
    "required":             []string{"order", "kind", "title", "cards", "refs", "duration_minutes"},
    "additionalProperties": false,
  }
}

func metadataSchema() map[string]any {
  return map[string]any{
    "type": "object",
    "properties": map[string]any{
      "policy_notes":             map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
      "sequencing_notes":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
      "accessibility_notes":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
      "engagement_notes":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
      "estimated_duration_units": map[string]any{"type": "integer"},
    },
    "required":             []string{"policy_notes", "sequencing_notes", "accessibility_notes", "engagement_notes", "estimated_duration_units"},
    "additionalProperties": false,
  }
}
