package gateway

import (
  "context"
  "encoding/json"
  "errors"
  "net/http"
  "net/http/httptest"
  "sync/atomic"
  "testing"

  "github.com/google/uuid"

  "github.com/schemeworks/sow-backend/internal/logger"
)

type recordingSink struct {
  records []CallRecord
}

func (s *recordingSink) Record(ctx context.Context, rec CallRecord) {
  s.records = append(s.records, rec)
}

func responsesBody(text string, totalTokens int) map[string]any {
  return map[string]any{
    "output": []map[string]any{
      {
        "type": "message",
        "role": "assistant",
        "content": []map[string]any{
          {"type": "output_text", "text": text},
        },
      },
    },
    "usage": map[string]any{
      "input_tokens":  7,
      "output_tokens": totalTokens - 7,
      "total_tokens":  totalTokens,
    },
  }
}

func newTestGateway(t *testing.T, baseURL string, sink CallSink) (Generator, Critic) {
  t.Helper()
  t.Setenv("OPENAI_API_KEY", "test-key")
  t.Setenv("OPENAI_BASE_URL", baseURL)
  t.Setenv("OPENAI_MODEL", "test-model")
  t.Setenv("OPENAI_MAX_RETRIES", "2")

  gen, critic, err := NewOpenAIGateway(logger.NewNop(), sink)
  if err != nil {
    t.Fatalf("NewOpenAIGateway: %v", err)
  }
  return gen, critic
}

func TestOpenAIGateway_GenerateParsesStructuredOutput(t *testing.T) {
  var gotAuth string
  srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    gotAuth = r.Header.Get("Authorization")
    if r.URL.Path != "/v1/responses" {
      t.Errorf("unexpected path %s", r.URL.Path)
    }
    _ = json.NewEncoder(w).Encode(responsesBody(`{"subject":"Mathematics"}`, 20))
  }))
  defer srv.Close()

  sink := &recordingSink{}
  gen, _ := newTestGateway(t, srv.URL, sink)

  runID := uuid.New()
  ctx := WithRunID(context.Background(), runID)
  res, err := gen.Generate(ctx, Request{
    Role:       RoleOutline,
    System:     "sys",
    Context:    map[string]any{"request": "r"},
    SchemaName: "scheme_outline",
    Schema:     map[string]any{"type": "object"},
  })
  if err != nil {
    t.Fatalf("Generate: %v", err)
  }
  if string(res.Candidate) != `{"subject":"Mathematics"}` {
    t.Fatalf("unexpected candidate %s", res.Candidate)
  }
  if res.Usage.TotalTokens != 20 || res.Usage.PromptTokens != 7 {
    t.Fatalf("unexpected usage %+v", res.Usage)
  }
  if gotAuth != "Bearer test-key" {
    t.Fatalf("unexpected auth header %q", gotAuth)
  }

  if len(sink.records) != 1 {
    t.Fatalf("expected 1 audit record, got %d", len(sink.records))
  }
  rec := sink.records[0]
  if !rec.Success || rec.Role != RoleOutline || rec.Model != "test-model" {
    t.Fatalf("unexpected record %+v", rec)
  }
  if rec.RunID == nil || *rec.RunID != runID {
    t.Fatalf("record must carry the run id, got %v", rec.RunID)
  }
}

func TestOpenAIGateway_RetriesOnRateLimit(t *testing.T) {
  var calls int32
  srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    if atomic.AddInt32(&calls, 1) == 1 {
      w.Header().Set("Retry-After", "0")
      w.WriteHeader(http.StatusTooManyRequests)
      return
    }
    _ = json.NewEncoder(w).Encode(responsesBody(`{"ok":true}`, 10))
  }))
  defer srv.Close()

  gen, _ := newTestGateway(t, srv.URL, nil)
  res, err := gen.Generate(context.Background(), Request{
    Role:       RoleLesson,
    SchemaName: "lesson_spec",
    Schema:     map[string]any{"type": "object"},
  })
  if err != nil {
    t.Fatalf("Generate: %v", err)
  }
  if string(res.Candidate) != `{"ok":true}` {
    t.Fatalf("unexpected candidate %s", res.Candidate)
  }
  if got := atomic.LoadInt32(&calls); got != 2 {
    t.Fatalf("expected 2 calls, got %d", got)
  }
}

func TestOpenAIGateway_BadRequestIsNotRetried(t *testing.T) {
  var calls int32
  srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    atomic.AddInt32(&calls, 1)
    http.Error(w, `{"error":"bad schema"}`, http.StatusBadRequest)
  }))
  defer srv.Close()

  sink := &recordingSink{}
  gen, _ := newTestGateway(t, srv.URL, sink)
  _, err := gen.Generate(context.Background(), Request{
    Role:       RoleOutline,
    SchemaName: "scheme_outline",
    Schema:     map[string]any{"type": "object"},
  })
  if err == nil {
    t.Fatalf("expected an error")
  }
  var gf *GenerationFailure
  if !errors.As(err, &gf) {
    t.Fatalf("expected *GenerationFailure, got %T: %v", err, err)
  }
  if got := atomic.LoadInt32(&calls); got != 1 {
    t.Fatalf("400 must not be retried, saw %d calls", got)
  }
  if len(sink.records) != 1 || sink.records[0].Success {
    t.Fatalf("failed call must still be audited: %+v", sink.records)
  }
}

func TestOpenAIGateway_CritiqueBuildsVerdict(t *testing.T) {
  verdictJSON := `{"scores":{"accuracy":0.9,"progression":0.8,"clarity":0.85,"alignment":0.75},"overall":0.82,"feedback":["solid"]}`
  srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    _ = json.NewEncoder(w).Encode(responsesBody(verdictJSON, 12))
  }))
  defer srv.Close()

  _, critic := newTestGateway(t, srv.URL, nil)
  v, usage, err := critic.Critique(context.Background(), RoleOutline, json.RawMessage(`{"x":1}`), map[string]any{})
  if err != nil {
    t.Fatalf("Critique: %v", err)
  }
  if len(v.Dimensions) != 4 {
    t.Fatalf("expected 4 dimensions, got %d", len(v.Dimensions))
  }
  if !v.Passed() {
    t.Fatalf("expected a passing verdict: %+v", v)
  }
  if v.Overall != 0.82 || v.OverallThreshold != 0.8 {
    t.Fatalf("unexpected overall %+v", v)
  }
  if usage.TotalTokens != 12 {
    t.Fatalf("unexpected usage %+v", usage)
  }
}

func TestOpenAIGateway_ModelNonJSONOutputFails(t *testing.T) {
  srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    _ = json.NewEncoder(w).Encode(responsesBody("not json at all", 5))
  }))
  defer srv.Close()

  gen, _ := newTestGateway(t, srv.URL, nil)
  _, err := gen.Generate(context.Background(), Request{
    Role:       RoleMetadata,
    SchemaName: "scheme_metadata",
    Schema:     map[string]any{"type": "object"},
  })
  if err == nil {
    t.Fatalf("expected an error for non-JSON model output")
  }
}
