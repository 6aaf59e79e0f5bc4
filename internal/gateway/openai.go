package gateway

import (
  "bytes"
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "io"
  "math/rand"
  "net"
  "net/http"
  "os"
  "strconv"
  "strings"
  "time"

  "github.com/schemeworks/sow-backend/internal/logger"
)

// openAIGateway implements both Generator and Critic against the OpenAI
// Responses API with structured outputs. The pipeline only sees the
// interfaces.
type openAIGateway struct {
  log        *logger.Logger
  baseURL    string
  apiKey     string
  model      string
  httpClient *http.Client
  sink       CallSink

  maxRetries int

  critiqueDims     []string
  dimThreshold     float64
  overallThreshold float64
}

func NewOpenAIGateway(log *logger.Logger, sink CallSink) (Generator, Critic, error) {
  apiKey := os.Getenv("OPENAI_API_KEY")
  if apiKey == "" {
    return nil, nil, fmt.Errorf("missing OPENAI_API_KEY")
  }

  baseURL := os.Getenv("OPENAI_BASE_URL")
  if baseURL == "" {
    baseURL = "https://api.openai.com"
  }

  model := os.Getenv("OPENAI_MODEL")
  if model == "" {
    model = "gpt-5.2"
  }

  // default timeout higher for production generation workloads
  timeoutSec := 180
  if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
      timeoutSec = parsed
    }
  }

  maxRetries := 4
  if v := os.Getenv("OPENAI_MAX_RETRIES"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
      maxRetries = parsed
    }
  }

  dimThreshold := 0.7
  if v := os.Getenv("CRITIQUE_DIMENSION_THRESHOLD"); v != "" {
    if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
      dimThreshold = parsed
    }
  }
  overallThreshold := 0.8
  if v := os.Getenv("CRITIQUE_OVERALL_THRESHOLD"); v != "" {
    if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
      overallThreshold = parsed
    }
  }

  gw := &openAIGateway{
    log:              log.With("service", "OpenAIGateway"),
    baseURL:          baseURL,
    apiKey:           apiKey,
    model:            model,
    httpClient:       &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
    sink:             sink,
    maxRetries:       maxRetries,
    critiqueDims:     []string{"accuracy", "progression", "clarity", "alignment"},
    dimThreshold:     dimThreshold,
    overallThreshold: overallThreshold,
  }
  return gw, gw, nil
}

type openAIHTTPError struct {
  StatusCode int
  Body       string
}

func (e *openAIHTTPError) Error() string {
  return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
  if code == 408 || code == 429 {
    return true
  }
  if code >= 500 && code <= 599 {
    return true
  }
  return false
}

func isRetryableErr(err error) bool {
  if err == nil {
    return false
  }
  if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
    return true
  }
  var netErr net.Error
  if errors.As(err, &netErr) {
    if netErr.Timeout() || netErr.Temporary() {
      return true
    }
  }
  var httpErr *openAIHTTPError
  if errors.As(err, &httpErr) {
    return isRetryableHTTP(httpErr.StatusCode)
  }
  return false
}

func jitterSleep(base time.Duration) time.Duration {
  // +/- 20%
  if base <= 0 {
    return 0
  }
  j := 0.2
  delta := base.Seconds() * j
  low := base.Seconds() - delta
  high := base.Seconds() + delta
  if low < 0 {
    low = 0
  }
  v := low + rand.Float64()*(high-low)
  return time.Duration(v * float64(time.Second))
}

func (g *openAIGateway) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
  var buf bytes.Buffer
  if body != nil {
    if err := json.NewEncoder(&buf).Encode(body); err != nil {
      return nil, nil, err
    }
  }

  req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, &buf)
  if err != nil {
    return nil, nil, err
  }
  req.Header.Set("Authorization", "Bearer "+g.apiKey)
  req.Header.Set("Content-Type", "application/json")

  resp, err := g.httpClient.Do(req)
  if err != nil {
    return nil, nil, err
  }

  raw, readErr := io.ReadAll(resp.Body)
  _ = resp.Body.Close()
  if readErr != nil {
    return resp, nil, readErr
  }

  if resp.StatusCode < 200 || resp.StatusCode >= 300 {
    return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
  }
  return resp, raw, nil
}

func (g *openAIGateway) do(ctx context.Context, method, path string, body any, out any) error {
  backoff := 500 * time.Millisecond

  for attempt := 0; attempt <= g.maxRetries; attempt++ {
    if err := ctx.Err(); err != nil {
      return err
    }

    resp, raw, err := g.doOnce(ctx, method, path, body)
    if err == nil {
      if out == nil {
        return nil
      }
      if uErr := json.Unmarshal(raw, out); uErr != nil {
        return fmt.Errorf("openai decode error: %w; raw=%s", uErr, string(raw))
      }
      return nil
    }

    if !isRetryableErr(err) {
      return err
    }
    if attempt == g.maxRetries {
      return err
    }

    // Respect Retry-After when present
    sleepFor := backoff
    if resp != nil {
      ra := strings.TrimSpace(resp.Header.Get("Retry-After"))
      if ra != "" {
        if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
          sleepFor = time.Duration(secs) * time.Second
        }
      }
    }
    if sleepFor > 10*time.Second {
      sleepFor = 10 * time.Second
    }
    sleepFor = jitterSleep(sleepFor)

    g.log.Warn("OpenAI request retrying",
      "path", path,
      "attempt", attempt+1,
      "max_retries", g.maxRetries,
      "sleep", sleepFor.String(),
      "error", err.Error(),
    )

    time.Sleep(sleepFor)
    backoff *= 2
  }

  return fmt.Errorf("unreachable retry loop")
}

// ---- Responses JSON (Structured Outputs via text.format json_schema) ----

type responsesRequest struct {
  Model string `json:"model"`
  Input []struct {
    Role    string `json:"role"`
    Content string `json:"content"`
  } `json:"input"`
  Text struct {
    Format map[string]any `json:"format"`
  } `json:"text"`
  Temperature float64 `json:"temperature,omitempty"`
}

type responsesResponse struct {
  Output []struct {
    Type    string `json:"type"`
    Role    string `json:"role,omitempty"`
    Content []struct {
      Type string `json:"type"`
      Text string `json:"text,omitempty"`
    } `json:"content,omitempty"`
  } `json:"output"`
  Usage struct {
    InputTokens  int `json:"input_tokens"`
    OutputTokens int `json:"output_tokens"`
    TotalTokens  int `json:"total_tokens"`
  } `json:"usage"`
  Refusal string `json:"refusal,omitempty"`
}

func (g *openAIGateway) generateJSON(ctx context.Context, role Role, system, user, schemaName string, schema map[string]any) (json.RawMessage, Usage, error) {
  req := responsesRequest{
    Model: g.model,
    Input: []struct {
      Role    string `json:"role"`
      Content string `json:"content"`
    }{
      {Role: "system", Content: system},
      {Role: "user", Content: user},
    },
    Temperature: 0.2,
  }
  req.Text.Format = map[string]any{
    "type":   "json_schema",
    "name":   schemaName,
    "schema": schema,
    "strict": true,
  }

  var resp responsesResponse
  err := g.do(ctx, "POST", "/v1/responses", req, &resp)

  usage := Usage{
    PromptTokens:     resp.Usage.InputTokens,
    CompletionTokens: resp.Usage.OutputTokens,
    TotalTokens:      resp.Usage.TotalTokens,
  }

  var jsonText string
  if err == nil {
    if resp.Refusal != "" {
      err = fmt.Errorf("model refused: %s", resp.Refusal)
    } else {
      for _, item := range resp.Output {
        if item.Type == "message" && item.Role == "assistant" {
          for _, c := range item.Content {
            if c.Type == "output_text" && c.Text != "" {
              jsonText += c.Text
            }
          }
        }
      }
      if jsonText == "" {
        err = fmt.Errorf("no output_text found in response")
      }
    }
  }

  if g.sink != nil {
    rec := CallRecord{
      RunID:    RunIDFrom(ctx),
      Role:     role,
      Model:    g.model,
      Prompt:   user,
      Response: jsonText,
      Success:  err == nil,
      Usage:    usage,
    }
    if err != nil {
      rec.Error = err.Error()
    }
    g.sink.Record(ctx, rec)
  }

  if err != nil {
    return nil, usage, err
  }
  if !json.Valid([]byte(jsonText)) {
    return nil, usage, fmt.Errorf("model output is not valid JSON: %s", jsonText)
  }
  return json.RawMessage(jsonText), usage, nil
}

func (g *openAIGateway) Generate(ctx context.Context, req Request) (*Result, error) {
  ctxJSON, err := json.Marshal(req.Context)
  if err != nil {
    return nil, &GenerationFailure{Role: req.Role, Reason: "marshal call context", Err: err}
  }

  user := fmt.Sprintf("Call context:\n%s\n\nProduce the %s candidate.", string(ctxJSON), req.Role)
  candidate, usage, err := g.generateJSON(ctx, req.Role, req.System, user, req.SchemaName, req.Schema)
  if err != nil {
    return nil, &GenerationFailure{Role: req.Role, Reason: err.Error(), Err: err}
  }
  return &Result{Candidate: candidate, Usage: usage}, nil
}

const critiqueSystem = "You are a rigorous reviewer of scheme-of-work artifacts. " +
  "Score each dimension between 0 and 1 and give concrete, actionable feedback."

func (g *openAIGateway) Critique(ctx context.Context, role Role, candidate json.RawMessage, callContext map[string]any) (*Verdict, Usage, error) {
  ctxJSON, err := json.Marshal(callContext)
  if err != nil {
    return nil, Usage{}, &CritiqueFailure{Reason: "marshal call context", Err: err}
  }

  schema := map[string]any{
    "type": "object",
    "properties": map[string]any{
      "scores": map[string]any{
        "type": "object",
        "properties": func() map[string]any {
          props := map[string]any{}
          for _, d := range g.critiqueDims {
            props[d] = map[string]any{"type": "number"}
          }
          return props
        }(),
        "required":             g.critiqueDims,
        "additionalProperties": false,
      },
      "overall":  map[string]any{"type": "number"},
      "feedback": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
    },
    "required":             []string{"scores", "overall", "feedback"},
    "additionalProperties": false,
  }

  user := fmt.Sprintf(
    "Phase: %s\nCall context:\n%s\n\nCandidate:\n%s\n\nScore the candidate.",
    role, string(ctxJSON), string(candidate),
  )

  raw, usage, err := g.generateJSON(ctx, RoleCritique, critiqueSystem, user, "critique_verdict", schema)
  if err != nil {
    return nil, usage, &CritiqueFailure{Reason: err.Error(), Err: err}
  }

  var parsed struct {
    Scores   map[string]float64 `json:"scores"`
    Overall  float64            `json:"overall"`
    Feedback []string           `json:"feedback"`
  }
  if err := json.Unmarshal(raw, &parsed); err != nil {
    return nil, usage, &CritiqueFailure{Reason: "parse verdict", Err: err}
  }

  verdict := &Verdict{
    Overall:          parsed.Overall,
    OverallThreshold: g.overallThreshold,
    Feedback:         parsed.Feedback,
  }
  for _, d := range g.critiqueDims {
    verdict.Dimensions = append(verdict.Dimensions, DimensionScore{
      Name:      d,
      Score:     parsed.Scores[d],
      Threshold: g.dimThreshold,
    })
  }
  return verdict, usage, nil
}
