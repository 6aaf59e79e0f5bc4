package services

import (
  "context"
  "encoding/json"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/schemeworks/sow-backend/internal/clients/redis"
  "github.com/schemeworks/sow-backend/internal/codec"
  "github.com/schemeworks/sow-backend/internal/gateway"
  "github.com/schemeworks/sow-backend/internal/logger"
  "github.com/schemeworks/sow-backend/internal/phase"
  "github.com/schemeworks/sow-backend/internal/repos"
  "github.com/schemeworks/sow-backend/internal/sse"
  "github.com/schemeworks/sow-backend/internal/types"
)

type SchemeGenerationService interface {
  EnqueueGeneration(ctx context.Context, userID uuid.UUID, req types.GenerationRequest) (*types.SchemeGenerationRun, error)
  StartWorker(ctx context.Context)
}

type schemeGenerationService struct {
  db  *gorm.DB
  log *logger.Logger

  sseHub *sse.SSEHub
  sseBus redis.SSEBus

  docRepo repos.SchemeDocumentRepo
  runRepo repos.SchemeGenerationRunRepo

  payloadCodec *codec.Codec
  gen          gateway.Generator
  critic       gateway.Critic

  maxPhaseAttempts int
}

func NewSchemeGenerationService(
  db *gorm.DB,
  baseLog *logger.Logger,
  sseHub *sse.SSEHub,
  sseBus redis.SSEBus,
  docRepo repos.SchemeDocumentRepo,
  runRepo repos.SchemeGenerationRunRepo,
  payloadCodec *codec.Codec,
  gen gateway.Generator,
  critic gateway.Critic,
  maxPhaseAttempts int,
) SchemeGenerationService {
  if maxPhaseAttempts <= 0 {
    maxPhaseAttempts = phase.DefaultMaxAttempts
  }
  return &schemeGenerationService{
    db:               db,
    log:              baseLog.With("service", "SchemeGenerationService"),
    sseHub:           sseHub,
    sseBus:           sseBus,
    docRepo:          docRepo,
    runRepo:          runRepo,
    payloadCodec:     payloadCodec,
    gen:              gen,
    critic:           critic,
    maxPhaseAttempts: maxPhaseAttempts,
  }
}

func (sgs *schemeGenerationService) EnqueueGeneration(ctx context.Context, userID uuid.UUID, req types.GenerationRequest) (*types.SchemeGenerationRun, error) {
  // Missing prerequisites fail immediately with a typed error, never a
  // default-constructed placeholder.
  if req.Subject == "" || req.Level == "" || req.Version == "" {
    return nil, fmt.Errorf("generation request missing subject/level/version")
  }
  if req.TotalLessons <= 0 {
    return nil, fmt.Errorf("generation request must ask for at least one lesson")
  }
  if len(req.TopicCatalog()) == 0 {
    return nil, fmt.Errorf("generation request has no published topic catalog")
  }

  reqJSON, err := json.Marshal(req)
  if err != nil {
    return nil, fmt.Errorf("marshal generation request: %w", err)
  }

  now := time.Now()
  run := &types.SchemeGenerationRun{
    ID:        uuid.New(),
    UserID:    userID,
    SchemeID:  types.SchemeDocumentID(req.Subject, req.Level, req.Version),
    Status:    "queued",
    Stage:     "outline",
    Progress:  0,
    Attempts:  0,
    Request:   datatypes.JSON(reqJSON),
    Metadata:  datatypes.JSON([]byte(`{}`)),
    CreatedAt: now,
    UpdatedAt: now,
  }

  err = sgs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if _, err := sgs.runRepo.Create(ctx, tx, []*types.SchemeGenerationRun{run}); err != nil {
      return fmt.Errorf("create generation run: %w", err)
    }
    return nil
  })
  if err != nil {
    return nil, err
  }

  sgs.broadcast(userID, sse.SSEEventSchemeCreated, map[string]any{"run": run})
  return run, nil
}

func (sgs *schemeGenerationService) StartWorker(ctx context.Context) {
  go func() {
    ticker := time.NewTicker(1 * time.Second)
    defer ticker.Stop()

    // Worker policy
    const maxAttempts = 5
    retryDelay := 30 * time.Second
    staleRunning := 2 * time.Minute

    for {
      select {
      case <-ctx.Done():
        return
      case <-ticker.C:
        run, err := sgs.runRepo.ClaimNextRunnable(ctx, sgs.db, maxAttempts, retryDelay, staleRunning)
        if err != nil {
          sgs.log.Warn("ClaimNextRunnable failed", "error", err)
          continue
        }
        if run == nil {
          continue
        }
        sgs.processRun(ctx, run)
      }
    }
  }()
}

func (sgs *schemeGenerationService) processRun(ctx context.Context, run *types.SchemeGenerationRun) {
  userID := run.UserID
  runID := run.ID

  fail := func(stage string, err error) {
    now := time.Now()
    _ = sgs.runRepo.UpdateFields(ctx, nil, runID, map[string]any{
      "status":        "failed",
      "stage":         stage,
      "error":         err.Error(),
      "last_error_at": now,
      "locked_at":     nil,
      "updated_at":    now,
    })
    sgs.broadcast(userID, sse.SSEEventSchemeGenerationFailed, map[string]any{
      "run_id": runID,
      "stage":  stage,
      "error":  err.Error(),
    })
  }

  progress := func(stage string, pct int, msg string) {
    now := time.Now()
    _ = sgs.runRepo.UpdateFields(ctx, nil, runID, map[string]any{
      "stage":        stage,
      "progress":     pct,
      "heartbeat_at": now,
      "updated_at":   now,
    })
    sgs.broadcast(userID, sse.SSEEventSchemeGenerationProgress, map[string]any{
      "run_id":   runID,
      "stage":    stage,
      "progress": pct,
      "message":  msg,
    })
  }

  var req types.GenerationRequest
  if err := json.Unmarshal(run.Request, &req); err != nil {
    fail("outline", fmt.Errorf("parse generation request: %w", err))
    return
  }

  ctx = gateway.WithRunID(ctx, runID)

  result, err := RunPipeline(ctx, sgs.log, sgs.gen, sgs.critic, req, sgs.maxPhaseAttempts, progress)
  if err != nil {
    fail(PipelineStage(err), err)
    return
  }
  runMeta := result.RunMeta

  // PERSIST: size-adaptive encoding; large payloads go external.
  progress("persist", 90, "Persisting scheme document")

  payload, perr := sgs.payloadCodec.Encode(ctx, result.Scheme)
  if perr != nil {
    fail("persist", perr)
    return
  }

  docMeta := map[string]any{
    "status":          "ready",
    "scheme_metadata": result.Metadata,
  }
  if len(result.DegradedOrders) > 0 {
    docMeta["degraded_orders"] = result.DegradedOrders
  }

  now := time.Now()
  row := &types.SchemeDocument{
    ID:        run.SchemeID,
    UserID:    userID,
    Subject:   result.Scheme.Subject,
    Level:     result.Scheme.Level,
    Version:   result.Scheme.Version,
    Entries:   payload.Field(),
    Metadata:  datatypes.JSON(mustJSON(docMeta)),
    CreatedAt: now,
    UpdatedAt: now,
  }
  if _, uerr := sgs.docRepo.Upsert(ctx, nil, row); uerr != nil {
    fail("persist", fmt.Errorf("upsert scheme document: %w", uerr))
    return
  }

  runMeta["usage"] = result.Usage
  runMeta["payload_encoding"] = payload.Encoding
  if len(result.DegradedOrders) > 0 {
    runMeta["degraded_orders"] = result.DegradedOrders
  }

  _ = sgs.runRepo.UpdateFields(ctx, nil, runID, map[string]any{
    "status":       "succeeded",
    "stage":        "done",
    "progress":     100,
    "error":        "",
    "metadata":     datatypes.JSON(mustJSON(runMeta)),
    "locked_at":    nil,
    "heartbeat_at": now,
    "updated_at":   time.Now(),
  })

  sgs.broadcast(userID, sse.SSEEventSchemeGenerationDone, map[string]any{
    "run_id":    runID,
    "scheme_id": run.SchemeID,
  })
}

// broadcast goes through the redis bus when one is configured so every
// replica's hub sees the event; the local hub delivers directly otherwise.
func (sgs *schemeGenerationService) broadcast(userID uuid.UUID, event sse.SSEEvent, data any) {
  msg := sse.SSEMessage{
    Channel: userID.String(),
    Event:   event,
    Data:    data,
  }
  if sgs.sseBus != nil {
    if err := sgs.sseBus.Publish(context.Background(), msg); err == nil {
      return
    }
    sgs.log.Warn("redis SSE publish failed, falling back to local hub", "event", event)
  }
  sgs.sseHub.Broadcast(msg)
}

func mustJSON(v any) []byte {
  b, _ := json.Marshal(v)
  return b
}
