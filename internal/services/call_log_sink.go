package services

import (
  "context"
  "encoding/json"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/schemeworks/sow-backend/internal/gateway"
  "github.com/schemeworks/sow-backend/internal/logger"
  "github.com/schemeworks/sow-backend/internal/repos"
  "github.com/schemeworks/sow-backend/internal/types"
)

// callLogSink persists every collaborator call for audit. A failed write is
// logged and dropped; auditing must never fail a generation attempt.
type callLogSink struct {
  db   *gorm.DB
  log  *logger.Logger
  repo repos.GatewayCallLogRepo
}

func NewCallLogSink(db *gorm.DB, baseLog *logger.Logger, repo repos.GatewayCallLogRepo) gateway.CallSink {
  return &callLogSink{
    db:   db,
    log:  baseLog.With("service", "CallLogSink"),
    repo: repo,
  }
}

func (s *callLogSink) Record(ctx context.Context, rec gateway.CallRecord) {
  usageJSON, _ := json.Marshal(rec.Usage)
  now := time.Now()
  row := &types.GatewayCallLog{
    ID:        uuid.New(),
    RunID:     rec.RunID,
    Role:      string(rec.Role),
    Model:     rec.Model,
    Prompt:    rec.Prompt,
    Response:  rec.Response,
    Success:   rec.Success,
    Error:     rec.Error,
    Usage:     datatypes.JSON(usageJSON),
    CreatedAt: now,
    UpdatedAt: now,
  }
  if _, err := s.repo.Create(ctx, nil, []*types.GatewayCallLog{row}); err != nil {
    s.log.Warn("failed to persist gateway call log", "error", err)
  }
}
