package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/schemeworks/sow-backend/internal/logger"
  "github.com/schemeworks/sow-backend/internal/types"
)

type GatewayCallLogRepo interface {
  Create(ctx context.Context, tx *gorm.DB, logs []*types.GatewayCallLog) ([]*types.GatewayCallLog, error)
  GetByRunID(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.GatewayCallLog, error)
}

type gatewayCallLogRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewGatewayCallLogRepo(db *gorm.DB, baseLog *logger.Logger) GatewayCallLogRepo {
  repoLog := baseLog.With("repo", "GatewayCallLogRepo")
  return &gatewayCallLogRepo{db: db, log: repoLog}
}

func (r *gatewayCallLogRepo) Create(ctx context.Context, tx *gorm.DB, logs []*types.GatewayCallLog) ([]*types.GatewayCallLog, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(logs) == 0 {
    return []*types.GatewayCallLog{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&logs).Error; err != nil {
    return nil, err
  }
  return logs, nil
}

func (r *gatewayCallLogRepo) GetByRunID(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.GatewayCallLog, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.GatewayCallLog
  if runID == uuid.Nil {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("run_id = ?", runID).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
