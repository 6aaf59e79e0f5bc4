package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"

  "github.com/schemeworks/sow-backend/internal/logger"
  "github.com/schemeworks/sow-backend/internal/types"
)

type SchemeDocumentRepo interface {
  Upsert(ctx context.Context, tx *gorm.DB, doc *types.SchemeDocument) (*types.SchemeDocument, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.SchemeDocument, error)
  GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.SchemeDocument, error)
}

type schemeDocumentRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewSchemeDocumentRepo(db *gorm.DB, baseLog *logger.Logger) SchemeDocumentRepo {
  repoLog := baseLog.With("repo", "SchemeDocumentRepo")
  return &schemeDocumentRepo{db: db, log: repoLog}
}

func (r *schemeDocumentRepo) Upsert(ctx context.Context, tx *gorm.DB, doc *types.SchemeDocument) (*types.SchemeDocument, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if doc == nil {
    return nil, nil
  }
  if err := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "id"}},
      DoUpdates: clause.AssignmentColumns([]string{"entries", "metadata", "updated_at"}),
    }).
    Create(doc).Error; err != nil {
    return nil, err
  }
  return doc, nil
}

func (r *schemeDocumentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.SchemeDocument, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil, nil
  }
  var doc types.SchemeDocument
  err := transaction.WithContext(ctx).
    Where("id = ?", id).
    Limit(1).
    Find(&doc).Error
  if err != nil {
    return nil, err
  }
  if doc.ID == uuid.Nil {
    return nil, nil
  }
  return &doc, nil
}

func (r *schemeDocumentRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.SchemeDocument, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.SchemeDocument
  if userID == uuid.Nil {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("created_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
