package services

import (
  "context"
  "fmt"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/schemeworks/sow-backend/internal/repos"
  "github.com/schemeworks/sow-backend/internal/types"
)

type SchemeStatusService interface {
  GetLatestRunForScheme(ctx context.Context, tx *gorm.DB, schemeID uuid.UUID) (*types.SchemeGenerationRun, error)
  GetRunByID(ctx context.Context, tx *gorm.DB, runID uuid.UUID) (*types.SchemeGenerationRun, error)
}

type schemeStatusService struct {
  db      *gorm.DB
  runRepo repos.SchemeGenerationRunRepo
}

func NewSchemeStatusService(db *gorm.DB, runRepo repos.SchemeGenerationRunRepo) SchemeStatusService {
  return &schemeStatusService{
    db:      db,
    runRepo: runRepo,
  }
}

func (s *schemeStatusService) GetLatestRunForScheme(ctx context.Context, tx *gorm.DB, schemeID uuid.UUID) (*types.SchemeGenerationRun, error) {
  if schemeID == uuid.Nil {
    return nil, fmt.Errorf("missing scheme id")
  }

  transaction := tx
  if transaction == nil {
    transaction = s.db
  }

  run, err := s.runRepo.GetLatestBySchemeID(ctx, transaction, schemeID)
  if err != nil {
    return nil, err
  }
  if run == nil {
    return nil, fmt.Errorf("no generation run for scheme")
  }
  return run, nil
}

func (s *schemeStatusService) GetRunByID(ctx context.Context, tx *gorm.DB, runID uuid.UUID) (*types.SchemeGenerationRun, error) {
  if runID == uuid.Nil {
    return nil, fmt.Errorf("missing run id")
  }

  transaction := tx
  if transaction == nil {
    transaction = s.db
  }

  runs, err := s.runRepo.GetByIDs(ctx, transaction, []uuid.UUID{runID})
  if err != nil {
    return nil, err
  }
  if len(runs) == 0 || runs[0] == nil {
    return nil, fmt.Errorf("run not found")
  }
  return runs[0], nil
}
