package services

import (
  "context"
  "fmt"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/schemeworks/sow-backend/internal/codec"
  "github.com/schemeworks/sow-backend/internal/logger"
  "github.com/schemeworks/sow-backend/internal/repos"
  "github.com/schemeworks/sow-backend/internal/types"
)

// SchemeService reads persisted schemes back, decoding the entries field
// transparently regardless of which storage path the codec chose.
type SchemeService interface {
  GetScheme(ctx context.Context, tx *gorm.DB, schemeID uuid.UUID) (*types.AssembledScheme, *types.SchemeDocument, error)
  ListSchemes(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.SchemeDocument, error)
}

type schemeService struct {
  db           *gorm.DB
  log          *logger.Logger
  docRepo      repos.SchemeDocumentRepo
  payloadCodec *codec.Codec
}

func NewSchemeService(db *gorm.DB, baseLog *logger.Logger, docRepo repos.SchemeDocumentRepo, payloadCodec *codec.Codec) SchemeService {
  return &schemeService{
    db:           db,
    log:          baseLog.With("service", "SchemeService"),
    docRepo:      docRepo,
    payloadCodec: payloadCodec,
  }
}

func (s *schemeService) GetScheme(ctx context.Context, tx *gorm.DB, schemeID uuid.UUID) (*types.AssembledScheme, *types.SchemeDocument, error) {
  row, err := s.docRepo.GetByID(ctx, tx, schemeID)
  if err != nil {
    return nil, nil, err
  }
  if row == nil {
    return nil, nil, fmt.Errorf("scheme not found")
  }

  var scheme types.AssembledScheme
  if err := s.payloadCodec.Decode(ctx, row.Entries, &scheme); err != nil {
    // decode failures are fatal to the read, never silently defaulted
    return nil, nil, err
  }
  return &scheme, row, nil
}

func (s *schemeService) ListSchemes(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.SchemeDocument, error) {
  return s.docRepo.GetByUserID(ctx, tx, userID)
}
