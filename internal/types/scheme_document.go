package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SchemeDocument is the persisted form of an AssembledScheme. The Entries
// column holds the codec output: either "external:<key>", a compressed
// base64 string, or legacy raw JSON written before the codec existed.
type SchemeDocument struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Subject   string         `gorm:"column:subject;not null;index" json:"subject"`
	Level     string         `gorm:"column:level;not null" json:"level"`
	Version   string         `gorm:"column:version;not null" json:"version"`
	Entries   string         `gorm:"column:entries;type:text" json:"entries"`
	Metadata  datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (SchemeDocument) TableName() string { return "scheme_document" }

// SchemeDocNamespace seeds the deterministic document id derived from
// (subject, level, version). Re-persisting the same scheme overwrites the
// same row.
var SchemeDocNamespace = uuid.MustParse("7d1c2a9e-4f0b-4a43-9c31-a6a0f1d52e88")

func SchemeDocumentID(subject, level, version string) uuid.UUID {
	return uuid.NewSHA1(SchemeDocNamespace, []byte(subject+"\x00"+level+"\x00"+version))
}
