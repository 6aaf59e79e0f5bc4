package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// GatewayCallLog records every generative/critique collaborator call for
// audit and cost accounting. One row per attempt, success or not.
type GatewayCallLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RunID     *uuid.UUID     `gorm:"type:uuid;index" json:"run_id,omitempty"`
	Role      string         `gorm:"column:role;not null" json:"role"` // outline|lesson|metadata|critique
	Model     string         `gorm:"column:model;not null" json:"model"`
	Prompt    string         `gorm:"column:prompt" json:"prompt"`
	Response  string         `gorm:"column:response" json:"response"`
	Success   bool           `gorm:"column:success;not null" json:"success"`
	Error     string         `gorm:"column:error" json:"error"`
	Usage     datatypes.JSON `gorm:"type:jsonb;column:usage" json:"usage"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (GatewayCallLog) TableName() string { return "gateway_call_log" }
