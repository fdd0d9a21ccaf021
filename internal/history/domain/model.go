package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChangeType string

const (
	ChangeGranted   ChangeType = "granted"
	ChangeUpgrade   ChangeType = "upgrade"
	ChangeDowngrade ChangeType = "downgrade"
	ChangeCancel    ChangeType = "cancel"
)

// Entry is an immutable audit row of a plan transition.
type Entry struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	ChurchID   uuid.UUID    `json:"church_id" gorm:"type:uuid;not null;index"`
	OldPlan    string       `json:"old_plan" gorm:"type:text"`
	NewPlan    string       `json:"new_plan" gorm:"type:text;not null"`
	ChangeType ChangeType   `json:"change_type" gorm:"type:text;not null"`
	MRRDelta   float64      `json:"mrr_delta" gorm:"column:mrr_delta;type:numeric(12,2);not null;default:0"`
	CreatedAt  time.Time    `json:"created_at"`
}

func (Entry) TableName() string { return "subscription_history" }

// Repository is append-only.
type Repository interface {
	Append(ctx context.Context, db *gorm.DB, entry *Entry) error
	ListByChurch(ctx context.Context, db *gorm.DB, churchID uuid.UUID) ([]Entry, error)
}
