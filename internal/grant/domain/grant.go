package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrGrantNotFound = errors.New("grant_not_found")
	ErrGrantExpired  = errors.New("grant_expired")
	ErrInvalidEmail  = errors.New("invalid_email")
)

// GrantedFreeAccount is an administrator-issued entitlement to a plan,
// keyed by email and consumable once.
type GrantedFreeAccount struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Email     string     `json:"email" gorm:"type:text;not null;index"`
	Plan      string     `json:"plan" gorm:"type:text;not null"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsUsed    bool       `json:"is_used" gorm:"not null;default:false"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	ChurchID  *uuid.UUID `json:"church_id,omitempty" gorm:"type:uuid"`
	Notes     string     `json:"notes,omitempty" gorm:"type:text"`
	GrantedBy *uuid.UUID `json:"granted_by,omitempty" gorm:"type:uuid"`
	CreatedAt time.Time  `json:"created_at"`
}

func (GrantedFreeAccount) TableName() string { return "granted_free_accounts" }

// Expired is a function of time; expiry is never stored.
func (g GrantedFreeAccount) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && g.ExpiresAt.Before(now)
}

type Status string

const (
	StatusNone      Status = "none"
	StatusAvailable Status = "available"
	StatusExpired   Status = "expired"
)

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type Repository interface {
	ListUnusedByEmail(ctx context.Context, db *gorm.DB, email string) ([]GrantedFreeAccount, error)
	// MarkUsed consumes the grant only while it is still unused and returns
	// ErrGrantNotFound otherwise.
	MarkUsed(ctx context.Context, db *gorm.DB, id uuid.UUID, churchID uuid.UUID, at time.Time) error
}
