package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*Church, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id uuid.UUID) (*Church, error)
	FindOwner(ctx context.Context, db *gorm.DB, churchID uuid.UUID) (*Member, error)
	ListOverdue(ctx context.Context, db *gorm.DB, excludePlan string) ([]Church, error)

	SaveSettings(ctx context.Context, db *gorm.DB, id uuid.UUID, settings Settings) error
	AddProRataCredit(ctx context.Context, db *gorm.DB, id uuid.UUID, credit float64, settings Settings) error
	ActivatePlan(ctx context.Context, db *gorm.DB, id uuid.UUID, plan string, settings *Settings) error
	Suspend(ctx context.Context, db *gorm.DB, id uuid.UUID, at time.Time) (bool, error)

	// Mutate runs fn inside a transaction holding the church row lock.
	Mutate(ctx context.Context, db *gorm.DB, id uuid.UUID, fn func(tx *gorm.DB, church *Church) error) error
}
