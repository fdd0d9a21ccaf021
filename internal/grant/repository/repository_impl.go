package repository

import (
	"context"
	"time"

	grantdomain "github.com/ecclesiahq/ecclesia/internal/grant/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() grantdomain.Repository {
	return &repository{}
}

func (r *repository) ListUnusedByEmail(ctx context.Context, db *gorm.DB, email string) ([]grantdomain.GrantedFreeAccount, error) {
	var items []grantdomain.GrantedFreeAccount
	err := db.WithContext(ctx).
		Where("LOWER(TRIM(email)) = ? AND is_used = ?", grantdomain.NormalizeEmail(email), false).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) MarkUsed(ctx context.Context, db *gorm.DB, id uuid.UUID, churchID uuid.UUID, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&grantdomain.GrantedFreeAccount{}).
		Where("id = ? AND is_used = ?", id, false).
		Updates(map[string]any{
			"is_used":   true,
			"used_at":   at,
			"church_id": churchID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return grantdomain.ErrGrantNotFound
	}
	return nil
}
