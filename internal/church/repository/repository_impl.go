package repository

import (
	"context"
	"errors"
	"time"

	churchdomain "github.com/ecclesiahq/ecclesia/internal/church/domain"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct{}

func Provide() churchdomain.Repository {
	return &repository{}
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*churchdomain.Church, error) {
	var church churchdomain.Church
	err := db.WithContext(ctx).Where("id = ?", id).First(&church).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &church, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id uuid.UUID) (*churchdomain.Church, error) {
	var church churchdomain.Church
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&church).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &church, nil
}

func (r *repository) FindOwner(ctx context.Context, db *gorm.DB, churchID uuid.UUID) (*churchdomain.Member, error) {
	var member churchdomain.Member
	err := db.WithContext(ctx).
		Where("church_id = ? AND role = ?", churchID, churchdomain.MemberRoleOwner).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (r *repository) ListOverdue(ctx context.Context, db *gorm.DB, excludePlan string) ([]churchdomain.Church, error) {
	var items []churchdomain.Church
	err := db.WithContext(ctx).
		Where("payment_overdue_at IS NOT NULL").
		Where("status <> ?", churchdomain.StatusSuspended).
		Where("plan <> ?", excludePlan).
		Order("payment_overdue_at ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) SaveSettings(ctx context.Context, db *gorm.DB, id uuid.UUID, settings churchdomain.Settings) error {
	return r.update(ctx, db, id, map[string]any{
		"settings": datatypes.NewJSONType(settings),
	})
}

func (r *repository) AddProRataCredit(ctx context.Context, db *gorm.DB, id uuid.UUID, credit float64, settings churchdomain.Settings) error {
	return r.update(ctx, db, id, map[string]any{
		"pro_rata_credit": gorm.Expr("pro_rata_credit + ?", credit),
		"settings":        datatypes.NewJSONType(settings),
	})
}

func (r *repository) ActivatePlan(ctx context.Context, db *gorm.DB, id uuid.UUID, plan string, settings *churchdomain.Settings) error {
	values := map[string]any{
		"plan":   plan,
		"status": churchdomain.StatusActive,
	}
	if settings != nil {
		values["settings"] = datatypes.NewJSONType(*settings)
	}
	return r.update(ctx, db, id, values)
}

func (r *repository) Suspend(ctx context.Context, db *gorm.DB, id uuid.UUID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&churchdomain.Church{}).
		Where("id = ? AND status <> ?", id, churchdomain.StatusSuspended).
		Updates(map[string]any{
			"status":     churchdomain.StatusSuspended,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) Mutate(ctx context.Context, db *gorm.DB, id uuid.UUID, fn func(tx *gorm.DB, church *churchdomain.Church) error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		church, err := r.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if church == nil {
			return churchdomain.ErrChurchNotFound
		}
		return fn(tx, church)
	})
}

func (r *repository) update(ctx context.Context, db *gorm.DB, id uuid.UUID, values map[string]any) error {
	res := db.WithContext(ctx).
		Model(&churchdomain.Church{}).
		Where("id = ?", id).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return churchdomain.ErrChurchNotFound
	}
	return nil
}
