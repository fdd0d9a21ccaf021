package repository

import (
	"context"
	"errors"
	"time"

	paymentdomain "github.com/ecclesiahq/ecclesia/internal/payment/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type paymentRepo struct{}

func Provide() paymentdomain.Repository {
	return &paymentRepo{}
}

func (r *paymentRepo) LatestPaid(ctx context.Context, db *gorm.DB, churchID uuid.UUID) (*paymentdomain.Payment, error) {
	var p paymentdomain.Payment
	err := db.WithContext(ctx).
		Where("church_id = ? AND status = ? AND paid_at IS NOT NULL", churchID, paymentdomain.PaymentStatusPaid).
		Order("paid_at DESC").
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) ListPendingDueOn(ctx context.Context, db *gorm.DB, day time.Time) ([]paymentdomain.Payment, error) {
	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	var items []paymentdomain.Payment
	err := db.WithContext(ctx).
		Where("status = ? AND due_date >= ? AND due_date < ?",
			paymentdomain.PaymentStatusPending, start, start.AddDate(0, 0, 1)).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}
