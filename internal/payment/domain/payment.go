package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusOverdue PaymentStatus = "overdue"
)

// Payment is one invoice or charge attempt mirrored from the gateway.
type Payment struct {
	ID             uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	ChurchID       uuid.UUID     `json:"church_id" gorm:"type:uuid;not null;index"`
	AsaasPaymentID string        `json:"asaas_payment_id,omitempty" gorm:"type:text"`
	DueDate        time.Time     `json:"due_date" gorm:"not null;index"`
	Amount         float64       `json:"amount" gorm:"type:numeric(12,2);not null"`
	Status         PaymentStatus `json:"status" gorm:"type:text;not null"`
	Plan           string        `json:"plan" gorm:"type:text"`
	InvoiceURL     string        `json:"invoice_url,omitempty" gorm:"type:text"`
	PaidAt         *time.Time    `json:"paid_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

func (Payment) TableName() string { return "payments" }

// BeforeSave stores the due date in UTC so calendar-day lookups compare
// like with like.
func (p *Payment) BeforeSave(*gorm.DB) error {
	p.DueDate = p.DueDate.UTC()
	return nil
}

type Repository interface {
	// LatestPaid returns the most recently paid payment of a church, or nil.
	LatestPaid(ctx context.Context, db *gorm.DB, churchID uuid.UUID) (*Payment, error)
	// ListPendingDueOn returns pending payments due on the UTC calendar date of day.
	ListPendingDueOn(ctx context.Context, db *gorm.DB, day time.Time) ([]Payment, error)
}
