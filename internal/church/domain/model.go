package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive         Status = "active"
	StatusPendingPayment Status = "pending_payment"
	StatusSuspended      Status = "suspended"
)

var (
	ErrChurchNotFound = errors.New("church_not_found")
	ErrInvalidChurch  = errors.New("invalid_church")
)

// Church is the billing tenant. One church is one deployed site.
type Church struct {
	ID                 uuid.UUID                    `json:"id" gorm:"type:uuid;primaryKey"`
	Name               string                       `json:"name" gorm:"type:text;not null"`
	Email              *string                      `json:"email,omitempty" gorm:"type:text"`
	Plan               string                       `json:"plan" gorm:"type:text;not null;default:free"`
	Status             Status                       `json:"status" gorm:"type:text;not null;default:pending_payment"`
	PaymentOverdueAt   *time.Time                   `json:"payment_overdue_at,omitempty"`
	CurrentPeriodStart *time.Time                   `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time                   `json:"current_period_end,omitempty"`
	ProRataCredit      float64                      `json:"pro_rata_credit" gorm:"type:numeric(12,2);not null;default:0"`
	Settings           datatypes.JSONType[Settings] `json:"settings" gorm:"type:jsonb"`
	CreatedAt          time.Time                    `json:"created_at"`
	UpdatedAt          time.Time                    `json:"updated_at"`
}

func (Church) TableName() string { return "churches" }

// ContactEmail returns the church's own billing email, if any.
func (c Church) ContactEmail() string {
	if c.Email == nil {
		return ""
	}
	return *c.Email
}

// Member links an identity-provider user to a church.
type Member struct {
	ChurchID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role     string    `gorm:"type:text;not null"`
}

func (Member) TableName() string { return "church_members" }

const MemberRoleOwner = "owner"

// PendingDowngrade is advisory state written by the pro-rata calculator and
// consumed by whatever applies the downgrade at period end.
type PendingDowngrade struct {
	NewPlan       string    `json:"new_plan"`
	Credit        float64   `json:"credit"`
	CalculatedAt  time.Time `json:"calculated_at"`
	DaysRemaining int       `json:"days_remaining"`
}

// Settings is the typed view of the church settings column. Keys this
// package does not know about are carried through untouched.
type Settings struct {
	AsaasCustomerID     string
	AsaasSubscriptionID string
	AsaasPaymentLinkID  string
	PendingPlan         string
	PendingDowngrade    *PendingDowngrade

	extra map[string]json.RawMessage
}

const (
	keyCustomerID       = "asaas_customer_id"
	keySubscriptionID   = "asaas_subscription_id"
	keyPaymentLinkID    = "asaas_payment_link_id"
	keyPendingPlan      = "pending_plan"
	keyPendingDowngrade = "pending_downgrade"
)

func (s Settings) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.extra)+5)
	for k, v := range s.extra {
		out[k] = v
	}
	putString(out, keyCustomerID, s.AsaasCustomerID)
	putString(out, keySubscriptionID, s.AsaasSubscriptionID)
	putString(out, keyPaymentLinkID, s.AsaasPaymentLinkID)
	putString(out, keyPendingPlan, s.PendingPlan)
	if s.PendingDowngrade != nil {
		out[keyPendingDowngrade] = s.PendingDowngrade
	} else {
		delete(out, keyPendingDowngrade)
	}
	return json.Marshal(out)
}

func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Settings{}
	var err error
	if s.AsaasCustomerID, err = takeString(raw, keyCustomerID); err != nil {
		return err
	}
	if s.AsaasSubscriptionID, err = takeString(raw, keySubscriptionID); err != nil {
		return err
	}
	if s.AsaasPaymentLinkID, err = takeString(raw, keyPaymentLinkID); err != nil {
		return err
	}
	if s.PendingPlan, err = takeString(raw, keyPendingPlan); err != nil {
		return err
	}
	if v, ok := raw[keyPendingDowngrade]; ok {
		delete(raw, keyPendingDowngrade)
		if string(v) != "null" {
			var pd PendingDowngrade
			if err := json.Unmarshal(v, &pd); err != nil {
				return err
			}
			s.PendingDowngrade = &pd
		}
	}
	if len(raw) > 0 {
		s.extra = raw
	}
	return nil
}

func putString(out map[string]any, key, value string) {
	if value == "" {
		delete(out, key)
		return
	}
	out[key] = value
}

func takeString(raw map[string]json.RawMessage, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", nil
	}
	delete(raw, key)
	if string(v) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", err
	}
	return s, nil
}
