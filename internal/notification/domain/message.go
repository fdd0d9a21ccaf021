package domain

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
)

type Type string

const (
	TypePaymentOverdue       Type = "payment_overdue"
	TypeAccountSuspended     Type = "account_suspended"
	TypeInvoiceReminder      Type = "invoice_reminder"
	TypeFreeAccountActivated Type = "free_account_activated"
)

var ErrNotConfigured = errors.New("notification_endpoint_not_configured")

// Message is one email dispatch request. Data carries the type-specific
// fields, which are flattened next to the common ones on the wire.
type Message struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	To         string            `json:"to"`
	ChurchName string            `json:"churchName,omitempty"`
	OwnerName  string            `json:"ownerName,omitempty"`
	Data       datatypes.JSONMap `json:"data,omitempty"`
	Attempts   int               `json:"attempts"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func NewMessage(typ Type, to, churchName, ownerName string, data map[string]any) Message {
	return Message{
		ID:         ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		Type:       typ,
		To:         to,
		ChurchName: churchName,
		OwnerName:  ownerName,
		Data:       datatypes.JSONMap(data),
		CreatedAt:  time.Now().UTC(),
	}
}

// Payload is the body posted to the dispatch endpoint.
func (m Message) Payload() map[string]any {
	out := make(map[string]any, len(m.Data)+4)
	for k, v := range m.Data {
		out[k] = v
	}
	out["type"] = m.Type
	out["to"] = m.To
	out["churchName"] = m.ChurchName
	out["ownerName"] = m.OwnerName
	return out
}

// Notifier accepts a message for delivery. Implementations may deliver
// inline or hand the message to a queue.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}
