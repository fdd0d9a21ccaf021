package sender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	notificationdomain "github.com/ecclesiahq/ecclesia/internal/notification/domain"
	"github.com/ecclesiahq/ecclesia/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSendPostsFlattenedPayload(t *testing.T) {
	var got map[string]any
	var auth, key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		key = r.Header.Get("Idempotency-Key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	metrics := observability.NewMetrics()
	s := NewHTTPSender(srv.URL, "secret", time.Second, metrics, zap.NewNop())
	msg := notificationdomain.NewMessage(notificationdomain.TypeInvoiceReminder, "a@b.com", "Igreja", "Ana", map[string]any{"daysUntilDue": 3})

	require.NoError(t, s.Send(context.Background(), msg))
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, msg.ID, key)
	assert.Equal(t, "invoice_reminder", got["type"])
	assert.Equal(t, "a@b.com", got["to"])
	assert.Equal(t, float64(3), got["daysUntilDue"])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Notifications.WithLabelValues("invoice_reminder", "sent")))
}

func TestSendReportsUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "", time.Second, nil, zap.NewNop())
	err := s.Send(context.Background(), notificationdomain.NewMessage(notificationdomain.TypeAccountSuspended, "a@b.com", "", "", nil))
	require.Error(t, err)

	s = NewHTTPSender("", "", time.Second, nil, zap.NewNop())
	err = s.Notify(context.Background(), notificationdomain.NewMessage(notificationdomain.TypeAccountSuspended, "a@b.com", "", "", nil))
	require.ErrorIs(t, err, notificationdomain.ErrNotConfigured)
}
