package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	notificationdomain "github.com/ecclesiahq/ecclesia/internal/notification/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	mu    sync.Mutex
	fail  int
	sent  []notificationdomain.Message
	calls int
}

func (f *fakeSender) Send(_ context.Context, msg notificationdomain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fail {
		return errors.New("smtp down")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func setup(t *testing.T, sender Sender, attempts int) (*Outbox, *Worker, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ob := New(rdb, "test:notifications", zap.NewNop())
	w := NewWorker(ob, sender, NewRetryPolicy(RetryConfig{MaxAttempts: attempts, InitialDelay: time.Minute}), zap.NewNop())
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }
	return ob, w, &now
}

func TestDrainDeliversInOrder(t *testing.T) {
	sender := &fakeSender{}
	ob, w, _ := setup(t, sender, 3)
	ctx := context.Background()

	first := notificationdomain.NewMessage(notificationdomain.TypeInvoiceReminder, "a@b.com", "A", "", nil)
	second := notificationdomain.NewMessage(notificationdomain.TypeInvoiceReminder, "c@d.com", "C", "", nil)
	require.NoError(t, ob.Notify(ctx, first))
	require.NoError(t, ob.Notify(ctx, second))

	n, err := w.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sender.sent, 2)
	assert.Equal(t, first.ID, sender.sent[0].ID)
	assert.Equal(t, 1, sender.sent[0].Attempts)
	assert.Equal(t, second.ID, sender.sent[1].ID)
}

func TestFailedDeliveryIsRetriedWithBackoff(t *testing.T) {
	sender := &fakeSender{fail: 1}
	ob, w, now := setup(t, sender, 3)
	ctx := context.Background()

	require.NoError(t, ob.Notify(ctx, notificationdomain.NewMessage(notificationdomain.TypePaymentOverdue, "a@b.com", "A", "", nil)))

	_, err := w.Drain(ctx)
	require.NoError(t, err)
	stats, err := ob.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Retries: 1}, stats)

	// Not yet due.
	n, err := w.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	*now = now.Add(time.Minute)
	n, err = w.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, 2, sender.sent[0].Attempts)

	stats, err = ob.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestExhaustedMessageGoesToDeadList(t *testing.T) {
	sender := &fakeSender{fail: 10}
	ob, w, now := setup(t, sender, 2)
	ctx := context.Background()

	require.NoError(t, ob.Notify(ctx, notificationdomain.NewMessage(notificationdomain.TypeAccountSuspended, "a@b.com", "A", "", nil)))
	_, err := w.Drain(ctx)
	require.NoError(t, err)
	*now = now.Add(time.Hour)
	_, err = w.Drain(ctx)
	require.NoError(t, err)

	stats, err := ob.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Dead: 1}, stats)
	assert.Equal(t, 2, sender.calls)
}

func TestNextDelay(t *testing.T) {
	p := NewRetryPolicy(RetryConfig{InitialDelay: time.Second, MaxDelay: 5 * time.Second, MaxAttempts: 10})
	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 5*time.Second, p.NextDelay(4))
	assert.True(t, p.ShouldRetry(9))
	assert.False(t, p.ShouldRetry(10))
}
