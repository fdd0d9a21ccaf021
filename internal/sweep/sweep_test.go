package sweep

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	churchdomain "github.com/ecclesiahq/ecclesia/internal/church/domain"
	churchrepo "github.com/ecclesiahq/ecclesia/internal/church/repository"
	"github.com/ecclesiahq/ecclesia/internal/clock"
	"github.com/ecclesiahq/ecclesia/internal/config"
	"github.com/ecclesiahq/ecclesia/internal/contact"
	notificationdomain "github.com/ecclesiahq/ecclesia/internal/notification/domain"
	"github.com/ecclesiahq/ecclesia/internal/observability"
	paymentdomain "github.com/ecclesiahq/ecclesia/internal/payment/domain"
	paymentrepo "github.com/ecclesiahq/ecclesia/internal/payment/repository"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var now = time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)

type fakeNotifier struct {
	mu     sync.Mutex
	failTo map[string]bool
	msgs   []notificationdomain.Message
}

func (f *fakeNotifier) Notify(_ context.Context, msg notificationdomain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[msg.To] {
		return errors.New("dispatch unavailable")
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeNotifier) byTo() map[string]notificationdomain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]notificationdomain.Message, len(f.msgs))
	for _, m := range f.msgs {
		out[m.To] = m
	}
	return out
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	notifier *fakeNotifier
	metrics  *observability.Metrics
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	// Sweeps write concurrently; one connection keeps shared-cache sqlite
	// from reporting table locks.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&churchdomain.Church{}, &churchdomain.Member{}, &paymentdomain.Payment{},
		&contact.Profile{}, &contact.AuthUser{},
	))

	churches := churchrepo.Provide()
	metrics := observability.NewMetrics()
	notifier := &fakeNotifier{failTo: map[string]bool{}}
	cfg := config.Config{Sweep: config.SweepConfig{GracePeriodDays: 7, Concurrency: 2}}
	svc := NewService(Params{
		DB:          db,
		Log:         zap.NewNop(),
		Config:      cfg,
		Clock:       clock.Fixed(now),
		ChurchRepo:  churches,
		PaymentRepo: paymentrepo.Provide(),
		Owners:      contact.NewResolver(contact.Params{DB: db, Log: zap.NewNop(), ChurchRepo: churches}),
		Notifier:    notifier,
		Metrics:     metrics,
	})
	return &fixture{svc: svc, db: db, notifier: notifier, metrics: metrics}
}

func (f *fixture) church(t *testing.T, name, email, plan string, overdueFor *time.Duration, status churchdomain.Status) churchdomain.Church {
	t.Helper()
	c := churchdomain.Church{ID: uuid.New(), Name: name, Plan: plan, Status: status}
	if email != "" {
		c.Email = &email
	}
	if overdueFor != nil {
		at := now.Add(-*overdueFor)
		c.PaymentOverdueAt = &at
	}
	require.NoError(t, f.db.Create(&c).Error)
	return c
}

func (f *fixture) status(t *testing.T, id uuid.UUID) churchdomain.Status {
	t.Helper()
	var c churchdomain.Church
	require.NoError(t, f.db.First(&c, "id = ?", id).Error)
	return c.Status
}

func ptr(d time.Duration) *time.Duration { return &d }

const day = 24 * time.Hour

func TestOverdueGraceBoundary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	exact := f.church(t, "Exata", "exata@example.com", "ouro", ptr(7*day), churchdomain.StatusActive)
	almost := f.church(t, "Quase", "quase@example.com", "prata", ptr(7*day-time.Second), churchdomain.StatusActive)
	six := f.church(t, "Seis", "seis@example.com", "bronze", ptr(6*day), churchdomain.StatusActive)
	free := f.church(t, "Gratis", "gratis@example.com", "free", ptr(30*day), churchdomain.StatusActive)
	suspended := f.church(t, "Suspensa", "suspensa@example.com", "ouro", ptr(30*day), churchdomain.StatusSuspended)
	current := f.church(t, "Em dia", "emdia@example.com", "ouro", nil, churchdomain.StatusActive)

	summary, err := f.svc.RunOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 1, summary.Suspended)
	assert.Equal(t, 2, summary.Reminded)
	assert.Empty(t, summary.Errors)

	assert.Equal(t, churchdomain.StatusSuspended, f.status(t, exact.ID))
	assert.Equal(t, churchdomain.StatusActive, f.status(t, almost.ID))
	assert.Equal(t, churchdomain.StatusActive, f.status(t, six.ID))
	assert.Equal(t, churchdomain.StatusActive, f.status(t, free.ID))
	assert.Equal(t, churchdomain.StatusActive, f.status(t, current.ID))
	assert.Equal(t, churchdomain.StatusSuspended, f.status(t, suspended.ID))

	sent := f.notifier.byTo()
	require.Len(t, sent, 3)
	assert.Equal(t, notificationdomain.TypeAccountSuspended, sent["exata@example.com"].Type)
	assert.Equal(t, notificationdomain.TypePaymentOverdue, sent["quase@example.com"].Type)
	assert.Equal(t, 6, sent["quase@example.com"].Data["daysOverdue"])
	assert.Equal(t, 1, sent["quase@example.com"].Data["daysRemaining"])
	assert.Equal(t, 6, sent["seis@example.com"].Data["daysOverdue"])
	assert.Equal(t, "Seis", sent["seis@example.com"].ChurchName)
}

func TestOverdueIsolatesPerChurchFailures(t *testing.T) {
	f := setup(t)
	a := f.church(t, "A", "a@example.com", "ouro", ptr(2*day), churchdomain.StatusActive)
	f.church(t, "B", "b@example.com", "ouro", ptr(2*day), churchdomain.StatusActive)
	f.church(t, "C", "c@example.com", "prata", ptr(3*day), churchdomain.StatusActive)
	f.notifier.failTo["a@example.com"] = true

	summary, err := f.svc.RunOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 2, summary.Reminded)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, a.ID.String(), summary.Errors[0].ID)
	assert.Equal(t, "A", summary.Errors[0].Name)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SweepChurches.WithLabelValues("overdue", outcomeFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.SweepChurches.WithLabelValues("overdue", outcomeReminded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SweepErrors.WithLabelValues("overdue")))

	sent := f.notifier.byTo()
	assert.Contains(t, sent, "b@example.com")
	assert.Contains(t, sent, "c@example.com")
}

func TestSuspensionSurvivesNotificationFailure(t *testing.T) {
	f := setup(t)
	c := f.church(t, "A", "a@example.com", "ouro", ptr(10*day), churchdomain.StatusActive)
	f.notifier.failTo["a@example.com"] = true

	summary, err := f.svc.RunOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Suspended)
	assert.Len(t, summary.Errors, 1)
	assert.Equal(t, churchdomain.StatusSuspended, f.status(t, c.ID))
}

func TestDaysOverdue(t *testing.T) {
	assert.Equal(t, 7, DaysOverdue(now, now.Add(-7*day)))
	assert.Equal(t, 6, DaysOverdue(now, now.Add(-7*day+time.Nanosecond)))
	assert.Equal(t, 0, DaysOverdue(now, now.Add(-time.Hour)))
}

func (f *fixture) invoice(t *testing.T, church churchdomain.Church, due time.Time, status paymentdomain.PaymentStatus) paymentdomain.Payment {
	t.Helper()
	p := paymentdomain.Payment{ID: uuid.New(), ChurchID: church.ID, DueDate: due, Amount: 69, Status: status, Plan: "prata"}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func TestInvoiceRemindersMatchExactDates(t *testing.T) {
	f := setup(t)
	today := clock.StartOfDay(now)

	three := f.church(t, "Tres", "tres@example.com", "prata", nil, churchdomain.StatusActive)
	one := f.church(t, "Um", "um@example.com", "prata", nil, churchdomain.StatusActive)
	exactHours := f.church(t, "Horas", "horas@example.com", "prata", nil, churchdomain.StatusActive)
	localMidnight := f.church(t, "Local", "local@example.com", "prata", nil, churchdomain.StatusActive)
	halfDay := f.church(t, "Meio", "meio@example.com", "prata", nil, churchdomain.StatusActive)
	paid := f.church(t, "Pago", "pago@example.com", "prata", nil, churchdomain.StatusActive)
	noContact := f.church(t, "Sem contato", "", "prata", nil, churchdomain.StatusActive)
	failing := f.church(t, "Falha", "falha@example.com", "prata", nil, churchdomain.StatusActive)
	f.notifier.failTo["falha@example.com"] = true

	f.invoice(t, three, today.AddDate(0, 0, 3), paymentdomain.PaymentStatusPending)
	f.invoice(t, one, today.AddDate(0, 0, 1), paymentdomain.PaymentStatusPending)
	f.invoice(t, exactHours, now.Add(72*time.Hour), paymentdomain.PaymentStatusPending)
	f.invoice(t, localMidnight, time.Date(2026, 10, 22, 0, 0, 0, 0, time.FixedZone("BRT", -3*60*60)), paymentdomain.PaymentStatusPending)
	f.invoice(t, halfDay, now.Add(3*day+12*time.Hour), paymentdomain.PaymentStatusPending)
	f.invoice(t, paid, today.AddDate(0, 0, 3), paymentdomain.PaymentStatusPaid)
	f.invoice(t, noContact, today.AddDate(0, 0, 1), paymentdomain.PaymentStatusPending)
	bad := f.invoice(t, failing, today.AddDate(0, 0, 3), paymentdomain.PaymentStatusPending)

	summary, err := f.svc.RunReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.ThreeDay)
	assert.Equal(t, 2, summary.OneDay)
	assert.Equal(t, 4, summary.Sent)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, bad.ID.String(), summary.Errors[0].ID)

	sent := f.notifier.byTo()
	keys := make([]string, 0, len(sent))
	for k := range sent {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"horas@example.com", "local@example.com", "tres@example.com", "um@example.com"}, keys)
	assert.Equal(t, 3, sent["tres@example.com"].Data["daysUntilDue"])
	assert.Equal(t, "3_day", sent["tres@example.com"].Data["reminderType"])
	assert.Equal(t, "2026-10-22", sent["tres@example.com"].Data["dueDate"])
	assert.Equal(t, 1, sent["um@example.com"].Data["daysUntilDue"])
	assert.NotContains(t, sent, "meio@example.com")
}
