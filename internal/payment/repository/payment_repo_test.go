package repository

import (
	"context"
	"testing"
	"time"

	paymentdomain "github.com/ecclesiahq/ecclesia/internal/payment/domain"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&paymentdomain.Payment{}))
	return db
}

func TestLatestPaidPicksMostRecent(t *testing.T) {
	db := openDB(t)
	churchID := uuid.New()
	older := time.Date(2026, 8, 5, 12, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 9, 5, 12, 0, 0, 0, time.UTC)

	for _, p := range []paymentdomain.Payment{
		{ID: uuid.New(), ChurchID: churchID, DueDate: older, Amount: 119, Status: paymentdomain.PaymentStatusPaid, PaidAt: &older},
		{ID: uuid.New(), ChurchID: churchID, DueDate: newer, Amount: 119, Status: paymentdomain.PaymentStatusPaid, PaidAt: &newer},
		{ID: uuid.New(), ChurchID: churchID, DueDate: newer, Amount: 119, Status: paymentdomain.PaymentStatusPending},
		{ID: uuid.New(), ChurchID: uuid.New(), DueDate: newer, Amount: 69, Status: paymentdomain.PaymentStatusPaid, PaidAt: &newer},
	} {
		require.NoError(t, db.Create(&p).Error)
	}

	got, err := Provide().LatestPaid(context.Background(), db, churchID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.PaidAt.Equal(newer))

	none, err := Provide().LatestPaid(context.Background(), db, uuid.New())
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestListPendingDueOnMatchesCalendarDate(t *testing.T) {
	db := openDB(t)
	day := time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC)
	brt := time.FixedZone("BRT", -3*60*60)

	midnight := paymentdomain.Payment{ID: uuid.New(), ChurchID: uuid.New(), DueDate: day, Amount: 69, Status: paymentdomain.PaymentStatusPending}
	afternoon := paymentdomain.Payment{ID: uuid.New(), ChurchID: uuid.New(), DueDate: day.Add(15*time.Hour + 30*time.Minute), Amount: 69, Status: paymentdomain.PaymentStatusPending}
	localMidnight := paymentdomain.Payment{ID: uuid.New(), ChurchID: uuid.New(), DueDate: time.Date(2026, 10, 22, 0, 0, 0, 0, brt), Amount: 69, Status: paymentdomain.PaymentStatusPending}
	nextDay := paymentdomain.Payment{ID: uuid.New(), ChurchID: uuid.New(), DueDate: day.AddDate(0, 0, 1), Amount: 69, Status: paymentdomain.PaymentStatusPending}
	previousDay := paymentdomain.Payment{ID: uuid.New(), ChurchID: uuid.New(), DueDate: day.Add(-time.Second), Amount: 69, Status: paymentdomain.PaymentStatusPending}
	paid := paymentdomain.Payment{ID: uuid.New(), ChurchID: uuid.New(), DueDate: day, Amount: 69, Status: paymentdomain.PaymentStatusPaid}
	for _, p := range []paymentdomain.Payment{midnight, afternoon, localMidnight, nextDay, previousDay, paid} {
		require.NoError(t, db.Create(&p).Error)
	}

	items, err := Provide().ListPendingDueOn(context.Background(), db, day.Add(9*time.Hour))
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(items))
	for _, p := range items {
		ids = append(ids, p.ID)
	}
	require.ElementsMatch(t, []uuid.UUID{midnight.ID, afternoon.ID, localMidnight.ID}, ids)
}
