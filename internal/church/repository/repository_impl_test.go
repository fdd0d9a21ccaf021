package repository

import (
	"context"
	"testing"
	"time"

	churchdomain "github.com/ecclesiahq/ecclesia/internal/church/domain"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&churchdomain.Church{}, &churchdomain.Member{}))
	return db
}

func insertChurch(t *testing.T, db *gorm.DB, mutate func(*churchdomain.Church)) churchdomain.Church {
	t.Helper()
	c := churchdomain.Church{
		ID:     uuid.New(),
		Name:   "Igreja Central",
		Plan:   "ouro",
		Status: churchdomain.StatusActive,
	}
	if mutate != nil {
		mutate(&c)
	}
	require.NoError(t, db.Create(&c).Error)
	return c
}

func TestAddProRataCreditAccumulates(t *testing.T) {
	db := openDB(t)
	repo := Provide()
	ctx := context.Background()

	c := insertChurch(t, db, func(c *churchdomain.Church) {
		c.ProRataCredit = 5
		c.Settings = datatypes.NewJSONType(churchdomain.Settings{AsaasCustomerID: "cus_1"})
	})

	settings := c.Settings.Data()
	settings.PendingDowngrade = &churchdomain.PendingDowngrade{NewPlan: "prata", Credit: 16.67, DaysRemaining: 10}
	require.NoError(t, repo.AddProRataCredit(ctx, db, c.ID, 16.67, settings))

	got, err := repo.FindByID(ctx, db, c.ID)
	require.NoError(t, err)
	require.InDelta(t, 21.67, got.ProRataCredit, 0.0001)
	require.Equal(t, "cus_1", got.Settings.Data().AsaasCustomerID)
	require.Equal(t, "prata", got.Settings.Data().PendingDowngrade.NewPlan)
}

func TestFindByIDMissingReturnsNil(t *testing.T) {
	db := openDB(t)
	got, err := Provide().FindByID(context.Background(), db, uuid.New())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestListOverdueFilters(t *testing.T) {
	db := openDB(t)
	repo := Provide()
	overdue := time.Now().UTC().Add(-48 * time.Hour)

	want := insertChurch(t, db, func(c *churchdomain.Church) { c.PaymentOverdueAt = &overdue })
	insertChurch(t, db, func(c *churchdomain.Church) {
		c.PaymentOverdueAt = &overdue
		c.Status = churchdomain.StatusSuspended
	})
	insertChurch(t, db, func(c *churchdomain.Church) {
		c.PaymentOverdueAt = &overdue
		c.Plan = "free"
	})
	insertChurch(t, db, nil)

	items, err := repo.ListOverdue(context.Background(), db, "free")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, want.ID, items[0].ID)
}

func TestSuspendIsConditional(t *testing.T) {
	db := openDB(t)
	repo := Provide()
	ctx := context.Background()
	c := insertChurch(t, db, nil)

	changed, err := repo.Suspend(ctx, db, c.ID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = repo.Suspend(ctx, db, c.ID, time.Now().UTC())
	require.NoError(t, err)
	require.False(t, changed)
}

func TestMutateMissingChurch(t *testing.T) {
	db := openDB(t)
	err := Provide().Mutate(context.Background(), db, uuid.New(), func(*gorm.DB, *churchdomain.Church) error {
		t.Fatal("callback must not run")
		return nil
	})
	require.ErrorIs(t, err, churchdomain.ErrChurchNotFound)
}

func TestFindOwner(t *testing.T) {
	db := openDB(t)
	c := insertChurch(t, db, nil)
	owner := uuid.New()
	require.NoError(t, db.Create(&churchdomain.Member{ChurchID: c.ID, UserID: uuid.New(), Role: "editor"}).Error)
	require.NoError(t, db.Create(&churchdomain.Member{ChurchID: c.ID, UserID: owner, Role: churchdomain.MemberRoleOwner}).Error)

	m, err := Provide().FindOwner(context.Background(), db, c.ID)
	require.NoError(t, err)
	require.Equal(t, owner, m.UserID)
}
