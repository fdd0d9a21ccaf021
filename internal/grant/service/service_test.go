package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	churchdomain "github.com/ecclesiahq/ecclesia/internal/church/domain"
	churchrepo "github.com/ecclesiahq/ecclesia/internal/church/repository"
	"github.com/ecclesiahq/ecclesia/internal/clock"
	"github.com/ecclesiahq/ecclesia/internal/contact"
	grantdomain "github.com/ecclesiahq/ecclesia/internal/grant/domain"
	grantrepo "github.com/ecclesiahq/ecclesia/internal/grant/repository"
	historydomain "github.com/ecclesiahq/ecclesia/internal/history/domain"
	historyrepo "github.com/ecclesiahq/ecclesia/internal/history/repository"
	notificationdomain "github.com/ecclesiahq/ecclesia/internal/notification/domain"
	plandomain "github.com/ecclesiahq/ecclesia/internal/plan/domain"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	err  error
	msgs []notificationdomain.Message
}

func (r *recordingNotifier) Notify(_ context.Context, msg notificationdomain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	notifier *recordingNotifier
	church   churchdomain.Church
	adminID  uuid.UUID
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&churchdomain.Church{}, &churchdomain.Member{},
		&grantdomain.GrantedFreeAccount{}, &historydomain.Entry{},
		&contact.Profile{}, &contact.AuthUser{}, &contact.UserRole{},
	))

	adminID := uuid.New()
	otherAdmin := uuid.New()
	require.NoError(t, db.Create(&contact.AuthUser{ID: adminID, Email: "Admin@Example.com"}).Error)
	require.NoError(t, db.Create(&contact.AuthUser{ID: otherAdmin, Email: "ops@example.com"}).Error)
	require.NoError(t, db.Create(&contact.UserRole{UserID: adminID, Role: contact.RolePlatformAdmin}).Error)
	require.NoError(t, db.Create(&contact.UserRole{UserID: otherAdmin, Role: contact.RolePlatformAdmin}).Error)

	church := churchdomain.Church{ID: uuid.New(), Name: "Igreja Central", Plan: "free", Status: churchdomain.StatusPendingPayment}
	require.NoError(t, db.Create(&church).Error)

	node, _ := snowflake.NewNode(1)
	notifier := &recordingNotifier{}
	churches := churchrepo.Provide()
	svc := NewService(ServiceParam{
		DB:          db,
		Log:         zap.NewNop(),
		Clock:       clock.Fixed(now),
		Catalog:     plandomain.NewCatalog("test", map[string]float64{"free": 0, "bronze": 39, "prata": 69, "ouro": 119}),
		Repo:        grantrepo.Provide(),
		ChurchRepo:  churches,
		HistoryRepo: historyrepo.Provide(node),
		Contacts:    contact.NewResolver(contact.Params{DB: db, Log: zap.NewNop(), ChurchRepo: churches}),
		Notifier:    notifier,
	})
	return &fixture{svc: svc, db: db, notifier: notifier, church: church, adminID: adminID}
}

func (f *fixture) grant(t *testing.T, email, plan string, expiresAt *time.Time) grantdomain.GrantedFreeAccount {
	t.Helper()
	g := grantdomain.GrantedFreeAccount{ID: uuid.New(), Email: email, Plan: plan, ExpiresAt: expiresAt, GrantedBy: &f.adminID, CreatedAt: now.Add(-time.Hour)}
	require.NoError(t, f.db.Create(&g).Error)
	return g
}

func TestCheckGrantOutcomes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	past := now.Add(-time.Hour)
	future := now.AddDate(0, 1, 0)
	f.grant(t, "pastor@example.com", "ouro", &future)
	f.grant(t, "old@example.com", "prata", &past)

	res, err := f.svc.CheckGrant(ctx, "  Pastor@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, grantdomain.StatusAvailable, res.Status)
	assert.Equal(t, "ouro", res.Grant.Plan)

	res, err = f.svc.CheckGrant(ctx, "old@example.com")
	require.NoError(t, err)
	assert.Equal(t, grantdomain.StatusExpired, res.Status)

	res, err = f.svc.CheckGrant(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, grantdomain.StatusNone, res.Status)
	assert.Nil(t, res.Grant)

	_, err = f.svc.CheckGrant(ctx, "   ")
	require.ErrorIs(t, err, grantdomain.ErrInvalidEmail)
}

func TestGrantStoredWithMixedCaseEmail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	future := now.AddDate(0, 1, 0)
	stored := f.grant(t, " Pastor@Example.com", "ouro", &future)

	res, err := f.svc.CheckGrant(ctx, "pastor@example.com")
	require.NoError(t, err)
	require.Equal(t, grantdomain.StatusAvailable, res.Status)
	assert.Equal(t, stored.ID, res.Grant.ID)

	act, err := f.svc.ActivateGrant(ctx, ActivateRequest{Email: "PASTOR@example.com", ChurchID: f.church.ID})
	require.NoError(t, err)
	assert.Equal(t, stored.ID, act.GrantID)
}

func TestExpiredGrantIsNeverActivated(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	past := now.Add(-time.Minute)
	g := f.grant(t, "old@example.com", "prata", &past)

	_, err := f.svc.ActivateGrant(ctx, ActivateRequest{Email: "old@example.com", ChurchID: f.church.ID})
	require.ErrorIs(t, err, grantdomain.ErrGrantExpired)

	var stored grantdomain.GrantedFreeAccount
	require.NoError(t, f.db.First(&stored, "id = ?", g.ID).Error)
	assert.False(t, stored.IsUsed)
	assert.Nil(t, stored.ChurchID)

	var church churchdomain.Church
	require.NoError(t, f.db.First(&church, "id = ?", f.church.ID).Error)
	assert.Equal(t, "free", church.Plan)
	assert.Empty(t, f.notifier.msgs)
}

func TestActivateGrantOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	g := f.grant(t, "pastor@example.com", "ouro", nil)

	res, err := f.svc.ActivateGrant(ctx, ActivateRequest{Email: "Pastor@example.com", ChurchID: f.church.ID, ChurchName: "Igreja Nova Vida"})
	require.NoError(t, err)
	assert.Equal(t, g.ID, res.GrantID)
	assert.Equal(t, "ouro", res.Plan)
	assert.Equal(t, 2, res.Notified)

	var stored grantdomain.GrantedFreeAccount
	require.NoError(t, f.db.First(&stored, "id = ?", g.ID).Error)
	assert.True(t, stored.IsUsed)
	require.NotNil(t, stored.ChurchID)
	assert.Equal(t, f.church.ID, *stored.ChurchID)
	require.NotNil(t, stored.UsedAt)

	var church churchdomain.Church
	require.NoError(t, f.db.First(&church, "id = ?", f.church.ID).Error)
	assert.Equal(t, "ouro", church.Plan)
	assert.Equal(t, churchdomain.StatusActive, church.Status)

	var entries []historydomain.Entry
	require.NoError(t, f.db.Find(&entries, "church_id = ?", f.church.ID).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, historydomain.ChangeGranted, entries[0].ChangeType)
	assert.Equal(t, "free", entries[0].OldPlan)
	assert.Zero(t, entries[0].MRRDelta)

	// The granter is also an admin and is notified once.
	require.Len(t, f.notifier.msgs, 2)
	to := []string{f.notifier.msgs[0].To, f.notifier.msgs[1].To}
	assert.ElementsMatch(t, []string{"Admin@Example.com", "ops@example.com"}, to)
	assert.Equal(t, "Igreja Nova Vida", f.notifier.msgs[0].ChurchName)

	_, err = f.svc.ActivateGrant(ctx, ActivateRequest{Email: "pastor@example.com", ChurchID: f.church.ID})
	require.ErrorIs(t, err, grantdomain.ErrGrantNotFound)

	err = grantrepo.Provide().MarkUsed(ctx, f.db, g.ID, f.church.ID, now)
	require.ErrorIs(t, err, grantdomain.ErrGrantNotFound)
	require.NoError(t, f.db.Find(&entries, "church_id = ?", f.church.ID).Error)
	assert.Len(t, entries, 1)
}

func TestNotificationFailureDoesNotFailActivation(t *testing.T) {
	f := setup(t)
	f.notifier.err = errors.New("queue down")
	f.grant(t, "pastor@example.com", "bronze", nil)

	res, err := f.svc.ActivateGrant(context.Background(), ActivateRequest{Email: "pastor@example.com", ChurchID: f.church.ID})
	require.NoError(t, err)
	assert.Zero(t, res.Notified)

	var church churchdomain.Church
	require.NoError(t, f.db.First(&church, "id = ?", f.church.ID).Error)
	assert.Equal(t, "bronze", church.Plan)
}

func TestActivateForMissingChurchKeepsGrant(t *testing.T) {
	f := setup(t)
	g := f.grant(t, "pastor@example.com", "ouro", nil)

	_, err := f.svc.ActivateGrant(context.Background(), ActivateRequest{Email: "pastor@example.com", ChurchID: uuid.New()})
	require.ErrorIs(t, err, churchdomain.ErrChurchNotFound)

	var stored grantdomain.GrantedFreeAccount
	require.NoError(t, f.db.First(&stored, "id = ?", g.ID).Error)
	assert.False(t, stored.IsUsed)
}
