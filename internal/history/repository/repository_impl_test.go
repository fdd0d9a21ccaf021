package repository

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	historydomain "github.com/ecclesiahq/ecclesia/internal/history/domain"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAppendAssignsIDsInOrder(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&historydomain.Entry{}))

	node, _ := snowflake.NewNode(1)
	repo := Provide(node)
	ctx := context.Background()
	churchID := uuid.New()

	first := &historydomain.Entry{ChurchID: churchID, OldPlan: "free", NewPlan: "ouro", ChangeType: historydomain.ChangeUpgrade, MRRDelta: 119}
	second := &historydomain.Entry{ChurchID: churchID, OldPlan: "ouro", NewPlan: "prata", ChangeType: historydomain.ChangeDowngrade, MRRDelta: -50}
	require.NoError(t, repo.Append(ctx, db, first))
	require.NoError(t, repo.Append(ctx, db, second))
	require.NotZero(t, first.ID)

	require.Error(t, repo.Append(ctx, db, first))

	items, err := repo.ListByChurch(ctx, db, churchID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "ouro", items[0].NewPlan)
	require.Equal(t, historydomain.ChangeDowngrade, items[1].ChangeType)
	require.Equal(t, -50.0, items[1].MRRDelta)
}
