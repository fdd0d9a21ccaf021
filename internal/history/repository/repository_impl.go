package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	historydomain "github.com/ecclesiahq/ecclesia/internal/history/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	genID *snowflake.Node
}

func Provide(genID *snowflake.Node) historydomain.Repository {
	return &repository{genID: genID}
}

func (r *repository) Append(ctx context.Context, db *gorm.DB, entry *historydomain.Entry) error {
	if entry == nil {
		return errors.New("history entry is required")
	}
	if entry.ID != 0 {
		return errors.New("history entries are immutable")
	}
	entry.ID = r.genID.Generate()
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByChurch(ctx context.Context, db *gorm.DB, churchID uuid.UUID) ([]historydomain.Entry, error) {
	var items []historydomain.Entry
	err := db.WithContext(ctx).
		Where("church_id = ?", churchID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}
