package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	plandomain "github.com/ecclesiahq/ecclesia/internal/plan/domain"
)

// syncPlanCatalog mirrors the configured price list into plan_catalog so
// reporting queries can join on it.
func syncPlanCatalog(ctx context.Context, db *sql.DB, catalog *plandomain.Catalog) error {
	if catalog == nil {
		return nil
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin plan catalog sync: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, p := range catalog.Plans() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO plan_catalog (id, display_name, price, catalog_version, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET display_name = EXCLUDED.display_name,
			    price = EXCLUDED.price,
			    catalog_version = EXCLUDED.catalog_version,
			    updated_at = EXCLUDED.updated_at
		`, p.ID, p.DisplayName, p.Price, catalog.Version(), now); err != nil {
			return fmt.Errorf("sync plan %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit plan catalog sync: %w", err)
	}
	return nil
}
