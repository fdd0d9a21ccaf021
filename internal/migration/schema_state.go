package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrSchemaOutdated = errors.New("schema_outdated")

func recordSchemaState(ctx context.Context, db *sql.DB, schemaVersion string, checksum string) error {
	version := strings.TrimSpace(schemaVersion)
	if version == "" {
		return errors.New("schema version is required")
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO schema_state (id, schema_version, checksum, activated_at)
		VALUES (TRUE, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET schema_version = EXCLUDED.schema_version,
		    checksum = EXCLUDED.checksum,
		    activated_at = EXCLUDED.activated_at
	`, version, nullIfEmpty(checksum), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record schema state: %w", err)
	}
	return nil
}

// CheckSchema fails when the database was migrated by an older build.
func CheckSchema(ctx context.Context, db *sql.DB) error {
	latest, err := LatestMigrationVersion()
	if err != nil {
		return err
	}
	var version string
	err = db.QueryRowContext(ctx, "SELECT schema_version FROM schema_state WHERE id = TRUE").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: no schema recorded, run migrate", ErrSchemaOutdated)
	}
	if err != nil {
		return fmt.Errorf("read schema state: %w", err)
	}
	if version != fmt.Sprintf("%d", latest) {
		return fmt.Errorf("%w: have %s want %d", ErrSchemaOutdated, version, latest)
	}
	return nil
}

func nullIfEmpty(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return trimmed
}
