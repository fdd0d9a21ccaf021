package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	churchdomain "github.com/ecclesiahq/ecclesia/internal/church/domain"
	"github.com/ecclesiahq/ecclesia/internal/contact"
	grantdomain "github.com/ecclesiahq/ecclesia/internal/grant/domain"
	historydomain "github.com/ecclesiahq/ecclesia/internal/history/domain"
	paymentdomain "github.com/ecclesiahq/ecclesia/internal/payment/domain"
	plandomain "github.com/ecclesiahq/ecclesia/internal/plan/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded migrations under an advisory lock,
// mirrors the plan catalog and records the schema version.
func RunMigrations(db *sql.DB, catalog *plandomain.Catalog) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	unlock, err := acquireAdvisoryLock(ctx, db)
	if err != nil {
		return err
	}
	defer func() {
		_ = unlock(context.Background())
	}()

	latestVersion, err := LatestMigrationVersion()
	if err != nil {
		return err
	}

	checksum, err := MigrationsChecksum()
	if err != nil {
		return err
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if _, err := ensureNotDirty(migrator); err != nil {
		return err
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}

	currentVersion, err := ensureNotDirty(migrator)
	if err != nil {
		return err
	}
	if currentVersion != latestVersion {
		return fmt.Errorf("schema version mismatch after migrate: got %d want %d", currentVersion, latestVersion)
	}

	if err := syncPlanCatalog(ctx, db, catalog); err != nil {
		return err
	}
	return recordSchemaState(ctx, db, fmt.Sprintf("%d", latestVersion), checksum)
}

// AutoMigrate builds the schema from the models for drivers the SQL
// migrations do not target (sqlite in development, mysql).
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&churchdomain.Church{},
		&churchdomain.Member{},
		&paymentdomain.Payment{},
		&grantdomain.GrantedFreeAccount{},
		&historydomain.Entry{},
		&contact.Profile{},
		&contact.AuthUser{},
		&contact.UserRole{},
	)
}

func ensureNotDirty(migrator *migrate.Migrate) (uint, error) {
	if migrator == nil {
		return 0, errors.New("migrator is required")
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("database migrations are dirty at version %d", version)
	}
	return version, nil
}
