package migration

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ecclesiahq/ecclesia/internal/config"
	plandomain "github.com/ecclesiahq/ecclesia/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)

// SchemaGateModule refuses to start when the database schema is behind.
var SchemaGateModule = fx.Module("migrations.gate",
	fx.Invoke(EnforceSchemaGate),
)

func Run(cfg config.Config, conn *gorm.DB, catalog *plandomain.Catalog, log *zap.Logger) error {
	if cfg.Database.Driver != "postgres" {
		log.Info("applying model schema", zap.String("driver", cfg.Database.Driver))
		return AutoMigrate(conn)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	if err := RunMigrations(db, catalog); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}

func EnforceSchemaGate(lc fx.Lifecycle, cfg config.Config, conn *gorm.DB) {
	if cfg.Database.Driver != "postgres" {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return CheckSchema(ctx, sqlDB)
		},
	})
}
