package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ecclesiahq/ecclesia/internal/church"
	"github.com/ecclesiahq/ecclesia/internal/clock"
	"github.com/ecclesiahq/ecclesia/internal/config"
	"github.com/ecclesiahq/ecclesia/internal/contact"
	"github.com/ecclesiahq/ecclesia/internal/gateway"
	"github.com/ecclesiahq/ecclesia/internal/grant"
	"github.com/ecclesiahq/ecclesia/internal/history"
	"github.com/ecclesiahq/ecclesia/internal/migration"
	"github.com/ecclesiahq/ecclesia/internal/notification"
	"github.com/ecclesiahq/ecclesia/internal/observability"
	"github.com/ecclesiahq/ecclesia/internal/payment"
	"github.com/ecclesiahq/ecclesia/internal/plan"
	"github.com/ecclesiahq/ecclesia/internal/prorata"
	"github.com/ecclesiahq/ecclesia/internal/redis"
	"github.com/ecclesiahq/ecclesia/internal/scheduler"
	"github.com/ecclesiahq/ecclesia/internal/server"
	"github.com/ecclesiahq/ecclesia/internal/sweep"
	"github.com/ecclesiahq/ecclesia/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "ecclesia",
		Short:   "Ecclesia billing service",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newMigrateCmd(), newServeCmd(), newSchedulerCmd(), newSweepCmd(), newAllCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and sync the plan catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the billing API",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the daily billing sweeps on their cron schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			runScheduler()
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "sweep [overdue|reminders]",
		Short:     "Run one billing sweep now and print its summary",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{scheduler.JobOverdue, scheduler.JobReminders},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), args[0])
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, then start the API and the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			runMonolith()
			return nil
		},
	}
}

// coreModules are shared by every command that touches billing state.
func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		redis.Module,
		plan.Module,
		church.Module,
		payment.Module,
		history.Module,
		contact.Module,
		notification.Module,
	)
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		plan.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runServe() {
	app := fx.New(
		coreModules(),
		migration.SchemaGateModule,
		gateway.Module,
		prorata.Module,
		grant.Module,
		sweep.Module,
		notification.WorkerModule,
		server.Module,
	)
	app.Run()
}

func runScheduler() {
	app := fx.New(
		coreModules(),
		migration.SchemaGateModule,
		sweep.Module,
		notification.WorkerModule,
		scheduler.Module,
		fx.Invoke(scheduler.Register),
	)
	app.Run()
}

func runMonolith() {
	app := fx.New(
		coreModules(),
		migration.SchemaGateModule,
		gateway.Module,
		prorata.Module,
		grant.Module,
		sweep.Module,
		notification.WorkerModule,
		server.Module,
		scheduler.Module,
		fx.Invoke(scheduler.Register),
	)
	app.Run()
}

func runSweep(ctx context.Context, name string) error {
	var svc *sweep.Service
	app := fx.New(
		coreModules(),
		migration.SchemaGateModule,
		sweep.Module,
		fx.Populate(&svc),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() { _ = app.Stop(context.Background()) }()

	var (
		summary any
		err     error
	)
	switch name {
	case scheduler.JobOverdue:
		summary, err = svc.RunOverdue(ctx)
	case scheduler.JobReminders:
		summary, err = svc.RunReminders(ctx)
	default:
		return fmt.Errorf("%w: %s", scheduler.ErrUnknownJob, name)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
