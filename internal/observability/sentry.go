package observability

import (
	"context"
	"time"

	"github.com/ecclesiahq/ecclesia/internal/config"
	"github.com/getsentry/sentry-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// RegisterSentry initialises error reporting when SENTRY_DSN is set.
func RegisterSentry(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) error {
	if cfg.Telemetry.SentryDSN == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Telemetry.SentryDSN,
		Environment: cfg.AppEnv,
		Release:     cfg.AppVersion,
	}); err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sentry.Flush(2 * time.Second)
			return nil
		},
	})
	log.Info("sentry enabled")
	return nil
}

// CaptureError reports err to Sentry. It is a no-op when Sentry is not
// initialised.
func CaptureError(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}
