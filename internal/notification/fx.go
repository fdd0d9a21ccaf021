package notification

import (
	"context"

	"github.com/ecclesiahq/ecclesia/internal/config"
	notificationdomain "github.com/ecclesiahq/ecclesia/internal/notification/domain"
	"github.com/ecclesiahq/ecclesia/internal/notification/outbox"
	"github.com/ecclesiahq/ecclesia/internal/notification/sender"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(sender.Provide),
	fx.Provide(NewNotifier),
)

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Redis  *redis.Client `optional:"true"`
	Sender *sender.HTTPSender
}

type Result struct {
	fx.Out

	Notifier notificationdomain.Notifier
	Outbox   *outbox.Outbox
}

// NewNotifier queues through Redis when it is available and sends inline
// otherwise.
func NewNotifier(p Params) Result {
	if p.Redis == nil {
		p.Log.Info("notifications sent inline")
		return Result{Notifier: p.Sender}
	}
	ob := outbox.New(p.Redis, p.Config.Notify.QueueKey, p.Log)
	return Result{Notifier: ob, Outbox: ob}
}

// WorkerModule runs the outbox drain loop in processes that own delivery.
var WorkerModule = fx.Module("notification.worker",
	fx.Invoke(StartWorker),
)

func StartWorker(lc fx.Lifecycle, cfg config.Config, ob *outbox.Outbox, s *sender.HTTPSender, log *zap.Logger) {
	if ob == nil {
		return
	}
	w := outbox.NewWorker(ob, s, outbox.NewRetryPolicy(outbox.RetryConfig{
		MaxAttempts: cfg.Notify.MaxAttempts,
	}), log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				w.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
