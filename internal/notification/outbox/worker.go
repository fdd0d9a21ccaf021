package outbox

import (
	"context"
	"errors"
	"time"

	notificationdomain "github.com/ecclesiahq/ecclesia/internal/notification/domain"
	"go.uber.org/zap"
)

type Sender interface {
	Send(ctx context.Context, msg notificationdomain.Message) error
}

// Worker drains the outbox through a Sender.
type Worker struct {
	outbox *Outbox
	sender Sender
	policy *RetryPolicy
	now    func() time.Time
	log    *zap.Logger
}

func NewWorker(outbox *Outbox, sender Sender, policy *RetryPolicy, log *zap.Logger) *Worker {
	return &Worker{
		outbox: outbox,
		sender: sender,
		policy: policy,
		now:    time.Now,
		log:    log.Named("notification.worker"),
	}
}

// Run processes messages until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("notification worker started")
	for {
		if ctx.Err() != nil {
			w.log.Info("notification worker stopped")
			return
		}
		if _, err := w.outbox.promote(ctx, w.now()); err != nil && ctx.Err() == nil {
			w.log.Warn("promote retries failed", zap.Error(err))
		}
		msg, err := w.outbox.pop(ctx, time.Second)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Warn("outbox pop failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if msg != nil {
			w.deliver(ctx, *msg)
		}
	}
}

// Drain promotes due retries and delivers every ready message once. It
// returns the number of messages attempted.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	if _, err := w.outbox.promote(ctx, w.now()); err != nil {
		return 0, err
	}
	n := 0
	for {
		msg, err := w.outbox.pop(ctx, 0)
		if err != nil {
			return n, err
		}
		if msg == nil {
			return n, nil
		}
		w.deliver(ctx, *msg)
		n++
	}
}

func (w *Worker) deliver(ctx context.Context, msg notificationdomain.Message) {
	msg.Attempts++
	err := w.sender.Send(ctx, msg)
	if err == nil {
		return
	}

	fields := []zap.Field{
		zap.String("id", msg.ID),
		zap.String("type", string(msg.Type)),
		zap.Int("attempts", msg.Attempts),
		zap.Error(err),
	}
	if w.policy.ShouldRetry(msg.Attempts) && !errors.Is(err, notificationdomain.ErrNotConfigured) {
		next := w.now().Add(w.policy.NextDelay(msg.Attempts))
		if serr := w.outbox.schedule(ctx, msg, next); serr != nil {
			w.log.Error("schedule retry failed", append(fields, zap.NamedError("schedule_error", serr))...)
			return
		}
		w.log.Warn("notification delivery failed, retry scheduled", append(fields, zap.Time("next_attempt", next))...)
		return
	}

	if berr := w.outbox.bury(ctx, msg); berr != nil {
		w.log.Error("dead-letter failed", append(fields, zap.NamedError("bury_error", berr))...)
		return
	}
	w.log.Error("notification delivery abandoned", fields...)
}
