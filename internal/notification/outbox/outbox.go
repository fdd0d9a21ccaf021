package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	notificationdomain "github.com/ecclesiahq/ecclesia/internal/notification/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Outbox queues notifications in Redis so business writes never wait on
// email delivery. Ready messages live in a list, scheduled retries in a
// sorted set scored by due time, and exhausted messages in a dead list.
type Outbox struct {
	rdb   *redis.Client
	ready string
	retry string
	dead  string
	log   *zap.Logger
}

func New(rdb *redis.Client, key string, log *zap.Logger) *Outbox {
	if key == "" {
		key = "ecclesia:notifications"
	}
	return &Outbox{
		rdb:   rdb,
		ready: key,
		retry: key + ":retry",
		dead:  key + ":dead",
		log:   log.Named("notification.outbox"),
	}
}

// Notify enqueues msg for the worker.
func (o *Outbox) Notify(ctx context.Context, msg notificationdomain.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := o.rdb.LPush(ctx, o.ready, payload).Err(); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	o.log.Debug("notification queued", zap.String("id", msg.ID), zap.String("type", string(msg.Type)))
	return nil
}

// pop takes the oldest ready message. It blocks up to wait when wait > 0
// and returns nil when nothing is ready.
func (o *Outbox) pop(ctx context.Context, wait time.Duration) (*notificationdomain.Message, error) {
	var raw string
	if wait > 0 {
		res, err := o.rdb.BRPop(ctx, wait, o.ready).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		raw = res[1]
	} else {
		res, err := o.rdb.RPop(ctx, o.ready).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		raw = res
	}

	var msg notificationdomain.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		o.log.Error("dropping malformed notification", zap.Error(err))
		_ = o.rdb.LPush(ctx, o.dead, raw).Err()
		return nil, nil
	}
	return &msg, nil
}

func (o *Outbox) schedule(ctx context.Context, msg notificationdomain.Message, at time.Time) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return o.rdb.ZAdd(ctx, o.retry, redis.Z{Score: float64(at.UnixMilli()), Member: payload}).Err()
}

func (o *Outbox) bury(ctx context.Context, msg notificationdomain.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return o.rdb.LPush(ctx, o.dead, payload).Err()
}

// promote moves retries that are due by now back onto the ready list.
func (o *Outbox) promote(ctx context.Context, now time.Time) (int, error) {
	due, err := o.rdb.ZRangeByScore(ctx, o.retry, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, member := range due {
		removed, err := o.rdb.ZRem(ctx, o.retry, member).Result()
		if err != nil {
			return moved, err
		}
		// Another worker already claimed it.
		if removed == 0 {
			continue
		}
		if err := o.rdb.LPush(ctx, o.ready, member).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

type Stats struct {
	Ready   int64
	Retries int64
	Dead    int64
}

func (o *Outbox) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	var err error
	if s.Ready, err = o.rdb.LLen(ctx, o.ready).Result(); err != nil {
		return s, err
	}
	if s.Retries, err = o.rdb.ZCard(ctx, o.retry).Result(); err != nil {
		return s, err
	}
	if s.Dead, err = o.rdb.LLen(ctx, o.dead).Result(); err != nil {
		return s, err
	}
	return s, nil
}
