package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker keeps replicas from running the same job concurrently. Acquire
// returns a token that Release must present; a lock that expired and was
// taken by another holder is left alone.
type Locker interface {
	Acquire(ctx context.Context, job string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, job, token string) error
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string, time.Duration) (string, bool, error) {
	return "", true, nil
}
func (noopLocker) Release(context.Context, string, string) error { return nil }

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisLocker(rdb *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, job string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.prefix+job, token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (l *RedisLocker) Release(ctx context.Context, job, token string) error {
	return releaseScript.Run(ctx, l.rdb, []string{l.prefix + job}, token).Err()
}
