package clock

import (
	"context"
	"time"

	"go.uber.org/fx"
)

type Clock interface {
	Now(ctx context.Context) time.Time
}

var Module = fx.Module("clock",
	fx.Provide(func() Clock { return SystemClock{} }),
)

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
