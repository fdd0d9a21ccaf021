package clock

import (
	"context"
	"time"
)

type SystemClock struct{}

func (SystemClock) Now(context.Context) time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant. Sweeps and the pro-rata calculator
// take it in tests so day arithmetic is deterministic.
type Fixed time.Time

func (f Fixed) Now(context.Context) time.Time {
	return time.Time(f).UTC()
}
