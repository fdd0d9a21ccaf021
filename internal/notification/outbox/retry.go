package outbox

import (
	"math"
	"time"
)

type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialDelay:      30 * time.Second,
		MaxDelay:          30 * time.Minute,
		BackoffMultiplier: 2.0,
	}
}

// RetryPolicy is exponential backoff capped at MaxDelay.
type RetryPolicy struct {
	config RetryConfig
}

func NewRetryPolicy(config RetryConfig) *RetryPolicy {
	def := DefaultRetryConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = def.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	if config.BackoffMultiplier <= 1.0 {
		config.BackoffMultiplier = def.BackoffMultiplier
	}
	return &RetryPolicy{config: config}
}

func (p *RetryPolicy) ShouldRetry(attempts int) bool {
	return attempts < p.config.MaxAttempts
}

// NextDelay is InitialDelay * multiplier^(attempts-1).
func (p *RetryPolicy) NextDelay(attempts int) time.Duration {
	if attempts <= 1 {
		return p.config.InitialDelay
	}
	delay := float64(p.config.InitialDelay) * math.Pow(p.config.BackoffMultiplier, float64(attempts-1))
	if delay > float64(p.config.MaxDelay) {
		return p.config.MaxDelay
	}
	return time.Duration(delay)
}
