package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrExceeded is returned when an identifier has used up its window budget.
// Callers must not retry within the same window.
var ErrExceeded = errors.New("ratelimit: limit exceeded")

// Limiter checks and increments the send counter for an identifier in one
// operation. A nil error means the send may proceed.
type Limiter interface {
	Allow(ctx context.Context, identifier string) error
}

// Config holds rate limit configuration.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	Max    int           `env:"EMAIL_RATE_LIMIT_MAX" envDefault:"10"`
	Window time.Duration `env:"EMAIL_RATE_LIMIT_WINDOW" envDefault:"60s"`
}

func (c Config) withDefaults() Config {
	if c.Max <= 0 {
		c.Max = 10
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	return c
}
