package email

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/courier/pkg/ratelimit"
	"github.com/dmitrymomot/courier/pkg/tracking"
)

// Option configures the Service.
type Option func(*Service)

// WithProviders sets the ordered provider list: primary first, optional
// fallback second. At least one provider is required.
func WithProviders(providers ...Provider) Option {
	return func(s *Service) {
		for _, p := range providers {
			if p != nil {
				s.providers = append(s.providers, p)
			}
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithLimiter overrides the rate limiter. Defaults to an in-process
// limiter built from Config.RateLimit.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *Service) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithTracker overrides the delivery tracker. Defaults to a no-op tracker.
func WithTracker(t tracking.Tracker) Option {
	return func(s *Service) {
		if t != nil {
			s.tracker = t
		}
	}
}

// WithStoreCheck sets the probe used to report shared-store reachability in
// health checks.
func WithStoreCheck(check func(ctx context.Context) error) Option {
	return func(s *Service) {
		if check != nil {
			s.storeCheck = check
		}
	}
}

// WithClock replaces the clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
