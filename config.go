package courier

import (
	"github.com/dmitrymomot/courier/pkg/email"
	"github.com/dmitrymomot/courier/pkg/email/resend"
	"github.com/dmitrymomot/courier/pkg/email/smtp"
)

// Config aggregates the configuration of the whole email stack.
// Embed it in your app config for env parsing with caarlos0/env.
//
// Provider selection follows configuration: Resend is the primary when its
// API key is set, SMTP serves as primary otherwise and as fallback when
// both are configured. At least one provider must be usable.
type Config struct {
	Email  email.Config
	Resend resend.Config
	SMTP   smtp.Config

	// RedisURL enables the shared store: cross-process rate limiting,
	// delivery tracking, and queue persistence. Empty falls back to
	// in-process rate limiting with tracking disabled.
	RedisURL string `env:"REDIS_URL"`

	// QueueEnabled routes typed operations through the durable queue
	// instead of sending inline. Requires RedisURL.
	QueueEnabled bool `env:"EMAIL_QUEUE_ENABLED" envDefault:"false"`

	// QueueConcurrency bounds parallel job processing.
	QueueConcurrency int `env:"EMAIL_QUEUE_CONCURRENCY" envDefault:"5"`
}
