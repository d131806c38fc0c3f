package email

import (
	"time"

	"github.com/dmitrymomot/courier/pkg/ratelimit"
)

// Config holds orchestrator configuration.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	FromAddress string `env:"EMAIL_FROM"`
	FromName    string `env:"EMAIL_FROM_NAME"`
	AdminEmail  string `env:"ADMIN_EMAIL"`

	// RetryAttempts bounds the number of full provider passes.
	RetryAttempts int `env:"EMAIL_RETRY_ATTEMPTS" envDefault:"3"`
	// RetryDelay is the fixed pause between full provider passes.
	RetryDelay time.Duration `env:"EMAIL_RETRY_DELAY" envDefault:"1s"`

	RateLimit ratelimit.Config

	// EnableTracking records delivery outcomes in the shared store.
	EnableTracking bool `env:"EMAIL_TRACKING_ENABLED" envDefault:"true"`
	// EnablePreview replaces real delivery with a synthesized success
	// result. Conventionally on outside production.
	EnablePreview bool `env:"EMAIL_PREVIEW_ENABLED" envDefault:"false"`
}

func (c Config) withDefaults() Config {
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	return c
}
