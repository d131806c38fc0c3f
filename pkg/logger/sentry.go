package logger

import (
	"context"
	"log/slog"
	"os"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// SentryConfig holds Sentry integration configuration.
type SentryConfig struct {
	DSN         string `env:"SENTRY_DSN"`
	Environment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
}

// NewWithSentry creates a logger that writes to stdout and forwards warnings
// and errors to Sentry. If the DSN is empty or Sentry initialization fails,
// it degrades to a stdout-only logger.
func NewWithSentry(cfg Config, sentryCfg SentryConfig) *slog.Logger {
	stdout := newHandler(os.Stdout, cfg)

	if sentryCfg.DSN == "" {
		return slog.New(stdout)
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         sentryCfg.DSN,
		Environment: sentryCfg.Environment,
		EnableLogs:  true,
	}); err != nil {
		slog.New(stdout).Error("failed to initialize Sentry", slog.String("error", err.Error()))
		return slog.New(stdout)
	}

	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelError},
	}.NewSentryHandler(context.Background())

	return slog.New(newMultiHandler(stdout, sentryHandler))
}
