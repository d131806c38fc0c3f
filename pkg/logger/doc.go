// Package logger provides the structured logging setup shared by the email
// service, queue workers, and the courier facade.
//
// It builds on log/slog: a JSON factory with configurable level, a no-op
// logger for silent defaults, and optional Sentry forwarding so that send
// and queue failures surface as Sentry events without extra wiring.
//
// Basic usage:
//
//	log := logger.New(logger.Config{Level: "info"})
//	svc, _ := email.NewService(cfg, email.WithLogger(log))
//
// With Sentry:
//
//	log := logger.NewWithSentry(logger.Config{Level: "info"}, logger.SentryConfig{
//	    DSN:         os.Getenv("SENTRY_DSN"),
//	    Environment: "production",
//	})
package logger
