package courier

import "errors"

var (
	// ErrNotInitialized is returned by Default before Initialize has
	// succeeded, and again after Shutdown deregisters the shared instance.
	ErrNotInitialized = errors.New("courier: not initialized")

	// ErrNoProvidersConfigured is returned by Initialize when neither the
	// Resend nor the SMTP configuration is usable.
	ErrNoProvidersConfigured = errors.New("courier: no email providers configured")

	// ErrQueueDisabled is returned by operations that need the durable
	// queue when it was not enabled in configuration.
	ErrQueueDisabled = errors.New("courier: queue is not enabled")

	// ErrQueueRequiresRedis is returned by Initialize when the queue is
	// enabled without a Redis URL to back it.
	ErrQueueRequiresRedis = errors.New("courier: queue requires a redis connection")
)
