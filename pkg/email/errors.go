package email

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoProviders indicates the service was constructed without a single
	// configured provider. Construction fails fast on this.
	ErrNoProviders = errors.New("email: no providers configured")

	// ErrRateLimited indicates the recipient exceeded the send window.
	// Callers should back off; retrying within the same window will fail again.
	ErrRateLimited = errors.New("email: rate limit exceeded")

	// ErrAllProvidersFailed indicates every configured provider failed on
	// every retry pass. The last underlying cause is attached.
	ErrAllProvidersFailed = errors.New("email: all providers failed")

	// ErrSendFailed wraps unexpected failures on the send path.
	ErrSendFailed = errors.New("email: failed to send")
)

// FieldError describes a single violated constraint.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every violated field of a send payload.
// Validation runs before any provider or rate-limit check; inputs failing
// it are never retried.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "email: validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "email: validation failed: " + strings.Join(parts, "; ")
}

// ProviderError is a normalized single-provider transport failure.
// The service absorbs these during the fallback/retry protocol; they only
// surface to callers wrapped in ErrAllProvidersFailed.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("email: provider %s: %s: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("email: provider %s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }
