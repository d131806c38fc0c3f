package email

import (
	"context"
	"time"
)

// Message is a normalized email ready for provider dispatch.
// To, Subject, and HTML must pass validation before any provider call.
type Message struct {
	To          string       // Recipient address
	Subject     string       // 1-200 characters
	HTML        string       // HTML body, required
	Text        string       // Plain text alternative, optional
	From        string       // RFC 5322 sender, filled by the service when empty
	ReplyTo     string       // Reply-to address, optional
	Attachments []Attachment // Ordered attachments, optional
}

// Attachment represents an email attachment.
// Content is base64-encoded, matching the payload shape handed to the core
// by external callers and stored in queue jobs.
type Attachment struct {
	Filename    string
	Content     string // base64
	ContentType string
}

// Provider is the transport contract. Send delivers one message and returns
// the provider-assigned message id, or a *ProviderError. Providers never
// retry; the fallback/retry protocol belongs to the Service.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg *Message) (string, error)
	// Healthy reports whether the transport is usable. Used by health checks
	// only; a failing probe does not remove the provider from rotation.
	Healthy(ctx context.Context) error
}

// DeliveryResult is the immutable outcome of a send attempt.
type DeliveryResult struct {
	Success   bool
	MessageID string
	Provider  string
	Timestamp time.Time
	Err       *ResultError
	Meta      Meta
}

// ResultError is the structured error carried inside a DeliveryResult.
type ResultError struct {
	Code    string
	Message string
}

// Meta carries send metadata for observability and tests.
type Meta struct {
	Recipient      string
	Subject        string
	RetryCount     int
	ProcessingTime time.Duration
}

// ContactData is the payload for a contact-form notification.
// The notification is delivered to AdminEmail with reply-to set to the
// submitter's address.
type ContactData struct {
	Name       string
	Email      string
	Subject    string
	Message    string
	Phone      string // optional
	AdminEmail string
}

// WelcomeData is the payload for a welcome email.
type WelcomeData struct {
	To            string
	UserName      string
	ActivationURL string // optional
}

// PasswordResetData is the payload for a password reset email.
type PasswordResetData struct {
	To        string
	UserName  string
	ResetURL  string
	ExpiresAt time.Time
}

// NewsletterData is the payload for a newsletter email.
// Content is markdown; the template renderer converts and sanitizes it.
type NewsletterData struct {
	To             string
	Subject        string
	Content        string
	UnsubscribeURL string
	PreferencesURL string // optional
}

// HealthStatus is the service health snapshot.
type HealthStatus struct {
	Status         string          // healthy, degraded, unhealthy
	Providers      map[string]bool // provider name -> usable
	StoreReachable bool
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)
