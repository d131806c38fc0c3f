package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/courier/pkg/email/templates"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/ratelimit"
	"github.com/dmitrymomot/courier/pkg/tracking"
)

// Service orchestrates email dispatch: validation, rate limiting, preview
// mode, the provider fallback/retry protocol, and delivery tracking.
type Service struct {
	cfg       Config
	providers []Provider
	templates *templates.Templates
	limiter   ratelimit.Limiter
	tracker   tracking.Tracker
	log       *slog.Logger
	now       func() time.Time

	storeCheck func(ctx context.Context) error
}

// NewService creates a Service. It fails fast with ErrNoProviders when no
// provider was supplied; an absent fallback is fine, an empty provider list
// is a deployment mistake.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	cfg = cfg.withDefaults()

	s := &Service{
		cfg: cfg,
		templates: templates.New(templates.Branding{
			ProductName: cfg.FromName,
			SupportMail: cfg.FromAddress,
		}),
		tracker: tracking.Noop{},
		log:     logger.NewNope(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if len(s.providers) == 0 {
		return nil, ErrNoProviders
	}

	if s.limiter == nil {
		s.limiter = ratelimit.NewMemory(cfg.RateLimit)
	}

	return s, nil
}

// SendContactNotification delivers a contact-form submission to the admin
// address with reply-to set to the submitter.
func (s *Service) SendContactNotification(ctx context.Context, data ContactData) (*DeliveryResult, error) {
	if data.AdminEmail == "" {
		data.AdminEmail = s.cfg.AdminEmail
	}
	if err := data.validate(); err != nil {
		return nil, err
	}

	rendered := s.templates.Contact(templates.ContactParams{
		Name:       data.Name,
		Email:      data.Email,
		Subject:    data.Subject,
		Message:    data.Message,
		Phone:      data.Phone,
		ReceivedAt: s.now(),
	})

	return s.SendEmail(ctx, Message{
		To:      data.AdminEmail,
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
		ReplyTo: data.Email,
	})
}

// SendWelcomeEmail delivers the account welcome email.
func (s *Service) SendWelcomeEmail(ctx context.Context, data WelcomeData) (*DeliveryResult, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}

	rendered := s.templates.Welcome(templates.WelcomeParams{
		UserName:      data.UserName,
		ActivationURL: data.ActivationURL,
	})

	return s.SendEmail(ctx, Message{
		To:      data.To,
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
	})
}

// SendPasswordReset delivers the password reset email. The template shows
// the remaining validity in whole minutes computed against the service
// clock.
func (s *Service) SendPasswordReset(ctx context.Context, data PasswordResetData) (*DeliveryResult, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}

	rendered := s.templates.PasswordReset(templates.PasswordResetParams{
		UserName:  data.UserName,
		ResetURL:  data.ResetURL,
		ExpiresAt: data.ExpiresAt,
		Now:       s.now(),
	})

	return s.SendEmail(ctx, Message{
		To:      data.To,
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
	})
}

// SendNewsletter delivers a newsletter issue.
func (s *Service) SendNewsletter(ctx context.Context, data NewsletterData) (*DeliveryResult, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}

	rendered := s.templates.Newsletter(templates.NewsletterParams{
		Subject:        data.Subject,
		Content:        data.Content,
		UnsubscribeURL: data.UnsubscribeURL,
		PreferencesURL: data.PreferencesURL,
	})

	return s.SendEmail(ctx, Message{
		To:      data.To,
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
	})
}

// SendEmail is the generic send path every typed operation funnels through:
// validate, rate limit, preview short-circuit, provider fallback/retry,
// tracking.
func (s *Service) SendEmail(ctx context.Context, msg Message) (*DeliveryResult, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}

	if msg.From == "" {
		msg.From = s.fromHeader()
	}
	if msg.Text == "" {
		msg.Text = templates.StripHTML(msg.HTML)
	}

	if err := s.limiter.Allow(ctx, rateLimitKey(msg.To)); err != nil {
		if errors.Is(err, ratelimit.ErrExceeded) {
			return nil, errors.Join(ErrRateLimited, err)
		}
		// Limiter store outage: fail open. Blocking all email on a store
		// hiccup is worse than a burst over the limit.
		s.log.WarnContext(ctx, "rate limiter unavailable, allowing send",
			slog.String("recipient", msg.To),
			slog.Any("error", err),
		)
	}

	if s.cfg.EnablePreview {
		return s.previewResult(ctx, &msg), nil
	}

	// On exhaustion the result is returned alongside the error so callers
	// that report outcomes (the queue worker, audit logs) get the
	// structured failure, not just the error chain.
	result, err := s.sendWithRetry(ctx, &msg)
	if err != nil {
		return result, err
	}

	if s.cfg.EnableTracking && result.MessageID != "" {
		s.tracker.Record(ctx, tracking.Record{
			MessageID: result.MessageID,
			Recipient: msg.To,
			Subject:   msg.Subject,
			SentAt:    result.Timestamp,
			Provider:  result.Provider,
			Status:    tracking.StatusSent,
		})
	}

	return result, nil
}

// sendWithRetry runs the provider fallback/retry protocol: try every
// provider in order; when the whole pass fails and the retry budget is not
// exhausted, pause for the configured delay and run another full pass.
func (s *Service) sendWithRetry(ctx context.Context, msg *Message) (*DeliveryResult, error) {
	var lastErr error

	for pass := 0; pass < s.cfg.RetryAttempts; pass++ {
		if pass > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Join(ErrSendFailed, ctx.Err())
			case <-time.After(s.cfg.RetryDelay):
			}
		}

		for _, provider := range s.providers {
			start := s.now()
			messageID, err := provider.Send(ctx, msg)
			if err == nil {
				return &DeliveryResult{
					Success:   true,
					MessageID: messageID,
					Provider:  provider.Name(),
					Timestamp: s.now(),
					Meta: Meta{
						Recipient:      msg.To,
						Subject:        msg.Subject,
						RetryCount:     pass,
						ProcessingTime: s.now().Sub(start),
					},
				}, nil
			}

			lastErr = err
			s.log.WarnContext(ctx, "provider send failed",
				slog.String("provider", provider.Name()),
				slog.String("recipient", msg.To),
				slog.Int("pass", pass),
				slog.Any("error", err),
			)
		}
	}

	err := fmt.Errorf("%w after %d attempts: %w", ErrAllProvidersFailed, s.cfg.RetryAttempts, lastErr)
	return &DeliveryResult{
		Success:   false,
		Timestamp: s.now(),
		Err: &ResultError{
			Code:    "all_providers_failed",
			Message: lastErr.Error(),
		},
		Meta: Meta{
			Recipient:  msg.To,
			Subject:    msg.Subject,
			RetryCount: s.cfg.RetryAttempts - 1,
		},
	}, err
}

// previewResult synthesizes a successful delivery without touching any
// provider. Used outside production to inspect rendered emails safely.
func (s *Service) previewResult(ctx context.Context, msg *Message) *DeliveryResult {
	now := s.now()
	messageID := fmt.Sprintf("preview_%d", now.UnixMilli())

	s.log.InfoContext(ctx, "email preview",
		slog.String("message_id", messageID),
		slog.String("recipient", msg.To),
		slog.String("subject", msg.Subject),
		slog.Int("html_bytes", len(msg.HTML)),
	)

	return &DeliveryResult{
		Success:   true,
		MessageID: messageID,
		Provider:  "preview",
		Timestamp: now,
		Meta: Meta{
			Recipient:      msg.To,
			Subject:        msg.Subject,
			RetryCount:     0,
			ProcessingTime: 0,
		},
	}
}

// Status looks up the delivery record for a message id.
func (s *Service) Status(ctx context.Context, messageID string) (tracking.Record, error) {
	return s.tracker.Lookup(ctx, messageID)
}

// HealthCheck probes every provider and the shared store. Healthy when all
// providers pass, degraded when some do, unhealthy when none do.
func (s *Service) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Providers: make(map[string]bool, len(s.providers)),
	}

	healthy := 0
	for _, p := range s.providers {
		ok := p.Healthy(ctx) == nil
		status.Providers[p.Name()] = ok
		if ok {
			healthy++
		}
	}

	switch {
	case healthy == 0:
		status.Status = StatusUnhealthy
	case healthy < len(s.providers):
		status.Status = StatusDegraded
	default:
		status.Status = StatusHealthy
	}

	if s.storeCheck != nil {
		status.StoreReachable = s.storeCheck(ctx) == nil
	}

	return status
}

// Shutdown releases provider resources. Providers hold no persistent
// connections today, so this is a hook for future transports; it never
// interrupts an in-flight send.
func (s *Service) Shutdown(context.Context) error {
	return nil
}

func (s *Service) fromHeader() string {
	if s.cfg.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromAddress)
	}
	return s.cfg.FromAddress
}

func rateLimitKey(recipient string) string {
	return strings.ToLower(strings.TrimSpace(recipient))
}
