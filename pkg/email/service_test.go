package email_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/email"
	"github.com/dmitrymomot/courier/pkg/ratelimit"
	"github.com/dmitrymomot/courier/pkg/tracking"
)

type mockProvider struct {
	mock.Mock
	name string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Send(ctx context.Context, msg *email.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) Healthy(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, identifier string) error {
	args := m.Called(ctx, identifier)
	return args.Error(0)
}

type memTracker struct {
	mu      sync.Mutex
	records map[string]tracking.Record
}

func newMemTracker() *memTracker {
	return &memTracker{records: make(map[string]tracking.Record)}
}

func (t *memTracker) Record(_ context.Context, rec tracking.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[rec.MessageID] = rec
}

func (t *memTracker) Lookup(_ context.Context, messageID string) (tracking.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[messageID]
	if !ok {
		return tracking.Record{}, tracking.ErrNotFound
	}
	return rec, nil
}

func validMessage() email.Message {
	return email.Message{
		To:      "user@example.com",
		Subject: "Hello",
		HTML:    "<p>Hello</p>",
	}
}

func TestNewService(t *testing.T) {
	t.Parallel()

	t.Run("fails without providers", func(t *testing.T) {
		t.Parallel()

		_, err := email.NewService(email.Config{FromAddress: "noreply@example.com"})
		require.ErrorIs(t, err, email.ErrNoProviders)
	})

	t.Run("succeeds with one provider", func(t *testing.T) {
		t.Parallel()

		p := &mockProvider{name: "resend"}
		svc, err := email.NewService(email.Config{FromAddress: "noreply@example.com"},
			email.WithProviders(p))
		require.NoError(t, err)
		require.NotNil(t, svc)
	})
}

func TestSendEmail(t *testing.T) {
	t.Parallel()

	t.Run("delivers via primary provider", func(t *testing.T) {
		t.Parallel()

		primary := &mockProvider{name: "resend"}
		primary.On("Send", mock.Anything, mock.Anything).Return("msg_123", nil).Once()

		tracker := newMemTracker()
		svc, err := email.NewService(
			email.Config{FromAddress: "noreply@example.com", EnableTracking: true},
			email.WithProviders(primary),
			email.WithTracker(tracker),
		)
		require.NoError(t, err)

		result, err := svc.SendEmail(context.Background(), validMessage())
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "msg_123", result.MessageID)
		assert.Equal(t, "resend", result.Provider)
		assert.Equal(t, 0, result.Meta.RetryCount)

		rec, err := svc.Status(context.Background(), "msg_123")
		require.NoError(t, err)
		assert.Equal(t, tracking.StatusSent, rec.Status)
		assert.Equal(t, "user@example.com", rec.Recipient)

		primary.AssertExpectations(t)
	})

	t.Run("plain-text part derived from html when absent", func(t *testing.T) {
		t.Parallel()

		var sent *email.Message
		primary := &mockProvider{name: "resend"}
		primary.On("Send", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				sent = args.Get(1).(*email.Message)
			}).
			Return("msg_text", nil).Once()

		svc, err := email.NewService(email.Config{FromAddress: "noreply@example.com"},
			email.WithProviders(primary))
		require.NoError(t, err)

		msg := validMessage()
		msg.Text = ""
		msg.HTML = "<p>Your <strong>invoice</strong> is ready.</p>"
		_, err = svc.SendEmail(context.Background(), msg)
		require.NoError(t, err)

		require.NotNil(t, sent)
		assert.Equal(t, "Your invoice is ready.", sent.Text)
	})

	t.Run("invalid message rejected before any provider call", func(t *testing.T) {
		t.Parallel()

		primary := &mockProvider{name: "resend"}
		svc, err := email.NewService(email.Config{FromAddress: "noreply@example.com"},
			email.WithProviders(primary))
		require.NoError(t, err)

		_, err = svc.SendEmail(context.Background(), email.Message{To: "not-an-email"})
		var verr *email.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.NotEmpty(t, verr.Fields)

		primary.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("rate limited send never reaches providers", func(t *testing.T) {
		t.Parallel()

		primary := &mockProvider{name: "resend"}
		limiter := &mockLimiter{}
		limiter.On("Allow", mock.Anything, "user@example.com").
			Return(ratelimit.ErrExceeded).Once()

		svc, err := email.NewService(email.Config{FromAddress: "noreply@example.com"},
			email.WithProviders(primary),
			email.WithLimiter(limiter),
		)
		require.NoError(t, err)

		_, err = svc.SendEmail(context.Background(), validMessage())
		require.ErrorIs(t, err, email.ErrRateLimited)

		primary.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		limiter.AssertExpectations(t)
	})

	t.Run("rate limit key is the lowercased recipient", func(t *testing.T) {
		t.Parallel()

		primary := &mockProvider{name: "resend"}
		primary.On("Send", mock.Anything, mock.Anything).Return("msg_1", nil).Once()

		limiter := &mockLimiter{}
		limiter.On("Allow", mock.Anything, "user@example.com").Return(nil).Once()

		svc, err := email.NewService(email.Config{FromAddress: "noreply@example.com"},
			email.WithProviders(primary),
			email.WithLimiter(limiter),
		)
		require.NoError(t, err)

		msg := validMessage()
		msg.To = "User@Example.COM"
		_, err = svc.SendEmail(context.Background(), msg)
		require.NoError(t, err)

		limiter.AssertExpectations(t)
	})

	t.Run("falls back to secondary when primary fails", func(t *testing.T) {
		t.Parallel()

		primary := &mockProvider{name: "resend"}
		primary.On("Send", mock.Anything, mock.Anything).
			Return("", errors.New("api unreachable")).Once()

		secondary := &mockProvider{name: "smtp"}
		secondary.On("Send", mock.Anything, mock.Anything).Return("msg_smtp", nil).Once()

		svc, err := email.NewService(email.Config{FromAddress: "noreply@example.com"},
			email.WithProviders(primary, secondary))
		require.NoError(t, err)

		result, err := svc.SendEmail(context.Background(), validMessage())
		require.NoError(t, err)
		assert.Equal(t, "smtp", result.Provider)
		assert.Equal(t, "msg_smtp", result.MessageID)
		assert.Equal(t, 0, result.Meta.RetryCount)

		primary.AssertExpectations(t)
		secondary.AssertExpectations(t)
	})

	t.Run("retries full pass after delay and reports pass count", func(t *testing.T) {
		t.Parallel()

		primary := &mockProvider{name: "resend"}
		primary.On("Send", mock.Anything, mock.Anything).
			Return("", errors.New("down")).Once()
		primary.On("Send", mock.Anything, mock.Anything).Return("msg_2nd", nil).Once()

		svc, err := email.NewService(
			email.Config{
				FromAddress:   "noreply@example.com",
				RetryAttempts: 2,
				RetryDelay:    10 * time.Millisecond,
			},
			email.WithProviders(primary),
		)
		require.NoError(t, err)

		start := time.Now()
		result, err := svc.SendEmail(context.Background(), validMessage())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Meta.RetryCount)
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

		primary.AssertExpectations(t)
	})

	t.Run("exhausted retries surface all-providers-failed", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("smtp handshake failed")
		primary := &mockProvider{name: "smtp"}
		primary.On("Send", mock.Anything, mock.Anything).Return("", cause).Times(3)

		svc, err := email.NewService(
			email.Config{
				FromAddress:   "noreply@example.com",
				RetryAttempts: 3,
				RetryDelay:    time.Millisecond,
			},
			email.WithProviders(primary),
		)
		require.NoError(t, err)

		result, err := svc.SendEmail(context.Background(), validMessage())
		require.ErrorIs(t, err, email.ErrAllProvidersFailed)
		require.ErrorIs(t, err, cause)

		// The failure outcome is structured too, for callers that record
		// results rather than error chains.
		require.NotNil(t, result)
		assert.False(t, result.Success)
		require.NotNil(t, result.Err)
		assert.Equal(t, "all_providers_failed", result.Err.Code)
		assert.Contains(t, result.Err.Message, "smtp handshake failed")
		assert.Equal(t, 2, result.Meta.RetryCount)

		primary.AssertExpectations(t)
	})

	t.Run("canceled context aborts between passes", func(t *testing.T) {
		t.Parallel()

		primary := &mockProvider{name: "resend"}
		primary.On("Send", mock.Anything, mock.Anything).
			Return("", errors.New("down")).Once()

		svc, err := email.NewService(
			email.Config{
				FromAddress:   "noreply@example.com",
				RetryAttempts: 3,
				RetryDelay:    time.Minute,
			},
			email.WithProviders(primary),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = svc.SendEmail(ctx, validMessage())
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestPreviewMode(t *testing.T) {
	t.Parallel()

	primary := &mockProvider{name: "resend"}
	fixed := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

	svc, err := email.NewService(
		email.Config{FromAddress: "noreply@example.com", EnablePreview: true},
		email.WithProviders(primary),
		email.WithClock(func() time.Time { return fixed }),
	)
	require.NoError(t, err)

	result, err := svc.SendEmail(context.Background(), validMessage())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, strings.HasPrefix(result.MessageID, "preview_"), "id %q", result.MessageID)
	assert.Equal(t, "preview", result.Provider)
	assert.Zero(t, result.Meta.ProcessingTime)
	assert.Equal(t, fixed, result.Timestamp)

	primary.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestTypedOperations(t *testing.T) {
	t.Parallel()

	newCaptureService := func(t *testing.T, capture *email.Message) *email.Service {
		t.Helper()

		primary := &mockProvider{name: "resend"}
		primary.On("Send", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				*capture = *args.Get(1).(*email.Message)
			}).
			Return("msg_cap", nil).Maybe()

		svc, err := email.NewService(
			email.Config{
				FromAddress: "noreply@example.com",
				FromName:    "Courier",
				AdminEmail:  "admin@example.com",
			},
			email.WithProviders(primary),
		)
		require.NoError(t, err)
		return svc
	}

	t.Run("contact notification goes to admin with submitter reply-to", func(t *testing.T) {
		t.Parallel()

		var sent email.Message
		svc := newCaptureService(t, &sent)

		_, err := svc.SendContactNotification(context.Background(), email.ContactData{
			Name:    "Jane Doe",
			Email:   "jane@example.com",
			Subject: "Pricing question",
			Message: "Do you offer volume discounts?",
		})
		require.NoError(t, err)

		assert.Equal(t, "admin@example.com", sent.To)
		assert.Equal(t, "jane@example.com", sent.ReplyTo)
		assert.Contains(t, sent.Subject, "Pricing question")
		assert.Contains(t, sent.HTML, "Jane Doe")
	})

	t.Run("contact notification validates payload", func(t *testing.T) {
		t.Parallel()

		var sent email.Message
		svc := newCaptureService(t, &sent)

		_, err := svc.SendContactNotification(context.Background(), email.ContactData{
			Name:    "J",
			Email:   "not-an-email",
			Subject: "",
			Message: "short",
		})
		var verr *email.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.GreaterOrEqual(t, len(verr.Fields), 3)
	})

	t.Run("welcome email renders recipient name", func(t *testing.T) {
		t.Parallel()

		var sent email.Message
		svc := newCaptureService(t, &sent)

		_, err := svc.SendWelcomeEmail(context.Background(), email.WelcomeData{
			To:            "new@example.com",
			UserName:      "Sam",
			ActivationURL: "https://app.example.com/activate/abc",
		})
		require.NoError(t, err)

		assert.Equal(t, "new@example.com", sent.To)
		assert.Contains(t, sent.HTML, "Sam")
		assert.Contains(t, sent.HTML, "https://app.example.com/activate/abc")
	})

	t.Run("password reset shows remaining minutes", func(t *testing.T) {
		t.Parallel()

		var sent email.Message
		primary := &mockProvider{name: "resend"}
		primary.On("Send", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				sent = *args.Get(1).(*email.Message)
			}).
			Return("msg_reset", nil).Once()

		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		svc, err := email.NewService(
			email.Config{FromAddress: "noreply@example.com"},
			email.WithProviders(primary),
			email.WithClock(func() time.Time { return now }),
		)
		require.NoError(t, err)

		_, err = svc.SendPasswordReset(context.Background(), email.PasswordResetData{
			To:        "user@example.com",
			UserName:  "Sam",
			ResetURL:  "https://app.example.com/reset/xyz",
			ExpiresAt: now.Add(30 * time.Minute),
		})
		require.NoError(t, err)

		assert.Contains(t, sent.HTML, "30 minut")
		assert.Contains(t, sent.Text, "30 minut")
	})

	t.Run("newsletter requires unsubscribe link", func(t *testing.T) {
		t.Parallel()

		var sent email.Message
		svc := newCaptureService(t, &sent)

		_, err := svc.SendNewsletter(context.Background(), email.NewsletterData{
			To:      "sub@example.com",
			Subject: "March issue",
			Content: "# Hello\n\nNews of the month.",
		})
		var verr *email.ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	t.Run("healthy when all providers pass", func(t *testing.T) {
		t.Parallel()

		primary := &mockProvider{name: "resend"}
		primary.On("Healthy", mock.Anything).Return(nil).Once()
		secondary := &mockProvider{name: "smtp"}
		secondary.On("Healthy", mock.Anything).Return(nil).Once()

		svc, err := email.NewService(email.Config{FromAddress: "noreply@example.com"},
			email.WithProviders(primary, secondary),
			email.WithStoreCheck(func(context.Context) error { return nil }),
		)
		require.NoError(t, err)

		status := svc.HealthCheck(context.Background())
		assert.Equal(t, email.StatusHealthy, status.Status)
		assert.True(t, status.Providers["resend"])
		assert.True(t, status.Providers["smtp"])
		assert.True(t, status.StoreReachable)
	})

	t.Run("degraded when a provider fails", func(t *testing.T) {
		t.Parallel()

		primary := &mockProvider{name: "resend"}
		primary.On("Healthy", mock.Anything).Return(errors.New("401")).Once()
		secondary := &mockProvider{name: "smtp"}
		secondary.On("Healthy", mock.Anything).Return(nil).Once()

		svc, err := email.NewService(email.Config{FromAddress: "noreply@example.com"},
			email.WithProviders(primary, secondary))
		require.NoError(t, err)

		status := svc.HealthCheck(context.Background())
		assert.Equal(t, email.StatusDegraded, status.Status)
		assert.False(t, status.Providers["resend"])
	})

	t.Run("unhealthy when every provider fails", func(t *testing.T) {
		t.Parallel()

		primary := &mockProvider{name: "smtp"}
		primary.On("Healthy", mock.Anything).Return(errors.New("dial timeout")).Once()

		svc, err := email.NewService(email.Config{FromAddress: "noreply@example.com"},
			email.WithProviders(primary))
		require.NoError(t, err)

		status := svc.HealthCheck(context.Background())
		assert.Equal(t, email.StatusUnhealthy, status.Status)
	})
}
