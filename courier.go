package courier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/courier/pkg/email"
	"github.com/dmitrymomot/courier/pkg/email/resend"
	"github.com/dmitrymomot/courier/pkg/email/smtp"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/queue"
	"github.com/dmitrymomot/courier/pkg/ratelimit"
	"github.com/dmitrymomot/courier/pkg/redis"
	"github.com/dmitrymomot/courier/pkg/tracking"
)

// Courier is the configured email stack: service, optional queue, and the
// shared store they run on.
type Courier struct {
	cfg Config
	log *slog.Logger

	svc *email.Service
	q   *queue.Queue
	rdb goredis.UniversalClient

	// providerNames is the fallback order reported by HealthCheck.
	providerNames []string

	override *providerOverride

	// ownsStore marks a Redis client opened by Initialize, as opposed to
	// one injected via WithRedisClient. Only owned clients are closed on
	// Shutdown.
	ownsStore bool
}

var (
	defaultMu sync.Mutex
	defaultC  *Courier
)

// Option configures Initialize.
type Option func(*Courier)

// WithLogger sets the logger shared by every component.
func WithLogger(log *slog.Logger) Option {
	return func(c *Courier) {
		if log != nil {
			c.log = log
		}
	}
}

// WithRedisClient injects an existing Redis client instead of opening one
// from Config.RedisURL. The caller keeps ownership and closes it.
func WithRedisClient(client goredis.UniversalClient) Option {
	return func(c *Courier) {
		if client != nil {
			c.rdb = client
		}
	}
}

// providerOverride carries test doubles past provider construction.
type providerOverride struct{ providers []email.Provider }

// WithProviders replaces the configuration-driven provider wiring with an
// explicit ordered list. Used in tests.
func WithProviders(providers ...email.Provider) Option {
	return func(c *Courier) {
		c.override = &providerOverride{providers: providers}
	}
}

// Initialize builds the shared Courier from configuration. It is
// configure-once: the first successful call wins and later calls return
// the existing instance regardless of their arguments.
func Initialize(ctx context.Context, cfg Config, opts ...Option) (*Courier, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultC != nil {
		return defaultC, nil
	}

	c, err := build(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}

	defaultC = c
	return c, nil
}

// Default returns the shared instance created by Initialize.
func Default() (*Courier, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultC == nil {
		return nil, ErrNotInitialized
	}
	return defaultC, nil
}

// reset clears the shared instance. Tests only.
func reset() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultC = nil
}

func build(ctx context.Context, cfg Config, opts ...Option) (*Courier, error) {
	c := &Courier{
		cfg: cfg,
		log: logger.NewNope(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.QueueEnabled && cfg.RedisURL == "" && c.rdb == nil {
		return nil, ErrQueueRequiresRedis
	}

	if c.rdb == nil && cfg.RedisURL != "" {
		client, err := redis.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("courier: open redis: %w", err)
		}
		c.rdb = client
		c.ownsStore = true
	}

	providers, err := c.buildProviders()
	if err != nil {
		return nil, err
	}
	for _, p := range providers {
		c.providerNames = append(c.providerNames, p.Name())
	}

	svcOpts := []email.Option{
		email.WithProviders(providers...),
		email.WithLogger(c.log),
	}
	if c.rdb != nil {
		svcOpts = append(svcOpts,
			email.WithLimiter(ratelimit.NewRedis(c.rdb, cfg.Email.RateLimit)),
			email.WithTracker(tracking.NewRedis(c.rdb, c.log)),
			email.WithStoreCheck(redis.Healthcheck(c.rdb)),
		)
	}

	svc, err := email.NewService(cfg.Email, svcOpts...)
	if err != nil {
		return nil, err
	}
	c.svc = svc

	if cfg.QueueEnabled {
		q, err := queue.New(svc, c.rdb,
			queue.WithLogger(c.log),
			queue.WithConcurrency(cfg.QueueConcurrency),
		)
		if err != nil {
			return nil, err
		}
		if err := q.Start(ctx); err != nil {
			return nil, err
		}
		c.q = q
	}

	c.log.InfoContext(ctx, "courier initialized",
		slog.Int("providers", len(providers)),
		slog.Bool("queue", cfg.QueueEnabled),
		slog.Bool("shared_store", c.rdb != nil),
	)

	return c, nil
}

// buildProviders assembles the ordered provider list from configuration:
// Resend primary when configured, SMTP as fallback or sole provider.
func (c *Courier) buildProviders() ([]email.Provider, error) {
	if c.override != nil {
		if len(c.override.providers) == 0 {
			return nil, ErrNoProvidersConfigured
		}
		return c.override.providers, nil
	}

	var providers []email.Provider

	if c.cfg.Resend.Configured() {
		p, err := resend.New(c.cfg.Resend)
		if err != nil {
			return nil, fmt.Errorf("courier: resend provider: %w", err)
		}
		providers = append(providers, p)
	}
	if c.cfg.SMTP.Configured() {
		p, err := smtp.New(c.cfg.SMTP)
		if err != nil {
			return nil, fmt.Errorf("courier: smtp provider: %w", err)
		}
		providers = append(providers, p)
	}

	if len(providers) == 0 {
		return nil, ErrNoProvidersConfigured
	}
	return providers, nil
}

// Receipt is the outcome of a typed operation: a delivery result when the
// email was sent inline, or a job reference when it was queued.
type Receipt struct {
	Delivery *email.DeliveryResult
	Job      *queue.JobRef
}

// Queued reports whether the operation was deferred to the queue.
func (r *Receipt) Queued() bool { return r.Job != nil }

// SendContactNotification delivers or enqueues a contact-form
// notification for the admin address.
func (c *Courier) SendContactNotification(ctx context.Context, data email.ContactData) (*Receipt, error) {
	if c.q != nil {
		ref, err := c.q.EnqueueContact(ctx, data)
		if err != nil {
			return nil, err
		}
		return &Receipt{Job: ref}, nil
	}
	res, err := c.svc.SendContactNotification(ctx, data)
	if err != nil {
		return nil, err
	}
	return &Receipt{Delivery: res}, nil
}

// SendWelcomeEmail delivers or enqueues the account welcome email.
func (c *Courier) SendWelcomeEmail(ctx context.Context, data email.WelcomeData) (*Receipt, error) {
	if c.q != nil {
		ref, err := c.q.EnqueueWelcome(ctx, data)
		if err != nil {
			return nil, err
		}
		return &Receipt{Job: ref}, nil
	}
	res, err := c.svc.SendWelcomeEmail(ctx, data)
	if err != nil {
		return nil, err
	}
	return &Receipt{Delivery: res}, nil
}

// SendPasswordReset delivers or enqueues the password reset email.
func (c *Courier) SendPasswordReset(ctx context.Context, data email.PasswordResetData) (*Receipt, error) {
	if c.q != nil {
		ref, err := c.q.EnqueuePasswordReset(ctx, data)
		if err != nil {
			return nil, err
		}
		return &Receipt{Job: ref}, nil
	}
	res, err := c.svc.SendPasswordReset(ctx, data)
	if err != nil {
		return nil, err
	}
	return &Receipt{Delivery: res}, nil
}

// SendNewsletter delivers or enqueues a newsletter issue for one
// recipient.
func (c *Courier) SendNewsletter(ctx context.Context, data email.NewsletterData) (*Receipt, error) {
	if c.q != nil {
		ref, err := c.q.EnqueueNewsletter(ctx, data)
		if err != nil {
			return nil, err
		}
		return &Receipt{Job: ref}, nil
	}
	res, err := c.svc.SendNewsletter(ctx, data)
	if err != nil {
		return nil, err
	}
	return &Receipt{Delivery: res}, nil
}

// SendEmail delivers or enqueues an arbitrary pre-rendered message.
func (c *Courier) SendEmail(ctx context.Context, msg email.Message) (*Receipt, error) {
	if c.q != nil {
		ref, err := c.q.EnqueueNotification(ctx, msg)
		if err != nil {
			return nil, err
		}
		return &Receipt{Job: ref}, nil
	}
	res, err := c.svc.SendEmail(ctx, msg)
	if err != nil {
		return nil, err
	}
	return &Receipt{Delivery: res}, nil
}

// SendBulkNewsletterEmails enqueues a staggered newsletter campaign.
// Requires the queue; bulk delivery has no inline mode.
func (c *Courier) SendBulkNewsletterEmails(ctx context.Context, recipients []string, issue queue.NewsletterIssue, opts ...queue.BulkOption) (*queue.BulkResult, error) {
	if c.q == nil {
		return nil, ErrQueueDisabled
	}
	return c.q.EnqueueNewsletterBulk(ctx, recipients, issue, opts...)
}

// Status returns the delivery record for a provider message id.
func (c *Courier) Status(ctx context.Context, messageID string) (tracking.Record, error) {
	return c.svc.Status(ctx, messageID)
}

// Queue exposes the durable queue for job inspection and control, or nil
// when the queue is disabled.
func (c *Courier) Queue() *queue.Queue { return c.q }

// Service exposes the underlying email service.
func (c *Courier) Service() *email.Service { return c.svc }

// HealthReport aggregates the health of every active component.
type HealthReport struct {
	Status  string             `json:"status"`
	Service email.HealthStatus `json:"service"`
	Queue   *queue.Health      `json:"queue,omitempty"`
	Config  ConfigSummary      `json:"config"`
}

// ConfigSummary is the configuration block of a health report: which
// transports are wired, in fallback order, and which pipeline features
// are switched on.
type ConfigSummary struct {
	Providers       []string `json:"providers"`
	QueueEnabled    bool     `json:"queueEnabled"`
	TrackingEnabled bool     `json:"trackingEnabled"`
	PreviewEnabled  bool     `json:"previewEnabled"`
}

// HealthCheck reports the worst status across the service and the queue,
// with a summary of the active configuration.
func (c *Courier) HealthCheck(ctx context.Context) HealthReport {
	report := HealthReport{
		Service: c.svc.HealthCheck(ctx),
		Config: ConfigSummary{
			Providers:       c.providerNames,
			QueueEnabled:    c.cfg.QueueEnabled,
			TrackingEnabled: c.cfg.Email.EnableTracking,
			PreviewEnabled:  c.cfg.Email.EnablePreview,
		},
	}
	report.Status = report.Service.Status

	if c.q != nil {
		qh := c.q.Health(ctx)
		report.Queue = &qh
		report.Status = worstStatus(report.Status, qh.Status)
	}

	return report
}

func worstStatus(a, b string) string {
	rank := map[string]int{
		email.StatusHealthy:   0,
		email.StatusDegraded:  1,
		email.StatusUnhealthy: 2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// Shutdown stops the stack in dependency order: queue first so no job is
// claimed mid-stop, then the service, then the store. Every stage runs
// even after a failure; the first error is returned.
func (c *Courier) Shutdown(ctx context.Context) error {
	var errs []error

	if c.q != nil {
		if err := c.q.Stop(ctx); err != nil && !errors.Is(err, queue.ErrNotStarted) {
			errs = append(errs, err)
		}
	}

	if err := c.svc.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	if c.ownsStore && c.rdb != nil {
		if err := redis.Shutdown(c.rdb)(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	// Deregister so the process can Initialize again. A stopped stack must
	// not stay reachable through Default even when a stage failed.
	defaultMu.Lock()
	if defaultC == c {
		defaultC = nil
	}
	defaultMu.Unlock()

	c.log.InfoContext(ctx, "courier stopped")
	return errors.Join(errs...)
}
