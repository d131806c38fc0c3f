package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/courier/pkg/email"
	"github.com/dmitrymomot/courier/pkg/logger"
)

const (
	defaultConcurrency  = 5
	defaultPollInterval = 500 * time.Millisecond

	// Active jobs older than this are assumed to belong to a dead worker
	// and are returned to the ready set by maintenance.
	staleAfter = 5 * time.Minute
)

// Queue is a durable email job queue backed by Redis. It owns a worker
// pool dispatching jobs to an email.Service and a maintenance loop
// promoting delayed jobs and reclaiming stale ones.
type Queue struct {
	svc   *email.Service
	store *store
	log   *slog.Logger
	now   func() time.Time

	concurrency  int
	pollInterval time.Duration

	cron *cron.Cron

	mu       sync.Mutex
	started  bool
	stopping bool
	stopPoll context.CancelFunc
	done     chan struct{}
}

// Option configures the Queue.
type Option func(*Queue)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *slog.Logger) Option {
	return func(q *Queue) {
		if log != nil {
			q.log = log
		}
	}
}

// WithConcurrency bounds the number of jobs processed at once.
func WithConcurrency(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.concurrency = n
		}
	}
}

// WithPollInterval sets how often the worker checks for ready jobs.
func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.pollInterval = d
		}
	}
}

// WithClock replaces the clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// New creates a Queue dispatching to svc and persisting in rdb. Call
// Start to begin processing; enqueue operations work before Start.
func New(svc *email.Service, rdb redis.UniversalClient, opts ...Option) (*Queue, error) {
	if svc == nil {
		return nil, ErrServiceRequired
	}
	if rdb == nil {
		return nil, ErrStoreRequired
	}

	q := &Queue{
		svc:          svc,
		store:        &store{rdb: rdb},
		log:          logger.NewNope(),
		now:          time.Now,
		concurrency:  defaultConcurrency,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// EnqueueOption tunes a single job.
type EnqueueOption func(*Job)

// WithPriority overrides the type's default priority (1 lowest, 10
// highest).
func WithPriority(p int) EnqueueOption {
	return func(j *Job) { j.Priority = p }
}

// WithAttempts overrides the attempt budget (1 to 5).
func WithAttempts(n int) EnqueueOption {
	return func(j *Job) { j.Attempts = n }
}

// WithBackoff overrides the base retry backoff.
func WithBackoff(d time.Duration) EnqueueOption {
	return func(j *Job) { j.Backoff = d }
}

// WithDelay defers the first attempt.
func WithDelay(d time.Duration) EnqueueOption {
	return func(j *Job) {
		if d > 0 {
			j.RunAt = j.EnqueuedAt.Add(d)
		}
	}
}

// EnqueueContact queues a contact-form notification.
func (q *Queue) EnqueueContact(ctx context.Context, data email.ContactData, opts ...EnqueueOption) (*JobRef, error) {
	return q.enqueue(ctx, TypeContact, data, opts...)
}

// EnqueueWelcome queues a welcome email.
func (q *Queue) EnqueueWelcome(ctx context.Context, data email.WelcomeData, opts ...EnqueueOption) (*JobRef, error) {
	return q.enqueue(ctx, TypeWelcome, data, opts...)
}

// EnqueuePasswordReset queues a password reset email.
func (q *Queue) EnqueuePasswordReset(ctx context.Context, data email.PasswordResetData, opts ...EnqueueOption) (*JobRef, error) {
	return q.enqueue(ctx, TypePasswordReset, data, opts...)
}

// EnqueueNewsletter queues a newsletter email for one recipient.
func (q *Queue) EnqueueNewsletter(ctx context.Context, data email.NewsletterData, opts ...EnqueueOption) (*JobRef, error) {
	return q.enqueue(ctx, TypeNewsletter, data, opts...)
}

// EnqueueNotification queues an arbitrary pre-rendered message.
func (q *Queue) EnqueueNotification(ctx context.Context, msg email.Message, opts ...EnqueueOption) (*JobRef, error) {
	return q.enqueue(ctx, TypeNotification, msg, opts...)
}

func (q *Queue) enqueue(ctx context.Context, t Type, payload any, opts ...EnqueueOption) (*JobRef, error) {
	q.mu.Lock()
	stopping := q.stopping
	q.mu.Unlock()
	if stopping {
		return nil, ErrShuttingDown
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("queue: encode payload: %w", err)
	}

	now := q.now()
	job := &Job{
		ID:         newJobID(t, now),
		Type:       t,
		Payload:    raw,
		EnqueuedAt: now,
	}
	for _, opt := range opts {
		opt(job)
	}
	job.normalize()

	if err := q.store.enqueue(ctx, job, now); err != nil {
		return nil, err
	}

	q.store.appendEvent(ctx, Event{JobID: job.ID, Kind: "enqueued", At: now})
	q.log.DebugContext(ctx, "job enqueued",
		slog.String("job_id", job.ID),
		slog.String("type", string(t)),
		slog.Int("priority", job.Priority),
	)

	return &JobRef{ID: job.ID, Type: t, Priority: job.Priority, RunAt: job.RunAt}, nil
}

// Start launches the worker pool and the maintenance schedule.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return ErrAlreadyStarted
	}

	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	q.stopPoll = cancel
	q.done = make(chan struct{})

	go q.run(pollCtx)

	q.cron = cron.New()
	if _, err := q.cron.AddFunc("@every 1m", func() { q.maintain(context.Background()) }); err != nil {
		cancel()
		return fmt.Errorf("queue: schedule maintenance: %w", err)
	}
	q.cron.Start()

	q.started = true
	q.log.Info("queue started",
		slog.Int("concurrency", q.concurrency),
	)
	return nil
}

// Stop shuts the queue down: new enqueues are refused, in-flight jobs
// finish, the maintenance schedule stops. Blocks until the worker pool
// drains or ctx expires.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return ErrNotStarted
	}
	q.stopping = true
	q.stopPoll()
	cronStop := q.cron.Stop()
	done := q.done
	q.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("queue: stop: %w", ctx.Err())
	}

	select {
	case <-cronStop.Done():
	case <-ctx.Done():
		return fmt.Errorf("queue: stop maintenance: %w", ctx.Err())
	}

	q.mu.Lock()
	q.started = false
	q.mu.Unlock()

	q.log.Info("queue stopped")
	return nil
}

// Pause stops claiming new jobs cluster-wide. In-flight jobs finish.
func (q *Queue) Pause(ctx context.Context) error {
	return q.store.setPaused(ctx, true)
}

// Resume lifts a pause.
func (q *Queue) Resume(ctx context.Context) error {
	return q.store.setPaused(ctx, false)
}

// Drain discards every waiting and delayed job. Active jobs finish;
// completed and failed history is kept.
func (q *Queue) Drain(ctx context.Context) error {
	if err := q.store.drain(ctx); err != nil {
		return err
	}
	q.log.Warn("queue drained")
	return nil
}

// RetryJob moves a failed job back to the ready set with a fresh attempt
// budget. Returns ErrJobNotFailed when the job exists but is not failed.
func (q *Queue) RetryJob(ctx context.Context, id string) error {
	job, rawEntry, err := q.store.findFailed(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrJobNotFound) {
			return err
		}
		// Distinguish "gone" from "exists in another state".
		if _, lookupErr := q.JobByID(ctx, id); lookupErr == nil {
			return fmt.Errorf("%w: %s", ErrJobNotFailed, id)
		}
		return err
	}

	if err := q.store.retryFailed(ctx, job, rawEntry, q.now()); err != nil {
		return err
	}
	q.store.appendEvent(ctx, Event{JobID: id, Kind: "retried", At: q.now()})
	return nil
}

// JobByID returns a job in any state: live jobs from their store key,
// finished ones from the history lists.
func (q *Queue) JobByID(ctx context.Context, id string) (*Job, error) {
	job, err := q.store.loadJob(ctx, id)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, ErrJobNotFound) {
		return nil, err
	}
	if job, _, ferr := q.store.findFailed(ctx, id); ferr == nil {
		return job, nil
	}
	return q.store.findCompleted(ctx, id)
}

// Stats reports current queue depths.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	return q.store.stats(ctx)
}

// maintain promotes due delayed jobs and reclaims jobs stuck in the
// active set. Runs every minute; also invoked by the poll loop for
// promotion so delayed jobs do not wait on the cron tick.
func (q *Queue) maintain(ctx context.Context) {
	now := q.now()

	if n, err := q.store.promoteDue(ctx, now); err != nil {
		q.log.ErrorContext(ctx, "promote delayed jobs", slog.Any("error", err))
	} else if n > 0 {
		q.log.DebugContext(ctx, "promoted delayed jobs", slog.Int("count", n))
	}

	if n, err := q.store.reclaimStale(ctx, now.Add(-staleAfter)); err != nil {
		q.log.ErrorContext(ctx, "reclaim stale jobs", slog.Any("error", err))
	} else if n > 0 {
		q.log.WarnContext(ctx, "reclaimed stale jobs", slog.Int("count", n))
	}
}

// Healthcheck returns a health check function for the queue. Unhealthy
// when the store is unreachable or the worker is not running; degraded
// depth thresholds are reported by Health.
func Healthcheck(q *Queue) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if q == nil {
			return errors.Join(ErrHealthcheckFailed, errors.New("queue is nil"))
		}

		q.mu.Lock()
		started := q.started
		q.mu.Unlock()
		if !started {
			return errors.Join(ErrHealthcheckFailed, ErrNotStarted)
		}

		if _, err := q.store.stats(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

// Health classifies queue state for operational dashboards: unhealthy
// when the store is down or the worker stopped, degraded when backlog or
// failures cross their thresholds.
type Health struct {
	Status string `json:"status"`
	Stats  Stats  `json:"stats"`
	Reason string `json:"reason,omitempty"`
}

const (
	degradedFailedThreshold  = 10
	degradedWaitingThreshold = 100
)

// Health reports the queue's operational state with the stats snapshot it
// was judged on.
func (q *Queue) Health(ctx context.Context) Health {
	q.mu.Lock()
	started := q.started
	q.mu.Unlock()
	if !started {
		return Health{Status: email.StatusUnhealthy, Reason: "worker not running"}
	}

	stats, err := q.store.stats(ctx)
	if err != nil {
		return Health{Status: email.StatusUnhealthy, Reason: "store unreachable"}
	}

	switch {
	case stats.Failed > degradedFailedThreshold:
		return Health{Status: email.StatusDegraded, Stats: stats, Reason: "failed jobs above threshold"}
	case stats.Waiting > degradedWaitingThreshold:
		return Health{Status: email.StatusDegraded, Stats: stats, Reason: "backlog above threshold"}
	default:
		return Health{Status: email.StatusHealthy, Stats: stats}
	}
}
