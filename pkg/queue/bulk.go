package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/courier/pkg/email"
	"github.com/dmitrymomot/courier/pkg/email/templates"
)

const (
	defaultBulkBatchSize = 50
	// Batches are staggered a second apart, recipients within a batch a
	// tenth of a second apart, so a large campaign never bursts past
	// provider rate limits.
	defaultBulkStagger = time.Second
	bulkRecipientGap   = 100 * time.Millisecond

	bulkEnqueueWorkers = 10
)

// BulkOption tunes a bulk enqueue.
type BulkOption func(*bulkConfig)

type bulkConfig struct {
	batchSize int
	stagger   time.Duration
	delay     time.Duration
	priority  int
}

func newBulkConfig(opts ...BulkOption) bulkConfig {
	cfg := bulkConfig{
		batchSize: defaultBulkBatchSize,
		stagger:   defaultBulkStagger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithBatchSize sets how many recipients share one stagger slot.
func WithBatchSize(n int) BulkOption {
	return func(c *bulkConfig) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithStagger sets the delay between consecutive batches.
func WithStagger(d time.Duration) BulkOption {
	return func(c *bulkConfig) {
		if d > 0 {
			c.stagger = d
		}
	}
}

// WithInitialDelay defers the whole campaign before the stagger starts.
func WithInitialDelay(d time.Duration) BulkOption {
	return func(c *bulkConfig) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithBulkPriority overrides the newsletter default priority for every
// job in the campaign.
func WithBulkPriority(p int) BulkOption {
	return func(c *bulkConfig) { c.priority = p }
}

// NewsletterIssue is the shared content of a bulk newsletter send. The
// unsubscribe link is personalized per recipient with the {{email}}
// placeholder.
type NewsletterIssue struct {
	Subject        string
	Content        string
	UnsubscribeURL string
	PreferencesURL string
}

// BulkResult summarizes a bulk enqueue.
type BulkResult struct {
	Total    int
	Enqueued int
	Refs     []*JobRef
}

// EnqueueNewsletterBulk queues one newsletter job per recipient, staggered
// in batches so delivery spreads out over time. Enqueueing itself is
// concurrent; the stagger applies to the jobs' run times, not to this
// call. Stops at the first store error.
func (q *Queue) EnqueueNewsletterBulk(ctx context.Context, recipients []string, issue NewsletterIssue, opts ...BulkOption) (*BulkResult, error) {
	if len(recipients) == 0 {
		return &BulkResult{}, nil
	}

	cfg := newBulkConfig(opts...)
	refs := make([]*JobRef, len(recipients))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkEnqueueWorkers)

	for i, recipient := range recipients {
		g.Go(func() error {
			data := email.NewsletterData{
				To:             recipient,
				Subject:        issue.Subject,
				Content:        issue.Content,
				UnsubscribeURL: personalize(issue.UnsubscribeURL, recipient),
				PreferencesURL: personalize(issue.PreferencesURL, recipient),
			}

			enqOpts := []EnqueueOption{
				WithDelay(cfg.delay + bulkDelay(i, cfg.batchSize, cfg.stagger, bulkRecipientGap)),
			}
			if cfg.priority != 0 {
				enqOpts = append(enqOpts, WithPriority(cfg.priority))
			}

			ref, err := q.EnqueueNewsletter(gctx, data, enqOpts...)
			if err != nil {
				return fmt.Errorf("recipient %s: %w", recipient, err)
			}
			refs[i] = ref
			return nil
		})
	}

	err := g.Wait()

	result := &BulkResult{Total: len(recipients)}
	for _, ref := range refs {
		if ref != nil {
			result.Enqueued++
			result.Refs = append(result.Refs, ref)
		}
	}

	q.log.InfoContext(ctx, "bulk newsletter enqueued",
		slog.Int("total", result.Total),
		slog.Int("enqueued", result.Enqueued),
	)

	if err != nil {
		return result, fmt.Errorf("queue: bulk enqueue: %w", err)
	}
	return result, nil
}

// bulkDelay computes the send delay for the i-th recipient: full batches
// before it contribute the stagger delay, its index within the batch adds
// the per-recipient gap.
func bulkDelay(i, batchSize int, stagger, gap time.Duration) time.Duration {
	batch := i / batchSize
	within := i % batchSize
	return time.Duration(batch)*stagger + time.Duration(within)*gap
}

// personalize substitutes the recipient address into URL templates.
func personalize(urlTemplate, recipient string) string {
	if urlTemplate == "" {
		return ""
	}
	return templates.ReplaceVariables(urlTemplate, map[string]string{
		"email": recipient,
	})
}
