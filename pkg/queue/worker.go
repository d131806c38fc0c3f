package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/courier/pkg/email"
)

// run is the worker pool loop. A semaphore bounds concurrency; the loop
// polls for ready work whenever a slot is free and exits once the context
// is canceled and all in-flight jobs returned their slot.
func (q *Queue) run(ctx context.Context) {
	defer close(q.done)

	sem := make(chan struct{}, q.concurrency)
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Reclaim every slot so in-flight jobs finish first.
			for i := 0; i < q.concurrency; i++ {
				sem <- struct{}{}
			}
			return
		case <-ticker.C:
		}

		if paused, err := q.store.isPaused(ctx); err != nil || paused {
			if err != nil {
				q.log.ErrorContext(ctx, "read pause flag", slog.Any("error", err))
			}
			continue
		}

		// Promote eagerly so short retry backoffs do not wait for the
		// minute-level maintenance tick.
		if _, err := q.store.promoteDue(ctx, q.now()); err != nil {
			q.log.ErrorContext(ctx, "promote delayed jobs", slog.Any("error", err))
		}

	claim:
		for {
			select {
			case sem <- struct{}{}:
			default:
				// Pool saturated; wait for the next tick.
				break claim
			}
			if !q.claimOne(ctx, sem) {
				break
			}
		}
	}
}

// claimOne pops one ready job and processes it on a fresh goroutine. The
// caller has already reserved a semaphore slot; claimOne releases it when
// no job was available. Reports whether a job was claimed.
func (q *Queue) claimOne(ctx context.Context, sem chan struct{}) bool {
	id, err := q.store.claim(ctx, q.now())
	if err != nil {
		q.log.ErrorContext(ctx, "claim job", slog.Any("error", err))
	}
	if id == "" {
		<-sem
		return false
	}

	go func() {
		defer func() { <-sem }()
		q.process(context.WithoutCancel(ctx), id)
	}()
	return true
}

// process runs one claimed job to a terminal or rescheduled state.
func (q *Queue) process(ctx context.Context, id string) {
	job, err := q.store.loadJob(ctx, id)
	if err != nil {
		q.log.ErrorContext(ctx, "load claimed job",
			slog.String("job_id", id),
			slog.Any("error", err),
		)
		return
	}

	job.Attempt++
	job.Progress = 10
	if err := q.store.saveJob(ctx, job); err != nil {
		q.log.ErrorContext(ctx, "persist job start", slog.String("job_id", id), slog.Any("error", err))
	}
	q.store.appendEvent(ctx, Event{JobID: id, Kind: "active", At: q.now()})

	q.log.InfoContext(ctx, "processing job",
		slog.String("job_id", id),
		slog.String("type", string(job.Type)),
		slog.Int("attempt", job.Attempt),
		slog.Int("attempts", job.Attempts),
	)

	job.Progress = 50
	if err := q.store.saveJob(ctx, job); err != nil {
		q.log.ErrorContext(ctx, "persist job progress", slog.String("job_id", id), slog.Any("error", err))
	}

	result, err := q.dispatch(ctx, job)
	if err != nil {
		q.handleFailure(ctx, job, err)
		return
	}
	if result != nil && !result.Success {
		cause := error(ErrDeliveryFailed)
		if result.Err != nil {
			cause = fmt.Errorf("%w: %s: %s", ErrDeliveryFailed, result.Err.Code, result.Err.Message)
		}
		q.handleFailure(ctx, job, cause)
		return
	}

	job.Progress = 100
	job.CompletedAt = q.now()
	if result != nil {
		job.MessageID = result.MessageID
	}
	if err := q.store.complete(ctx, job); err != nil {
		q.log.ErrorContext(ctx, "record completion", slog.String("job_id", id), slog.Any("error", err))
		return
	}
	q.store.appendEvent(ctx, Event{JobID: id, Kind: "completed", At: job.CompletedAt})

	q.log.InfoContext(ctx, "job completed",
		slog.String("job_id", id),
		slog.String("message_id", job.MessageID),
	)
}

// dispatch decodes the payload and calls the matching service operation.
func (q *Queue) dispatch(ctx context.Context, job *Job) (*email.DeliveryResult, error) {
	decode := func(v any) error {
		if err := json.Unmarshal(job.Payload, v); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidPayload, job.ID, err)
		}
		return nil
	}

	switch job.Type {
	case TypeContact:
		var data email.ContactData
		if err := decode(&data); err != nil {
			return nil, err
		}
		return q.svc.SendContactNotification(ctx, data)
	case TypeWelcome:
		var data email.WelcomeData
		if err := decode(&data); err != nil {
			return nil, err
		}
		return q.svc.SendWelcomeEmail(ctx, data)
	case TypePasswordReset:
		var data email.PasswordResetData
		if err := decode(&data); err != nil {
			return nil, err
		}
		return q.svc.SendPasswordReset(ctx, data)
	case TypeNewsletter:
		var data email.NewsletterData
		if err := decode(&data); err != nil {
			return nil, err
		}
		return q.svc.SendNewsletter(ctx, data)
	case TypeNotification:
		var msg email.Message
		if err := decode(&msg); err != nil {
			return nil, err
		}
		return q.svc.SendEmail(ctx, msg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, job.Type)
	}
}

// handleFailure reschedules a failed attempt with exponential backoff, or
// parks the job in the failed history once the budget is spent.
// Non-retryable failures (validation, malformed payload) skip the backoff
// and park immediately.
func (q *Queue) handleFailure(ctx context.Context, job *Job, cause error) {
	job.LastError = cause.Error()

	if job.Attempt < job.Attempts && retryable(cause) {
		delay := retryDelay(job.Backoff, job.Attempt)
		job.RunAt = q.now().Add(delay)
		if err := q.store.reschedule(ctx, job); err != nil {
			q.log.ErrorContext(ctx, "reschedule job", slog.String("job_id", job.ID), slog.Any("error", err))
			return
		}
		q.store.appendEvent(ctx, Event{JobID: job.ID, Kind: "rescheduled", At: q.now(), Note: job.LastError})

		q.log.WarnContext(ctx, "job attempt failed, rescheduled",
			slog.String("job_id", job.ID),
			slog.Int("attempt", job.Attempt),
			slog.Duration("backoff", delay),
			slog.Any("error", cause),
		)
		return
	}

	job.FailedAt = q.now()
	if err := q.store.fail(ctx, job); err != nil {
		q.log.ErrorContext(ctx, "record failure", slog.String("job_id", job.ID), slog.Any("error", err))
		return
	}
	q.store.appendEvent(ctx, Event{JobID: job.ID, Kind: "failed", At: job.FailedAt, Note: job.LastError})

	q.log.ErrorContext(ctx, "job failed permanently",
		slog.String("job_id", job.ID),
		slog.String("type", string(job.Type)),
		slog.Int("attempt", job.Attempt),
		slog.Any("error", cause),
	)
}

// retryable reports whether another attempt could succeed. Validation and
// payload errors are deterministic, so retrying them only burns attempts.
func retryable(err error) bool {
	var verr *email.ValidationError
	if errors.As(err, &verr) {
		return false
	}
	return !errors.Is(err, ErrInvalidPayload) && !errors.Is(err, ErrUnknownType)
}
