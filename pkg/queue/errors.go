package queue

import "errors"

var (
	// ErrServiceRequired is returned when creating a queue without an
	// email service to dispatch jobs to.
	ErrServiceRequired = errors.New("queue: email service is required")

	// ErrStoreRequired is returned when creating a queue without a Redis
	// client.
	ErrStoreRequired = errors.New("queue: redis client is required")

	// ErrAlreadyStarted is returned when starting a queue that is already
	// running.
	ErrAlreadyStarted = errors.New("queue: already started")

	// ErrNotStarted is returned when stopping a queue that is not running.
	ErrNotStarted = errors.New("queue: not started")

	// ErrShuttingDown is returned by enqueue operations once shutdown has
	// begun. Jobs already in the store are unaffected.
	ErrShuttingDown = errors.New("queue: shutting down")

	// ErrJobNotFound is returned when no job exists for an id.
	ErrJobNotFound = errors.New("queue: job not found")

	// ErrJobNotFailed is returned when retrying a job that is not in the
	// failed state. Only failed jobs can be retried by id.
	ErrJobNotFailed = errors.New("queue: job is not in failed state")

	// ErrInvalidPayload is returned when a stored payload cannot be
	// decoded into the job type's expected shape.
	ErrInvalidPayload = errors.New("queue: invalid payload")

	// ErrUnknownType is returned for job types the worker cannot dispatch.
	ErrUnknownType = errors.New("queue: unknown job type")

	// ErrDeliveryFailed marks a job whose send returned a result with
	// Success false. Treated like any other transport failure: retried
	// with backoff until the attempt budget is spent.
	ErrDeliveryFailed = errors.New("queue: delivery reported failure")

	// ErrHealthcheckFailed is returned when the queue health check fails.
	ErrHealthcheckFailed = errors.New("queue: healthcheck failed")
)
