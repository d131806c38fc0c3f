package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies the email operation a job dispatches to.
type Type string

const (
	TypeContact       Type = "contact"
	TypeWelcome       Type = "welcome"
	TypePasswordReset Type = "password-reset"
	TypeNewsletter    Type = "newsletter"
	TypeNotification  Type = "notification"
)

// State is the lifecycle state of a job.
type State string

const (
	StateWaiting   State = "waiting"
	StateDelayed   State = "delayed"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

const (
	minPriority = 1
	maxPriority = 10

	defaultAttempts = 3
	maxAttempts     = 5

	defaultBackoff = 5 * time.Second
)

// defaultPriority maps each job type to its scheduling priority. Higher
// runs first: password resets are time-critical, newsletters can wait.
func defaultPriority(t Type) int {
	switch t {
	case TypePasswordReset:
		return 9
	case TypeContact:
		return 8
	case TypeWelcome:
		return 6
	case TypeNewsletter:
		return 3
	default:
		return 5
	}
}

// Job is the durable unit of work stored in Redis. Payload holds the JSON
// encoding of the email data matching Type.
type Job struct {
	ID       string          `json:"id"`
	Type     Type            `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Priority int             `json:"priority"`

	// Attempts is the total attempt budget; Attempt counts attempts made.
	Attempts int           `json:"attempts"`
	Attempt  int           `json:"attempt"`
	Backoff  time.Duration `json:"backoff"`

	Progress int `json:"progress"`

	EnqueuedAt  time.Time `json:"enqueued_at"`
	RunAt       time.Time `json:"run_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	FailedAt    time.Time `json:"failed_at,omitempty"`

	MessageID string `json:"message_id,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// JobRef is the caller-facing handle returned by enqueue operations.
type JobRef struct {
	ID       string
	Type     Type
	Priority int
	RunAt    time.Time
}

// newJobID builds a human-scannable job id: the type and enqueue time are
// readable in Redis tooling, the uuid fragment breaks collisions within a
// millisecond.
func newJobID(t Type, now time.Time) string {
	return fmt.Sprintf("email_%s_%d_%s", t, now.UnixMilli(), uuid.NewString()[:8])
}

// normalize clamps the tunable fields into their allowed ranges and fills
// per-type defaults.
func (j *Job) normalize() {
	if j.Priority == 0 {
		j.Priority = defaultPriority(j.Type)
	}
	if j.Priority < minPriority {
		j.Priority = minPriority
	}
	if j.Priority > maxPriority {
		j.Priority = maxPriority
	}
	if j.Attempts <= 0 {
		j.Attempts = defaultAttempts
	}
	if j.Attempts > maxAttempts {
		j.Attempts = maxAttempts
	}
	if j.Backoff <= 0 {
		j.Backoff = defaultBackoff
	}
}

// retryDelay is the exponential backoff before the given attempt number
// (1-based): base, 2x base, 4x base.
func retryDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

// readyScore orders the ready set: lower scores pop first. Priority
// dominates, enqueue time breaks ties so jobs of equal priority run in
// FIFO order. The millisecond clock stays far below the priority stride
// until the year 33658.
func readyScore(priority int, enqueuedAt time.Time) float64 {
	const stride = 1e12
	return float64(maxPriority-priority)*stride + float64(enqueuedAt.UnixMilli())
}
