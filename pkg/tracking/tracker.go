package tracking

import (
	"context"
	"errors"
	"time"
)

// Retention is how long delivery records are kept before the store evicts
// them.
const Retention = 7 * 24 * time.Hour

// ErrNotFound is returned when no record exists for a message id.
var ErrNotFound = errors.New("tracking: record not found")

// Status values of a delivery record.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Record is a delivery tracking record keyed by provider message id.
// Created at send time; immutable afterwards except for webhook-driven
// status updates outside this core.
type Record struct {
	MessageID    string     `json:"message_id"`
	Recipient    string     `json:"recipient"`
	Subject      string     `json:"subject"`
	SentAt       time.Time  `json:"sent_at"`
	Provider     string     `json:"provider"`
	Status       string     `json:"status"`
	OpenedAt     *time.Time `json:"opened_at,omitempty"`
	ClickedAt    *time.Time `json:"clicked_at,omitempty"`
	BouncedAt    *time.Time `json:"bounced_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Tracker stores and retrieves delivery records.
type Tracker interface {
	// Record upserts a delivery record. Best-effort: implementations log
	// store failures instead of returning them.
	Record(ctx context.Context, rec Record)

	// Lookup returns the record for a message id, or ErrNotFound.
	Lookup(ctx context.Context, messageID string) (Record, error)
}

// Noop discards records. Used when tracking is disabled or no shared store
// is configured.
type Noop struct{}

func (Noop) Record(context.Context, Record) {}

func (Noop) Lookup(context.Context, string) (Record, error) {
	return Record{}, ErrNotFound
}
