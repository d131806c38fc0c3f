package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/courier/pkg/logger"
)

const keyPrefix = "email:tracking:"

// Redis stores delivery records as JSON in the shared store with the
// package retention as TTL.
type Redis struct {
	client redis.UniversalClient
	log    *slog.Logger
}

// NewRedis creates a Redis-backed tracker.
func NewRedis(client redis.UniversalClient, log *slog.Logger) *Redis {
	if log == nil {
		log = logger.NewNope()
	}
	return &Redis{client: client, log: log}
}

// Record upserts the delivery record. Failures are logged, never returned:
// tracking must not block or fail a send.
func (r *Redis) Record(ctx context.Context, rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		r.log.WarnContext(ctx, "tracking: marshal record failed",
			slog.String("message_id", rec.MessageID),
			slog.Any("error", err),
		)
		return
	}

	if err := r.client.Set(ctx, keyPrefix+rec.MessageID, data, Retention).Err(); err != nil {
		r.log.WarnContext(ctx, "tracking: store record failed",
			slog.String("message_id", rec.MessageID),
			slog.Any("error", err),
		)
	}
}

// Lookup returns the record for a message id.
func (r *Redis) Lookup(ctx context.Context, messageID string) (Record, error) {
	data, err := r.client.Get(ctx, keyPrefix+messageID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
