package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "email:rate:"

// allowScript increments the window counter and guarantees it carries a
// TTL in the same round trip. The PTTL check repairs counters whose
// expiry was lost (a crash between INCR and EXPIRE would otherwise leave
// the recipient rate-limited forever).
var allowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("PTTL", KEYS[1]) == -1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Redis is a fixed-window limiter backed by a shared Redis store.
// Safe under concurrent increments from multiple workers: the counter is
// advanced and its window anchored atomically in a single script.
type Redis struct {
	client redis.UniversalClient
	cfg    Config
}

// NewRedis creates a Redis-backed limiter.
func NewRedis(client redis.UniversalClient, cfg Config) *Redis {
	return &Redis{client: client, cfg: cfg.withDefaults()}
}

// Allow increments the counter for identifier and reports whether the send
// may proceed. Store errors are returned as-is so the caller can decide
// whether to fail open or closed.
func (r *Redis) Allow(ctx context.Context, identifier string) error {
	key := keyPrefix + identifier

	count, err := allowScript.Run(ctx, r.client, []string{key}, r.cfg.Window.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("ratelimit: incr: %w", err)
	}

	if count > int64(r.cfg.Max) {
		return fmt.Errorf("%w: %d/%d emails in %s", ErrExceeded, count-1, r.cfg.Max, r.cfg.Window)
	}

	return nil
}
