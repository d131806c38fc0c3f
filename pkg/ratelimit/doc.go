// Package ratelimit gates email sending with a fixed-window counter keyed
// by recipient.
//
// One narrow interface, two implementations: Redis-backed when the shared
// store is reachable (counters visible to every process and queue worker,
// atomic increment + expire), and an in-process fallback with manual window
// tracking for deployments without a store. The orchestrator selects the
// backing at construction time and never touches the difference again.
//
//	limiter := ratelimit.NewRedis(client, ratelimit.Config{Max: 10, Window: time.Minute})
//	if err := limiter.Allow(ctx, recipient); err != nil {
//	    // ratelimit.ErrExceeded
//	}
package ratelimit
