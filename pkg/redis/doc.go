// Package redis provides the shared-store connection used by the email
// rate limiter, delivery tracker, and job queue.
//
// It wraps go-redis client construction with URL parsing, connection retry
// with linear backoff, and healthcheck/shutdown closures compatible with the
// rest of the module.
//
// Usage:
//
//	client, err := redis.Open(ctx, os.Getenv("REDIS_URL"))
//	if err != nil {
//	    // queue and shared rate limiting unavailable; the email service
//	    // falls back to in-process limiting
//	}
//	defer client.Close()
package redis
