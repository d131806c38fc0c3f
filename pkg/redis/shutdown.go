package redis

import (
	"context"
	"io"
)

// Shutdown returns a function that closes the Redis client.
// The courier facade runs it after the queue and service have released
// their handles on the shared store.
func Shutdown(client io.Closer) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if client == nil {
			return nil
		}
		return client.Close()
	}
}
