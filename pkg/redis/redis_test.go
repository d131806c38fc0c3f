package redis

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpen_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("empty URL returns ErrEmptyConnectionURL", func(t *testing.T) {
		t.Parallel()

		client, err := Open(ctx, "")
		require.Nil(t, client)
		require.ErrorIs(t, err, ErrEmptyConnectionURL)
	})

	t.Run("non-redis scheme returns ErrFailedToParseURL", func(t *testing.T) {
		t.Parallel()

		for _, url := range []string{
			"http://localhost:6379",
			"localhost:6379",
			"postgresql://localhost:6379",
		} {
			client, err := Open(ctx, url)
			require.Nil(t, client, url)
			require.ErrorIs(t, err, ErrFailedToParseURL, url)
		}
	})

	t.Run("malformed URL returns ErrFailedToParseURL", func(t *testing.T) {
		t.Parallel()

		for _, url := range []string{
			"redis://localhost:notaport",
			"redis://localhost:6379/notanumber",
		} {
			client, err := Open(ctx, url)
			require.Nil(t, client, url)
			require.ErrorIs(t, err, ErrFailedToParseURL, url)
		}
	})
}

func TestHealthcheck_NilClient(t *testing.T) {
	t.Parallel()

	check := Healthcheck(nil)
	require.ErrorIs(t, check(context.Background()), ErrHealthcheckFailed)
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	t.Run("calls Close on the client", func(t *testing.T) {
		t.Parallel()

		closer := &mockCloser{}
		require.NoError(t, Shutdown(closer)(context.Background()))
		require.True(t, closer.closed)
	})

	t.Run("propagates Close error", func(t *testing.T) {
		t.Parallel()

		expected := errors.New("close error")
		closer := &mockCloser{err: expected}
		err := Shutdown(closer)(context.Background())
		require.Equal(t, expected, err)
		require.True(t, closer.closed)
	})
}

func TestWait_ContextCancellation(t *testing.T) {
	t.Parallel()

	t.Run("cancelled context returns immediately", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		err := wait(ctx, 10*time.Second)

		require.Equal(t, context.Canceled, err)
		require.Less(t, time.Since(start), time.Second)
	})

	t.Run("timeout completes normally", func(t *testing.T) {
		t.Parallel()

		start := time.Now()
		require.NoError(t, wait(context.Background(), 50*time.Millisecond))
		require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})
}

func TestOptions(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		opts := defaultOptions()
		require.Equal(t, 10, opts.poolSize)
		require.Equal(t, 2, opts.minIdleConns)
		require.Equal(t, 3, opts.retryAttempts)
		require.Equal(t, 2*time.Second, opts.retryInterval)
		require.Equal(t, 3*time.Second, opts.readTimeout)
		require.Equal(t, 3*time.Second, opts.writeTimeout)
		require.Equal(t, 5*time.Second, opts.dialTimeout)
	})

	t.Run("options apply in order", func(t *testing.T) {
		t.Parallel()

		opts := defaultOptions()
		WithPoolSize(25)(opts)
		WithMinIdleConns(8)(opts)
		WithRetry(5, 10*time.Second)(opts)
		WithTimeouts(7*time.Second, 8*time.Second, 9*time.Second)(opts)

		require.Equal(t, 25, opts.poolSize)
		require.Equal(t, 8, opts.minIdleConns)
		require.Equal(t, 5, opts.retryAttempts)
		require.Equal(t, 10*time.Second, opts.retryInterval)
		require.Equal(t, 7*time.Second, opts.readTimeout)
		require.Equal(t, 8*time.Second, opts.writeTimeout)
		require.Equal(t, 9*time.Second, opts.dialTimeout)
	})

	t.Run("non-positive pool size ignored", func(t *testing.T) {
		t.Parallel()

		opts := defaultOptions()
		WithPoolSize(0)(opts)
		require.Equal(t, 10, opts.poolSize)
	})
}

type mockCloser struct {
	closed bool
	err    error
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.err
}

var _ io.Closer = (*mockCloser)(nil)
