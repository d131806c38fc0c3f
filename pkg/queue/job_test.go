package queue

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobID(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	id := newJobID(TypeWelcome, now)

	parts := strings.Split(id, "_")
	require.Len(t, parts, 4)
	assert.Equal(t, "email", parts[0])
	assert.Equal(t, "welcome", parts[1])
	assert.Equal(t, "1772355600000", parts[2])
	assert.Len(t, parts[3], 8)

	assert.NotEqual(t, id, newJobID(TypeWelcome, now), "ids must differ within one millisecond")
}

func TestDefaultPriority(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 9, defaultPriority(TypePasswordReset))
	assert.Equal(t, 8, defaultPriority(TypeContact))
	assert.Equal(t, 6, defaultPriority(TypeWelcome))
	assert.Equal(t, 5, defaultPriority(TypeNotification))
	assert.Equal(t, 3, defaultPriority(TypeNewsletter))
}

func TestJobNormalize(t *testing.T) {
	t.Parallel()

	t.Run("fills type defaults", func(t *testing.T) {
		t.Parallel()

		j := &Job{Type: TypePasswordReset}
		j.normalize()
		assert.Equal(t, 9, j.Priority)
		assert.Equal(t, defaultAttempts, j.Attempts)
		assert.Equal(t, defaultBackoff, j.Backoff)
	})

	t.Run("clamps out-of-range values", func(t *testing.T) {
		t.Parallel()

		j := &Job{Type: TypeWelcome, Priority: 42, Attempts: 99}
		j.normalize()
		assert.Equal(t, maxPriority, j.Priority)
		assert.Equal(t, maxAttempts, j.Attempts)

		j = &Job{Type: TypeWelcome, Priority: -1}
		j.normalize()
		assert.Equal(t, minPriority, j.Priority)
	})
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	base := 5 * time.Second
	assert.Equal(t, 5*time.Second, retryDelay(base, 1))
	assert.Equal(t, 10*time.Second, retryDelay(base, 2))
	assert.Equal(t, 20*time.Second, retryDelay(base, 3))
	assert.Equal(t, base, retryDelay(base, 0), "attempt clamps to 1")
}

func TestReadyScore(t *testing.T) {
	t.Parallel()

	now := time.Now()

	t.Run("higher priority pops first", func(t *testing.T) {
		t.Parallel()

		urgent := readyScore(9, now)
		bulk := readyScore(3, now)
		assert.Less(t, urgent, bulk)
	})

	t.Run("fifo within a priority", func(t *testing.T) {
		t.Parallel()

		first := readyScore(5, now)
		second := readyScore(5, now.Add(time.Millisecond))
		assert.Less(t, first, second)
	})

	t.Run("priority dominates age", func(t *testing.T) {
		t.Parallel()

		oldBulk := readyScore(3, now.Add(-24*time.Hour))
		freshUrgent := readyScore(9, now)
		assert.Less(t, freshUrgent, oldBulk)
	})
}

func TestBulkDelay(t *testing.T) {
	t.Parallel()

	stagger := time.Second
	gap := 100 * time.Millisecond

	t.Run("first recipient sends immediately", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, time.Duration(0), bulkDelay(0, 50, stagger, gap))
	})

	t.Run("recipients within a batch are spaced by the gap", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 100*time.Millisecond, bulkDelay(1, 50, stagger, gap))
		assert.Equal(t, 4900*time.Millisecond, bulkDelay(49, 50, stagger, gap))
	})

	t.Run("batch boundary resets the gap and adds the stagger", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, time.Second, bulkDelay(50, 50, stagger, gap))
		assert.Equal(t, 2*time.Second, bulkDelay(100, 50, stagger, gap))
	})

	t.Run("batch delays strictly increase across a campaign", func(t *testing.T) {
		t.Parallel()

		var prevBatchStart time.Duration
		for i := 0; i < 120; i += 50 {
			d := bulkDelay(i, 50, stagger, gap)
			if i > 0 {
				assert.Greater(t, d, prevBatchStart)
			}
			prevBatchStart = d
		}
	})
}

func TestBulkOptions(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cfg := newBulkConfig()
		assert.Equal(t, 50, cfg.batchSize)
		assert.Equal(t, time.Second, cfg.stagger)
		assert.Equal(t, time.Duration(0), cfg.delay)
		assert.Equal(t, 0, cfg.priority)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Parallel()

		cfg := newBulkConfig(
			WithBatchSize(10),
			WithStagger(5*time.Second),
			WithInitialDelay(time.Minute),
			WithBulkPriority(7),
		)
		assert.Equal(t, 10, cfg.batchSize)
		assert.Equal(t, 5*time.Second, cfg.stagger)
		assert.Equal(t, time.Minute, cfg.delay)
		assert.Equal(t, 7, cfg.priority)
	})

	t.Run("non-positive values keep the defaults", func(t *testing.T) {
		t.Parallel()

		cfg := newBulkConfig(WithBatchSize(0), WithStagger(-time.Second), WithInitialDelay(0))
		assert.Equal(t, 50, cfg.batchSize)
		assert.Equal(t, time.Second, cfg.stagger)
		assert.Equal(t, time.Duration(0), cfg.delay)
	})
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	assert.False(t, retryable(ErrInvalidPayload))
	assert.False(t, retryable(ErrUnknownType))
	assert.True(t, retryable(assert.AnError))
}

func TestPersonalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"https://example.com/unsub?u=sub@example.com",
		personalize("https://example.com/unsub?u={{email}}", "sub@example.com"))
	assert.Empty(t, personalize("", "sub@example.com"))
}
