package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process fixed-window limiter used when no shared store is
// available. Counters are scoped to the current process.
type Memory struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	counters map[string]*window
}

type window struct {
	count   int
	resetAt time.Time
}

// NewMemory creates an in-process limiter.
func NewMemory(cfg Config) *Memory {
	return &Memory{
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		counters: make(map[string]*window),
	}
}

// Allow increments the counter for identifier and reports whether the send
// may proceed.
func (m *Memory) Allow(_ context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	w, ok := m.counters[identifier]
	if !ok || !now.Before(w.resetAt) {
		m.counters[identifier] = &window{count: 1, resetAt: now.Add(m.cfg.Window)}
		m.sweep(now)
		return nil
	}

	if w.count >= m.cfg.Max {
		return fmt.Errorf("%w: %d/%d emails in %s", ErrExceeded, w.count, m.cfg.Max, m.cfg.Window)
	}
	w.count++
	return nil
}

// sweep drops expired windows. Called with the lock held, on the cheap path
// where a new window is created, to keep the map from growing unbounded.
func (m *Memory) sweep(now time.Time) {
	for id, w := range m.counters {
		if !now.Before(w.resetAt) {
			delete(m.counters, id)
		}
	}
}
