// Package debounce implements the per-identity cooldown gate that stops a
// caller from triggering actions in rapid succession.
package debounce

import (
	"sync"
	"time"

	"github.com/FriedCerebrum/WakeOnLanBot/internal/auth"
)

// DefaultWindow is the cooldown applied when none is configured.
const DefaultWindow = 2 * time.Second

// Table records the last accepted action time per identity.
//
// An identity holds at most one timestamp: the most recent accepted one.
// Entries are never removed; the table is bounded by the allow list.
type Table struct {
	mu     sync.Mutex
	last   map[auth.Identity]time.Time
	window time.Duration
	now    func() time.Time
}

// Option configures a Table.
type Option func(*Table)

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(t *Table) {
		t.now = now
	}
}

// New creates a Table with the given cooldown window. A non-positive window
// falls back to DefaultWindow.
func New(window time.Duration, opts ...Option) *Table {
	if window <= 0 {
		window = DefaultWindow
	}
	t := &Table{
		last:   make(map[auth.Identity]time.Time),
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Window returns the configured cooldown.
func (t *Table) Window() time.Duration {
	return t.window
}

// TryAccept records now for id and returns true when id has no previous
// accepted action or the previous one is at least one window old.
// Otherwise it returns false and leaves the table untouched.
func (t *Table) TryAccept(id auth.Identity, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.last[id]; ok && now.Sub(last) < t.window {
		return false
	}
	t.last[id] = now
	return true
}

// Allow is TryAccept evaluated at the table's clock.
func (t *Table) Allow(id auth.Identity) bool {
	return t.TryAccept(id, t.now())
}

// Last returns the last accepted time for id.
func (t *Table) Last(id auth.Identity) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.last[id]
	return last, ok
}
