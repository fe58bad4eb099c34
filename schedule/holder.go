package schedule

import (
	"sync"
	"time"
)

// Holder shares a schedule between the refresh task and the consumers.
// A refresh swaps in the new slice atomically, so readers always see either
// the full previous schedule or the full new one, never a partial update.
type Holder struct {
	mu          sync.RWMutex
	entries     []Entry
	refreshedAt time.Time
}

// Replace installs a freshly built schedule.
func (h *Holder) Replace(entries []Entry, refreshedAt time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = entries
	h.refreshedAt = refreshedAt
}

// Snapshot returns the current schedule. The returned slice must not be
// modified by the caller.
func (h *Holder) Snapshot() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entries
}

// RefreshedAt returns the time of the last successful refresh, zero if the
// schedule has never been built.
func (h *Holder) RefreshedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.refreshedAt
}
