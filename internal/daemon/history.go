package daemon

import (
	"sync"

	"github.com/jmylchreest/callfocus/internal/model"
)

// History keeps the most recent focus transitions in memory.
type History struct {
	mu      sync.RWMutex
	limit   int
	entries []model.Transition
}

// NewHistory creates a History holding at most limit transitions.
// A limit of zero records nothing.
func NewHistory(limit int) *History {
	return &History{limit: max(limit, 0)}
}

// Record appends t, dropping the oldest entry when full. Its signature
// matches focus.ChangeFunc so it can subscribe to an arbiter directly.
func (h *History) Record(_ model.State, t model.Transition) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.limit == 0 {
		return
	}
	h.entries = append(h.entries, t)
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = append(h.entries[:0:0], h.entries[over:]...)
	}
}

// Transitions returns the recorded transitions, oldest first.
func (h *History) Transitions() []model.Transition {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]model.Transition, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of recorded transitions.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// SetLimit changes the capacity, trimming the oldest entries if needed.
func (h *History) SetLimit(limit int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.limit = max(limit, 0)
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = append(h.entries[:0:0], h.entries[over:]...)
	}
}
