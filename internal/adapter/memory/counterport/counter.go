// package counterport contains the in-process rate-limit counter store
package counterport

import (
	"context"
	"sync"
	"time"

	"gitlab.com/omj-2025.net/internal/core/ports/secondary"
)

// globalKey is the shared counter across all identities
const globalKey = "global"

type counter struct {
	count   int
	resetAt time.Time
}

// MemoryCounters implements AdmissionCounters with a mutex-guarded
// map. Windows are fixed-origin: a counter's window starts at its
// first admission and resets window-length later. The whole paired
// check-and-increment runs under one lock so two concurrent requests
// can never both pass a counter with a single slot of headroom.
type MemoryCounters struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

var _ secondary.AdmissionCounters = (*MemoryCounters)(nil)

// NewMemoryCounters creates an empty counter store
func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

// Admit implements the atomic paired check-and-increment
func (m *MemoryCounters) Admit(ctx context.Context, userKey string, userLimit, globalLimit int, window time.Duration, bypass bool) (secondary.CounterDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	user := m.current(userKey, now, window)
	global := m.current(globalKey, now, window)

	if !bypass {
		if user.count >= userLimit {
			return secondary.CounterDecision{
				Allowed:        false,
				ExhaustedScope: "user",
				Count:          user.count,
				ResetAt:        user.resetAt,
			}, nil
		}
		if global.count >= globalLimit {
			// headroom data still describes the user counter
			return secondary.CounterDecision{
				Allowed:        false,
				ExhaustedScope: "global",
				Count:          user.count,
				ResetAt:        user.resetAt,
			}, nil
		}
	}

	user.count++
	global.count++

	return secondary.CounterDecision{
		Allowed: true,
		Count:   user.count,
		ResetAt: user.resetAt,
	}, nil
}

// current returns the live counter for a key, rolling the window over
// when its reset instant has passed
func (m *MemoryCounters) current(key string, now time.Time, window time.Duration) *counter {
	c, ok := m.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = &counter{count: 0, resetAt: now.Add(window)}
		m.counters[key] = c
	}
	return c
}
