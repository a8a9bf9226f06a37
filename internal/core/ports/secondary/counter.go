package secondary

import (
	"context"
	"time"
)

// CounterDecision is the outcome of one paired check-and-increment.
// Count/ResetAt describe the user-scope counter after the call.
type CounterDecision struct {
	Allowed bool
	// ExhaustedScope is "user" or "global", set only when !Allowed
	ExhaustedScope string
	Count          int
	ResetAt        time.Time
}

// AdmissionCounters holds the rate limiter's windowed counters. Admit
// evaluates the user-scope and global counters in that order and, when
// both have headroom (or bypass is set), increments both as one atomic
// step. A counter whose reset instant has passed starts a fresh window
// before the check. Bypassed calls are still counted.
type AdmissionCounters interface {
	Admit(ctx context.Context, userKey string, userLimit, globalLimit int, window time.Duration, bypass bool) (CounterDecision, error)
}
