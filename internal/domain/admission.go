package domain

import "time"

// CounterScope is the dimension a rate-limit counter tracks
type CounterScope string

const (
	ScopeUser   CounterScope = "user"
	ScopeGlobal CounterScope = "global"
)

// Admission is the rate limiter's decision for one submission attempt.
// Limit, Remaining and ResetAt always describe the user-scope counter,
// whichever scope caused a denial.
type Admission struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	// DeniedBy names the exhausted scope, set only when !Allowed
	DeniedBy CounterScope
	// Reason is a user-facing denial message, set only when !Allowed
	Reason string
}
