package clock

import "time"

// Clock allows injecting time into the reservation core.  Hold expiry
// is evaluated lazily against a caller-supplied instant, so every
// consumer of "now" must go through this interface to stay testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem returns a clock backed by time.Now.  All timestamps are UTC.
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

type fixedClock struct {
	now time.Time
}

// NewFixed returns a clock that always reports the same instant.
// Useful for tests that need deterministic expiry arithmetic.
func NewFixed(t time.Time) Clock {
	return fixedClock{now: t.UTC()}
}

func (f fixedClock) Now() time.Time {
	return f.now
}
