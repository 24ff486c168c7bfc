package clock

import "time"

// Clock supplies the current time. Due-date and idempotency logic depend on
// "today", so everything that computes it takes a Clock instead of calling
// time.Now directly.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the wall clock.
func System() Clock { return systemClock{} }

// Fixed is a settable clock for tests.
type Fixed struct {
	Current time.Time
}

// NewFixed returns a clock pinned to t.
func NewFixed(t time.Time) *Fixed { return &Fixed{Current: t} }

func (f *Fixed) Now() time.Time { return f.Current }

// Advance moves the clock forward.
func (f *Fixed) Advance(d time.Duration) { f.Current = f.Current.Add(d) }
