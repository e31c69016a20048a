// Package clock abstracts wall time so the risk manager's daily reset and the
// monitor's polling cadence can be tested without sleeping.
package clock

import "time"

// Clock provides the current time
type Clock interface {
	Now() time.Time
}

// Real is the wall-clock implementation
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Fake is a manually advanced clock for tests
type Fake struct {
	current time.Time
}

// NewFake creates a fake clock starting at t
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

func (f *Fake) Now() time.Time { return f.current }

// Advance moves the fake clock forward by d
func (f *Fake) Advance(d time.Duration) { f.current = f.current.Add(d) }

// Set jumps the fake clock to t
func (f *Fake) Set(t time.Time) { f.current = t }
