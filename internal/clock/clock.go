package clock

import "time"

// Clock abstracts wall-clock reads so the admission window and the sweeper
// can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// Real is a Clock backed by the system clock.
type Real struct{}

// Now returns the current time in UTC.
func (Real) Now() time.Time { return time.Now().UTC() }

// Mock is a Clock that returns a settable fixed time.
type Mock struct {
	T time.Time
}

// Now returns the fixed time.
func (m *Mock) Now() time.Time { return m.T }

// Advance moves the mock clock forward.
func (m *Mock) Advance(d time.Duration) { m.T = m.T.Add(d) }
