package util

import "time"

// Clock returns the current time; swapped out in tests.
type Clock func() time.Time

// NowUTC exposes time.Now for deterministic testing.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// OrNow falls back to NowUTC when c is nil.
func (c Clock) OrNow() time.Time {
	if c == nil {
		return NowUTC()
	}
	return c()
}
