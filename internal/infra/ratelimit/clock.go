package ratelimit

import "time"

// Clock is the time source used by buckets.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock. Readings carry Go's monotonic component,
// so elapsed-time math is unaffected by wall clock adjustments.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }
