package ratelimit

import "time"

// Clock abstracts time so limiter tests can steer refills.
type Clock interface {
	Now() time.Time
}

// RealClock reads wall time.
type RealClock struct{}

// Now returns the current wall time.
func (RealClock) Now() time.Time { return time.Now() }
