package scheduler

import (
	"math/rand"
	"time"
)

// Backoff computes exponential retry delays.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns the delay before the given retry, counted from 1. The
// delay doubles per attempt up to the cap, minus up to 20% of jitter so
// that retries scheduled in one batch spread out.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base << (attempt - 1)
	if d <= 0 || d > b.Cap {
		d = b.Cap
	}
	if d <= 0 {
		return 0
	}
	return d - time.Duration(rand.Int63n(int64(d)/5+1))
}
