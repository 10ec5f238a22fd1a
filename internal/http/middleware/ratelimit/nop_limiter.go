package ratelimit

// NopLimiter admits every request. Used when throttling is disabled.
type NopLimiter struct{}

// Allow always admits.
func (NopLimiter) Allow(string) bool { return true }

// NewNopLimiter returns a NopLimiter as a Limiter.
func NewNopLimiter() Limiter { return NopLimiter{} }
