package app

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"tekmax-dispatch/internal/metrics"
)

// Metrics bundles the service counters. One instance per process; the
// counters register on the default registry and show up on the debug
// server's /metrics endpoint.
type Metrics struct {
	WebhookRejected   prometheus.Counter
	RateLimitExceeded prometheus.Counter
	ProviderRetries   prometheus.Counter
	PollFailures      prometheus.Counter
	DeliveriesFailed  prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *Metrics
)

// newMetrics registers the counters once; rebuilding the container (tests)
// reuses the same instance instead of tripping duplicate registration.
func newMetrics() *Metrics {
	metricsOnce.Do(func() {
		m := &Metrics{
			WebhookRejected:   metrics.NewWebhookRejectedTotal(),
			RateLimitExceeded: metrics.NewRateLimitExceededTotal(),
			ProviderRetries:   metrics.NewProviderRetriesTotal(),
			PollFailures:      metrics.NewPollFailuresTotal(),
			DeliveriesFailed:  metrics.NewDeliveriesFailedTotal(),
		}
		prometheus.MustRegister(
			m.WebhookRejected,
			m.RateLimitExceeded,
			m.ProviderRetries,
			m.PollFailures,
			m.DeliveriesFailed,
		)
		metricsInst = m
	})
	return metricsInst
}
