package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewWebhookRejectedTotal returns a Prometheus counter for webhook requests
// rejected before reaching the dispatcher
func NewWebhookRejectedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_rejected_total",
		Help: "Total number of webhook requests rejected by validation or authentication",
	})
}

// NewProviderRetriesTotal returns a Prometheus counter for provider call retries
func NewProviderRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "provider_retries_total",
		Help: "Total number of retried courier provider calls",
	})
}

// NewPollFailuresTotal returns a Prometheus counter for failed status polls
func NewPollFailuresTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "poll_failures_total",
		Help: "Total number of failed delivery status polls",
	})
}

// NewDeliveriesFailedTotal returns a Prometheus counter for deliveries driven
// to the failed state
func NewDeliveriesFailedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deliveries_failed_total",
		Help: "Total number of deliveries that ended in the failed state",
	})
}

// NewRateLimitExceededTotal returns a Prometheus counter for throttled
// webhook requests
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of requests rejected by the rate limiter",
	})
}
