package config

import "time"

const (
	defaultPort      = 8080
	defaultDebugPort = 6060
)

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "dispatch",
	Pass: "dispatch",
	Name: "dispatch_db",
}

// Polling keeps the 30-second cadence the legacy poller used; tasks run
// every minute.
var defaultDispatch = Dispatch{
	PollInterval: 30 * time.Second,
	TaskInterval: time.Minute,
	CallTimeout:  10 * time.Second,
	BackoffBase:  30 * time.Second,
	BackoffCap:   10 * time.Minute,
	MaxAttempts:  5,
}

var defaultKafka = Kafka{
	Topic:   "delivery-status-events",
	GroupID: "dispatch-notifier",
}

// DefaultPort returns the default HTTP port.
func DefaultPort() int { return defaultPort }

// DefaultDebugPort returns the default pprof/metrics port.
func DefaultDebugPort() int { return defaultDebugPort }

// DefaultDB returns the default database settings.
func DefaultDB() DB { return defaultDB }

// DefaultDispatch returns the default dispatch settings.
func DefaultDispatch() Dispatch { return defaultDispatch }

var defaultRateLimit = RateLimit{
	Enabled:    true,
	Rate:       10,
	Burst:      30,
	TTL:        10 * time.Minute,
	MaxBuckets: 10000,
}

// DefaultKafka returns the default Kafka settings.
func DefaultKafka() Kafka { return defaultKafka }

// DefaultRateLimit returns the default webhook rate limit settings.
func DefaultRateLimit() RateLimit { return defaultRateLimit }
