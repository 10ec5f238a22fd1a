package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// DB stores PostgreSQL connection settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN builds a PostgreSQL connection string.
func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Pass, d.Host, d.Port, d.Name)
}

// Dispatch stores poller and scheduled-task runner settings.
type Dispatch struct {
	PollInterval time.Duration
	TaskInterval time.Duration
	CallTimeout  time.Duration
	BackoffBase  time.Duration
	BackoffCap   time.Duration
	MaxAttempts  int
}

// Kafka stores delivery status event stream settings. An empty broker list
// disables publishing.
type Kafka struct {
	Brokers []string
	Topic   string
	GroupID string
}

// RateLimit stores webhook throttling settings.
type RateLimit struct {
	Enabled    bool
	Rate       float64 // tokens per second per caller
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// Debug stores debug server basic auth credentials. Empty credentials
// restrict the debug surface to loopback callers.
type Debug struct {
	User string
	Pass string
}

// Config stores dispatcher service settings.
type Config struct {
	Port      int
	DebugPort int
	DB        DB
	Dispatch  Dispatch
	Kafka     Kafka
	RateLimit RateLimit
	Debug     Debug
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := &Config{
		Port:      DefaultPort(),
		DebugPort: DefaultDebugPort(),
		DB:        DefaultDB(),
		Dispatch:  DefaultDispatch(),
		Kafka:     DefaultKafka(),
		RateLimit: DefaultRateLimit(),
	}

	cfg.Port = envInt("PORT", cfg.Port)
	cfg.DebugPort = envInt("DEBUG_PORT", cfg.DebugPort)

	cfg.DB.Host = envStr("POSTGRES_HOST", cfg.DB.Host)
	cfg.DB.Port = envStr("POSTGRES_PORT", cfg.DB.Port)
	cfg.DB.User = envStr("POSTGRES_USER", cfg.DB.User)
	cfg.DB.Pass = envStr("POSTGRES_PASSWORD", cfg.DB.Pass)
	cfg.DB.Name = envStr("POSTGRES_DB", cfg.DB.Name)

	cfg.Dispatch.PollInterval = envDuration("DISPATCH_POLL_INTERVAL", cfg.Dispatch.PollInterval)
	cfg.Dispatch.TaskInterval = envDuration("DISPATCH_TASK_INTERVAL", cfg.Dispatch.TaskInterval)
	cfg.Dispatch.CallTimeout = envDuration("DISPATCH_CALL_TIMEOUT", cfg.Dispatch.CallTimeout)
	cfg.Dispatch.BackoffBase = envDuration("DISPATCH_BACKOFF_BASE", cfg.Dispatch.BackoffBase)
	cfg.Dispatch.BackoffCap = envDuration("DISPATCH_BACKOFF_CAP", cfg.Dispatch.BackoffCap)
	cfg.Dispatch.MaxAttempts = envInt("DISPATCH_MAX_ATTEMPTS", cfg.Dispatch.MaxAttempts)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	cfg.Kafka.Topic = envStr("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.GroupID = envStr("KAFKA_GROUP_ID", cfg.Kafka.GroupID)

	cfg.RateLimit.Enabled = envBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.Rate = envFloat("RATE_LIMIT_RATE", cfg.RateLimit.Rate)
	cfg.RateLimit.Burst = envInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst)
	cfg.RateLimit.TTL = envDuration("RATE_LIMIT_TTL", cfg.RateLimit.TTL)
	cfg.RateLimit.MaxBuckets = envInt("RATE_LIMIT_MAX_BUCKETS", cfg.RateLimit.MaxBuckets)

	cfg.Debug.User = envStr("DEBUG_USER", cfg.Debug.User)
	cfg.Debug.Pass = envStr("DEBUG_PASS", cfg.Debug.Pass)

	// fresh flag set per call; unknown flags are tolerated so Load works
	// inside test binaries
	fs := pflag.NewFlagSet("dispatcher", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	fs.IntVar(&cfg.DebugPort, "debug-port", cfg.DebugPort, "pprof/metrics port")
	fs.DurationVar(&cfg.Dispatch.PollInterval, "poll-interval", cfg.Dispatch.PollInterval, "delivery status polling interval")
	fs.DurationVar(&cfg.Dispatch.TaskInterval, "task-interval", cfg.Dispatch.TaskInterval, "scheduled task processing interval")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.DebugPort < 0 || c.DebugPort > 65535 {
		return fmt.Errorf("invalid debug port: %d", c.DebugPort)
	}
	if c.Dispatch.PollInterval <= 0 {
		return fmt.Errorf("invalid poll interval: %s", c.Dispatch.PollInterval)
	}
	if c.Dispatch.TaskInterval <= 0 {
		return fmt.Errorf("invalid task interval: %s", c.Dispatch.TaskInterval)
	}
	if c.Dispatch.MaxAttempts <= 0 {
		return fmt.Errorf("invalid max attempts: %d", c.Dispatch.MaxAttempts)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
