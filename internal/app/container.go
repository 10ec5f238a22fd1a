package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"

	"tekmax-dispatch/internal/config"
	"tekmax-dispatch/internal/event"
	"tekmax-dispatch/internal/http/debugserver"
	"tekmax-dispatch/internal/http/handlers"
	"tekmax-dispatch/internal/http/router"
	"tekmax-dispatch/internal/logx"
	"tekmax-dispatch/internal/provider"
	"tekmax-dispatch/internal/repository"
	"tekmax-dispatch/internal/scheduler"
	"tekmax-dispatch/internal/service/assign"
	"tekmax-dispatch/internal/service/dispatch"
	"tekmax-dispatch/internal/service/notify"
	"tekmax-dispatch/internal/transport/kafka"
)

// debugServer wraps the pprof/metrics listener so the container can hold
// two *http.Server values apart.
type debugServer struct {
	*http.Server
}

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	dbConnect func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error)
	logFatalf func(string, ...interface{})
}

// NewContainerBuilder returns a new dig container builder
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		dbConnect: connectDbWithRetry,
		logFatalf: log.Fatalf,
	}
}

// WithDBConnect sets the database connection function
func (b *ContainerBuilder) WithDBConnect(
	fn func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error),
) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds and returns the dispatcher container
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

// MustBuildWorker builds and returns the notification worker container
func (b *ContainerBuilder) MustBuildWorker(ctx context.Context) *dig.Container {
	container, err := b.buildWorker(ctx)
	if err != nil {
		b.logFatalf("failed to build worker container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerDb(container, b.dbConnect); err != nil {
		return nil, fmt.Errorf("DB: %w", err)
	}
	if err := registerService(container); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return container, nil
}

func (b *ContainerBuilder) buildWorker(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerWorker(container); err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}
	return container, nil
}

// MustBuildContainer builds and returns the dispatcher container
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

// MustBuildWorkerContainer builds and returns the notification worker container
func MustBuildWorkerContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuildWorker(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return fmt.Errorf("provide %T: %w", p, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context) error {
	return provideAll(container,
		func() context.Context { return ctx },
		func() *log.Logger { return log.Default() },
		NewLogger,
		config.Load,
		newMetrics,
	)
}

func registerDb(
	container *dig.Container,
	dbConnect func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error),
) error {
	providerDB := func(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
		return dbConnect(ctx, cfg.DB.DSN(), 10, time.Second)
	}
	return provideAll(container, providerDB)
}

func registerService(container *dig.Container) error {
	return provideAll(container,
		repository.NewDispatchRepo,
		repository.NewTaskRepo,
		repository.NewSettingsRepo,
		provider.NewGloriaFood,
		func() *provider.DoorDash { return provider.NewDoorDash() },
		func(dd *provider.DoorDash) []provider.CourierSource {
			return []provider.CourierSource{dd}
		},
		func(gf *provider.GloriaFood) *event.Normalizer {
			return event.NewNormalizer(gf)
		},
		assign.NewEngine,
		func(cfg *config.Config) (*kafka.Producer, error) {
			return kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		},
		func(
			repo *repository.DispatchRepo,
			settings *repository.SettingsRepo,
			eng *assign.Engine,
			producer *kafka.Producer,
			logger logx.Logger,
			cfg *config.Config,
		) *dispatch.Service {
			return dispatch.NewService(repo, settings, eng, producer, logger, dispatch.Config{
				TaskMaxAttempts: cfg.Dispatch.MaxAttempts,
			})
		},
		func(
			tasks *repository.TaskRepo,
			repo *repository.DispatchRepo,
			settings *repository.SettingsRepo,
			couriers []provider.CourierSource,
			events *event.Normalizer,
			svc *dispatch.Service,
			logger logx.Logger,
			m *Metrics,
			cfg *config.Config,
		) *scheduler.TaskRunner {
			return scheduler.NewTaskRunner(tasks, repo, settings, couriers, events, svc,
				logger, m.ProviderRetries, m.DeliveriesFailed,
				scheduler.TaskRunnerConfig{
					Interval:    cfg.Dispatch.TaskInterval,
					CallTimeout: cfg.Dispatch.CallTimeout,
					Backoff: scheduler.Backoff{
						Base: cfg.Dispatch.BackoffBase,
						Cap:  cfg.Dispatch.BackoffCap,
					},
				})
		},
		func(
			repo *repository.DispatchRepo,
			settings *repository.SettingsRepo,
			couriers []provider.CourierSource,
			events *event.Normalizer,
			svc *dispatch.Service,
			logger logx.Logger,
			m *Metrics,
			cfg *config.Config,
		) *scheduler.Poller {
			return scheduler.NewPoller(repo, settings, couriers, events, svc,
				logger, m.PollFailures,
				scheduler.PollerConfig{
					Interval:    cfg.Dispatch.PollInterval,
					CallTimeout: cfg.Dispatch.CallTimeout,
				})
		},
	)
}

func registerHTTP(container *dig.Container) error {
	serverProvider := func(cfg *config.Config, mux http.Handler) *http.Server {
		return &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	debugProvider := func(cfg *config.Config) debugServer {
		return debugServer{&http.Server{
			Addr: fmt.Sprintf(":%d", cfg.DebugPort),
			Handler: debugserver.Handler(debugserver.Config{
				User: cfg.Debug.User,
				Pass: cfg.Debug.Pass,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}}
	}
	return provideAll(container,
		handlers.New,
		func(
			logger logx.Logger,
			settings *repository.SettingsRepo,
			events *event.Normalizer,
			svc *dispatch.Service,
			m *Metrics,
		) *handlers.WebhookHandler {
			return handlers.NewWebhookHandler(logger, settings, events, svc, m.WebhookRejected)
		},
		func(logger logx.Logger, repo *repository.DispatchRepo) *handlers.DeliveryHandler {
			return handlers.NewDeliveryHandler(logger, repo)
		},
		newRateLimitClock,
		newRateLimiter,
		newRateLimitMiddleware,
		router.New,
		serverProvider,
		debugProvider,
	)
}

func registerWorker(container *dig.Container) error {
	return provideAll(container,
		func(logger logx.Logger) *notify.Service {
			return notify.NewService(logger, nil)
		},
		func(cfg *config.Config, svc *notify.Service, logger logx.Logger) (*kafka.Consumer, error) {
			return kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, svc.Handle, logger)
		},
	)
}
