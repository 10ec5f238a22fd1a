package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"

	"tekmax-dispatch/internal/scheduler"
	"tekmax-dispatch/internal/transport/kafka"
)

// MustRun starts the dispatcher using the provided DI container
func MustRun(container *dig.Container) {
	if err := run(container); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			log.Println("shutdown requested, exiting")
			return
		case errors.Is(err, context.DeadlineExceeded):
			log.Println("startup aborted: startup timeout exceeded")
			return
		default:
			log.Fatalf("run error: %v", err)
		}
	}
}

type runIn struct {
	dig.In

	Ctx      context.Context
	Logger   *log.Logger
	Server   *http.Server
	Debug    debugServer
	Pool     *pgxpool.Pool
	Poller   *scheduler.Poller
	Tasks    *scheduler.TaskRunner
	Producer *kafka.Producer
}

func run(container *dig.Container) error {
	return container.Invoke(func(in runIn) error {
		startServer(in.Server, in.Logger, "dispatcher")
		startServer(in.Debug.Server, in.Logger, "debug")

		workerCtx, stopWorkers := context.WithCancel(context.Background())
		go in.Poller.Run(workerCtx)
		go in.Tasks.Run(workerCtx)

		waitForShutdown(in.Ctx, in.Logger)
		stopWorkers()
		in.Poller.Wait()
		gracefulShutdown(in.Server, in.Logger, 15*time.Second)
		gracefulShutdown(in.Debug.Server, in.Logger, 15*time.Second)
		closeResources(in, in.Logger)
		return nil
	})
}

func startServer(server *http.Server, logger *log.Logger, name string) {
	go func() {
		logger.Printf("%s listening on %s", name, server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("%s listen error: %v", name, err)
		}
	}()
}

func waitForShutdown(ctx context.Context, logger *log.Logger) {
	<-ctx.Done()
	logger.Println("shutting down dispatcher...")
}

func gracefulShutdown(srv *http.Server, logger *log.Logger, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Printf("graceful shutdown error: %v", err)
	}
}

func closeResources(in runIn, logger *log.Logger) {
	if err := in.Producer.Close(); err != nil {
		logger.Printf("producer close error: %v", err)
	}
	if err := in.Server.Close(); err != nil {
		logger.Printf("server close error: %v", err)
	}
	if err := in.Debug.Close(); err != nil {
		logger.Printf("debug server close error: %v", err)
	}
	in.Pool.Close()
}
