//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var tcPool *pgxpool.Pool

var tcDSN string

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_pass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("failed to start postgres testcontainer: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		if termErr := pgContainer.Terminate(ctx); termErr != nil {
			log.Printf("failed to terminate container after conn string error: %v", termErr)
		}
		log.Fatalf("failed to get connection string from container: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		if termErr := pgContainer.Terminate(ctx); termErr != nil {
			log.Printf("failed to terminate container after pool create error: %v", termErr)
		}
		log.Fatalf("failed to create pgx pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		if termErr := pgContainer.Terminate(ctx); termErr != nil {
			log.Printf("failed to terminate container after ping error: %v", termErr)
		}
		log.Fatalf("failed to ping postgres in testcontainer: %v", err)
	}

	tcPool = pool
	tcDSN = connStr

	if err := createTables(ctx, tcPool); err != nil {
		pool.Close()
		if termErr := pgContainer.Terminate(ctx); termErr != nil {
			log.Printf("failed to terminate container after createTables error: %v", termErr)
		}
		log.Fatalf("failed to create test tables: %v", err)
	}

	code := m.Run()

	pool.Close()
	if err := pgContainer.Terminate(ctx); err != nil {
		log.Printf("failed to terminate postgres container: %v", err)
	}

	os.Exit(code)
}

func createTables(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []struct {
		name string
		ddl  string
	}{
		{"orders", `
			CREATE TABLE IF NOT EXISTS orders (
				id            UUID PRIMARY KEY,
				restaurant_id UUID NOT NULL,
				provider      TEXT NOT NULL,
				external_id   TEXT NOT NULL,
				status        TEXT NOT NULL,
				items         JSONB NOT NULL DEFAULT '[]',
				total         NUMERIC(12,2) NOT NULL DEFAULT 0,
				currency      TEXT NOT NULL DEFAULT 'USD',
				created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
				UNIQUE (provider, external_id)
			);
		`},
		{"deliveries", `
			CREATE TABLE IF NOT EXISTS deliveries (
				id             UUID PRIMARY KEY,
				order_id       UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
				restaurant_id  UUID NOT NULL,
				provider       TEXT NOT NULL DEFAULT '',
				external_id    TEXT NOT NULL DEFAULT '',
				status         TEXT NOT NULL,
				rider_id       UUID,
				pickup_lat     DOUBLE PRECISION NOT NULL DEFAULT 0,
				pickup_lng     DOUBLE PRECISION NOT NULL DEFAULT 0,
				dropoff_lat    DOUBLE PRECISION NOT NULL DEFAULT 0,
				dropoff_lng    DOUBLE PRECISION NOT NULL DEFAULT 0,
				requested_at   TIMESTAMPTZ,
				accepted_at    TIMESTAMPTZ,
				picked_up_at   TIMESTAMPTZ,
				delivered_at   TIMESTAMPTZ,
				last_polled_at TIMESTAMPTZ,
				poll_failures  INT NOT NULL DEFAULT 0,
				failure_reason TEXT NOT NULL DEFAULT ''
			);
		`},
		{"riders", `
			CREATE TABLE IF NOT EXISTS riders (
				id               UUID PRIMARY KEY,
				restaurant_id    UUID NOT NULL,
				name             TEXT NOT NULL,
				available        BOOLEAN NOT NULL DEFAULT true,
				load             INT NOT NULL DEFAULT 0,
				max_concurrent   INT NOT NULL DEFAULT 1,
				lat              DOUBLE PRECISION,
				lng              DOUBLE PRECISION,
				last_assigned_at TIMESTAMPTZ
			);
		`},
		{"scheduled_tasks", `
			CREATE TABLE IF NOT EXISTS scheduled_tasks (
				id           UUID PRIMARY KEY,
				kind         TEXT NOT NULL,
				delivery_id  UUID NOT NULL,
				run_at       TIMESTAMPTZ NOT NULL,
				attempts     INT NOT NULL DEFAULT 0,
				max_attempts INT NOT NULL DEFAULT 5,
				last_error   TEXT,
				UNIQUE (delivery_id, kind)
			);
		`},
		{"restaurant_settings", `
			CREATE TABLE IF NOT EXISTS restaurant_settings (
				restaurant_id           UUID PRIMARY KEY,
				lat                     DOUBLE PRECISION NOT NULL DEFAULT 0,
				lng                     DOUBLE PRECISION NOT NULL DEFAULT 0,
				auto_assign_riders      BOOLEAN NOT NULL DEFAULT true,
				max_delivery_radius     DOUBLE PRECISION NOT NULL DEFAULT 0,
				distance_unit           TEXT NOT NULL DEFAULT 'km',
				delivery_fee            NUMERIC(12,2) NOT NULL DEFAULT 0,
				minimum_order_amount    NUMERIC(12,2) NOT NULL DEFAULT 0,
				currency                TEXT NOT NULL DEFAULT 'USD',
				gloria_food_api_key     TEXT NOT NULL DEFAULT '',
				gloria_food_api_secret  TEXT NOT NULL DEFAULT '',
				doordash_developer_id   TEXT NOT NULL DEFAULT '',
				doordash_key_id         TEXT NOT NULL DEFAULT '',
				doordash_signing_secret TEXT NOT NULL DEFAULT '',
				doordash_merchant_id    TEXT NOT NULL DEFAULT '',
				doordash_sandbox        BOOLEAN NOT NULL DEFAULT false
			);
		`},
		{"webhook_configs", `
			CREATE TABLE IF NOT EXISTS webhook_configs (
				api_key       TEXT PRIMARY KEY,
				restaurant_id UUID NOT NULL,
				platform      TEXT NOT NULL,
				api_secret    TEXT NOT NULL DEFAULT '',
				is_active     BOOLEAN NOT NULL DEFAULT true
			);
		`},
	}

	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s.ddl); err != nil {
			return fmt.Errorf("create %s table: %w", s.name, err)
		}
	}
	return nil
}
