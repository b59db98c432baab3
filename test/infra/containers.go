// Package infra provisions the throwaway Postgres the integration tests run
// against.
package infra

import (
	"context"
	"os"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// StartPostgres returns a DSN for a disposable Postgres 16 together with a
// cleanup function. Setting TEST_PG_DSN skips the container and reuses that
// database instead.
func StartPostgres(ctx context.Context) (string, func(context.Context) error, error) {
	if dsn := os.Getenv("TEST_PG_DSN"); dsn != "" {
		return dsn, func(context.Context) error { return nil }, nil
	}

	pgC, err := postgres.Run(ctx,
		"postgres:16",
		postgres.WithDatabase("missionflow_test"),
		postgres.WithUsername("missionflow"),
		postgres.WithPassword("missionflow"),
	)
	if err != nil {
		return "", nil, err
	}

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgC.Terminate(ctx)
		return "", nil, err
	}
	return dsn, func(ctx context.Context) error { return pgC.Terminate(ctx) }, nil
}
