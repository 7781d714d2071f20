package database

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestConnectAndMigrate(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pool, err := Connect(ctx, PoolConfig{DSN: dsn, MaxConns: 4, MinConns: 1})
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, Migrate(ctx, pool, logger))
	// re-running is a no-op
	require.NoError(t, Migrate(ctx, pool, logger))

	var constraint string
	err = pool.QueryRow(ctx,
		`SELECT conname FROM pg_constraint WHERE conrelid = 'links'::regclass AND contype = 'p'`,
	).Scan(&constraint)
	require.NoError(t, err)
	require.Equal(t, "links_pkey", constraint)

	_, err = pool.Exec(ctx,
		`INSERT INTO links (short_code, id, original_url, clicks) VALUES ('neg', gen_random_uuid(), 'https://example.com', -1)`)
	require.Error(t, err, "negative clicks must violate the check constraint")
}

func TestConnect_BadDSN(t *testing.T) {
	_, err := Connect(context.Background(), PoolConfig{DSN: "://not a dsn"})
	require.Error(t, err)
}
