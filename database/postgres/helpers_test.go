package postgres_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/agdev/storagegate/database/postgres"
)

var (
	adminPool     *pgxpool.Pool
	adminPoolOnce sync.Once
	adminPoolErr  error
	testCleanup   func()
)

func TestMain(m *testing.M) {
	code := m.Run()
	if testCleanup != nil {
		testCleanup()
	}
	os.Exit(code)
}

// getSharedTestServer starts one postgres container per test binary.
// Each test gets its own database inside it.
func getSharedTestServer(t *testing.T) *pgxpool.Pool {
	t.Helper()

	adminPoolOnce.Do(func() {
		ctx := context.Background()

		pgContainer, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("testdb"),
			pgcontainer.WithUsername("testuser"),
			pgcontainer.WithPassword("testpass"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			adminPoolErr = fmt.Errorf("start postgres container: %w", err)
			return
		}
		testCleanup = func() {
			if adminPool != nil {
				adminPool.Close()
			}
			_ = testcontainers.TerminateContainer(pgContainer)
		}

		connectionStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			adminPoolErr = fmt.Errorf("connection string: %w", err)
			return
		}

		adminPool, adminPoolErr = pgxpool.New(ctx, connectionStr)
	})

	require.NoError(t, adminPoolErr, "shared postgres server")
	return adminPool
}

// getRandomString generates a random string for unique test identifiers.
func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

// newTestDatabase creates an empty database and returns a pool connected to it.
func newTestDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()
	admin := getSharedTestServer(t)

	name := getRandomString(t)
	_, err := admin.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize())
	require.NoError(t, err, "create database")

	cfg := admin.Config().Copy()
	cfg.ConnConfig.Database = name

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err, "connect test database")

	t.Cleanup(func() {
		pool.Close()
		_, _ = admin.Exec(context.Background(), "DROP DATABASE IF EXISTS "+pgx.Identifier{name}.Sanitize()+" WITH (FORCE)")
	})

	return pool
}

// setupTestRepo returns a migrated catalog in a fresh database.
func setupTestRepo(t *testing.T) *postgres.Repo {
	t.Helper()
	pool := newTestDatabase(t)

	require.NoError(t, postgres.Migrate(context.Background(), pool), "migrate")
	return postgres.NewRepo(pool)
}
