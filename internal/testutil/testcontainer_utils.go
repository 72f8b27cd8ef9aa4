package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// StartPostgresContainer starts a throwaway PostgreSQL and returns a pgx DSN
// for it. The test is skipped when no container provider is available.
func StartPostgresContainer(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	// Give generous timeout in CI environments
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	postgresC, err := testcontainers.Run(
		ctx, "postgres:16",
		testcontainers.WithExposedPorts("5432/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("ready to accept connections"),
				wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
					return fmt.Sprintf("postgres://flowcanvas:flowcanvas@%s:%s/flowcanvas_test?sslmode=disable", host, port.Port())
				}).WithQuery("SELECT 1"),
			).WithDeadline(2*time.Minute),
		),
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_USER":     "flowcanvas",
			"POSTGRES_PASSWORD": "flowcanvas",
			"POSTGRES_DB":       "flowcanvas_test",
		}),
	)
	testcontainers.CleanupContainer(t, postgresC)
	require.NoError(t, err)

	endpoint, err := postgresC.Endpoint(ctx, "")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://flowcanvas:flowcanvas@%s/flowcanvas_test?sslmode=disable", endpoint)
}

// StartMongoContainer starts a throwaway MongoDB and returns its URI. The
// test is skipped when no container provider is available.
func StartMongoContainer(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	mongoC, err := testcontainers.Run(
		ctx, "mongo:7",
		testcontainers.WithExposedPorts("27017/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("27017/tcp"),
			wait.ForLog("mongod startup complete"),
		),
	)
	testcontainers.CleanupContainer(t, mongoC)
	require.NoError(t, err)

	endpoint, err := mongoC.Endpoint(ctx, "")
	require.NoError(t, err)

	return fmt.Sprintf("mongodb://%s", endpoint)
}
