//go:build integration

package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// setupPostgresContainer starts PostgreSQL in a container and returns a migrated store
func setupPostgresContainer(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	// Check if Docker/Podman is available
	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	provider.Close()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("geoguard_test"),
		postgres.WithUsername("geoguard"),
		postgres.WithPassword("geoguard_test_password"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := testcontainers.TerminateContainer(container, testcontainers.StopContext(cleanupCtx)); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := OpenPostgres(PostgresConfig{URL: connStr, Timeout: 30 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewPostgresStore(db)
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestPostgresStore_Integration(t *testing.T) {
	store := setupPostgresContainer(t)

	runStoreContract(t, func(t *testing.T) Store {
		_, err := store.DB().Exec(`TRUNCATE documents`)
		require.NoError(t, err)
		return NewPostgresStore(store.DB())
	})
}
