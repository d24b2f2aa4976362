package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"admin-backend/internal/observability"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// setupMongo connects to the database named by TEST_MONGODB_URL. The test is
// skipped when the variable is unset so the suite runs without docker.
func setupMongo(t *testing.T) *MongoDB {
	t.Helper()

	url := os.Getenv("TEST_MONGODB_URL")
	if url == "" {
		t.Skip("TEST_MONGODB_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbName := "admin_backend_test_" + uuid.New().String()[:8]
	db, err := ConnectMongo(ctx, url, dbName, observability.NewLogger())
	require.NoError(t, err, "failed to connect to test mongodb")

	t.Cleanup(func() {
		_ = db.Database().Drop(context.Background())
		_ = db.Close(context.Background())
	})
	return db
}

func resetMongo(t *testing.T, db *MongoDB) {
	t.Helper()
	ctx := context.Background()
	for _, name := range []string{CollectionCategories, CollectionPlayers} {
		require.NoError(t, db.Database().Collection(name).Drop(ctx))
	}
	require.NoError(t, db.EnsureIndexes(ctx, CollectionCategories, CollectionPlayers))
}

// setupPostgres mirrors setupMongo for the JSONB backend, configured through
// the TEST_DB_* variables.
func setupPostgres(t *testing.T) *Store {
	t.Helper()

	dbHost := os.Getenv("TEST_DB_HOST")
	if dbHost == "" {
		t.Skip("TEST_DB_HOST not set")
	}
	dbPort := getEnvWithDefault("TEST_DB_PORT", "5432")
	dbUser := getEnvWithDefault("TEST_DB_USER", "admin_user")
	dbPass := getEnvWithDefault("TEST_DB_PASSWORD", "admin_password")
	dbName := getEnvWithDefault("TEST_DB_NAME", "admin_db")

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUser, dbPass, dbHost, dbPort, dbName)

	s, err := New(connStr, observability.NewLogger())
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()), "failed to ping test database")

	t.Cleanup(func() { _ = s.Close() })
	return &s
}

func resetPostgres(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	for _, name := range []string{CollectionCategories, CollectionPlayers} {
		_, err := s.DB().ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", name))
		require.NoError(t, err)
	}
	require.NoError(t, s.EnsureSchema(ctx, CollectionCategories, CollectionPlayers))
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
