package store

import (
	"context"
	"fmt"

	"admin-backend/internal/observability"

	_ "github.com/jackc/pgx/v5/stdlib" // Import the pgx stdlib for sqlx
	"github.com/jmoiron/sqlx"
)

// Store wraps the PostgreSQL connection pool used by PostgresGateway.
type Store struct {
	db     *sqlx.DB
	logger *observability.Logger
}

func New(connectionString string, logger *observability.Logger) (Store, error) {
	db, err := sqlx.Open("pgx", connectionString)
	if err != nil {
		return Store{}, fmt.Errorf("failed to open database: %w", err)
	}
	return Store{db: db, logger: logger}, nil
}

// DB returns the underlying database connection
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

const sqlCreateCollection = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id UUID PRIMARY KEY,
    document JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)
`

const sqlCreateUniqueIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_name_key ON %[1]s ((document->>'name'))
`

// EnsureSchema creates one document table per collection.
func (s *Store) EnsureSchema(ctx context.Context, collections ...string) error {
	for _, name := range collections {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(sqlCreateCollection, name)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(sqlCreateUniqueIndex, name)); err != nil {
			return fmt.Errorf("failed to create unique index on %s: %w", name, err)
		}
		s.logger.Info(ctx, fmt.Sprintf("ensured document table %s", name))
	}
	return nil
}
