package store

import "context"

// Gateway is the persistence contract for one collection.
//
// FindByID returns (nil, nil) when nothing matches. UpdateByID and DeleteByID
// are no-ops on an unknown id. Insert and UpdateByID fail with *ConflictError
// on a uniqueness violation; every other failure is a *StoreError.
type Gateway[T any] interface {
	Insert(ctx context.Context, entity T) (T, error)
	FindByID(ctx context.Context, id string) (*T, error)
	FindAll(ctx context.Context) ([]T, error)
	UpdateByID(ctx context.Context, id string, entity T) error
	DeleteByID(ctx context.Context, id string) error
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ Gateway[Category] = (*MemoryGateway[Category, *Category])(nil)
	_ Gateway[Player]   = (*MongoGateway[Player, *Player])(nil)
	_ Gateway[Category] = (*PostgresGateway[Category, *Category])(nil)
)
