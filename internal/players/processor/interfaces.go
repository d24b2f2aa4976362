package processor

//go:generate go run go.uber.org/mock/mockgen@latest -source=interfaces.go -destination=mocks_test.go -package=processor

import (
	"admin-backend/internal/store"
	"context"
)

// PlayerStore defines the persistence operations required by PlayerProcessor
type PlayerStore interface {
	Insert(ctx context.Context, player store.Player) (store.Player, error)
	FindByID(ctx context.Context, id string) (*store.Player, error)
	FindAll(ctx context.Context) ([]store.Player, error)
	UpdateByID(ctx context.Context, id string, player store.Player) error
	DeleteByID(ctx context.Context, id string) error
}
