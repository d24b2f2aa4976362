package processor

//go:generate go run go.uber.org/mock/mockgen@latest -source=interfaces.go -destination=mocks_test.go -package=processor

import (
	"admin-backend/internal/store"
	"context"
)

// CategoryStore defines the persistence operations required by CategoryProcessor
type CategoryStore interface {
	Insert(ctx context.Context, category store.Category) (store.Category, error)
	FindByID(ctx context.Context, id string) (*store.Category, error)
	FindAll(ctx context.Context) ([]store.Category, error)
	UpdateByID(ctx context.Context, id string, category store.Category) error
}
