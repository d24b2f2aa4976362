package processor

import (
	"admin-backend/internal/apierrors"
	"admin-backend/internal/observability"
	"admin-backend/internal/store"
	"context"

	"github.com/go-playground/validator/v10"
)

type CategoryProcessor struct {
	store    CategoryStore
	validate *validator.Validate
	logger   *observability.Logger
}

func New(store CategoryStore, logger *observability.Logger) CategoryProcessor {
	return CategoryProcessor{
		store:    store,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateCategory stores a new category. The name must be unique; a clash is
// returned as the store's duplicate-key error.
func (p *CategoryProcessor) CreateCategory(ctx context.Context, category store.Category) (store.Category, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "category_name", Value: category.Name})

	if err := p.validate.Struct(category); err != nil {
		p.logger.Error(ctx, "invalid category", err)
		return store.Category{}, apierrors.Invalid(err)
	}

	created, err := p.store.Insert(ctx, category)
	if err != nil {
		p.logger.Error(ctx, "failed to create category", err)
		return store.Category{}, apierrors.Wrap(err)
	}

	p.logger.Info(ctx, "category created successfully")
	return created, nil
}

// GetCategoryByID returns nil when no category has the id.
func (p *CategoryProcessor) GetCategoryByID(ctx context.Context, id string) (*store.Category, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "category_id", Value: id})

	category, err := p.store.FindByID(ctx, id)
	if err != nil {
		p.logger.Error(ctx, "failed to get category", err)
		return nil, apierrors.Wrap(err)
	}
	return category, nil
}

func (p *CategoryProcessor) ListCategories(ctx context.Context) ([]store.Category, error) {
	categories, err := p.store.FindAll(ctx)
	if err != nil {
		p.logger.Error(ctx, "failed to list categories", err)
		return nil, apierrors.Wrap(err)
	}
	return categories, nil
}

// UpdateCategory applies the non-empty fields of category. An unknown id is
// not an error.
func (p *CategoryProcessor) UpdateCategory(ctx context.Context, id string, category store.Category) error {
	ctx = observability.WithFields(ctx, observability.Field{Key: "category_id", Value: id})

	if err := p.store.UpdateByID(ctx, id, category); err != nil {
		p.logger.Error(ctx, "failed to update category", err)
		return apierrors.Wrap(err)
	}

	p.logger.Info(ctx, "category updated successfully")
	return nil
}
