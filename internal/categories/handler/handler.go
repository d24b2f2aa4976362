package handler

import (
	"admin-backend/internal/categories/processor"
	"admin-backend/internal/dispatcher"
	"admin-backend/internal/store"
	"context"
	"encoding/json"
)

const (
	PatternCreate = "criar-categoria"
	PatternUpdate = "atualizar-categoria"
	PatternQuery  = "consultar-categorias"
)

type Handler struct {
	processor processor.CategoryProcessor
}

func New(processor processor.CategoryProcessor) Handler {
	return Handler{processor: processor}
}

// Register adds the category patterns to d.
func (h *Handler) Register(d *dispatcher.Dispatcher) {
	d.HandleCommand(PatternCreate, h.HandleCreateCategory)
	d.HandleCommand(PatternUpdate, h.HandleUpdateCategory)
	d.HandleQuery(PatternQuery, h.HandleQueryCategories)
}

// UpdateCategoryRequest carries the target id and the fields to change. The
// fields may also be sent flat next to the id.
type UpdateCategoryRequest struct {
	ID       string          `json:"id"`
	Category *store.Category `json:"category,omitempty"`
}

func (h *Handler) HandleCreateCategory(ctx context.Context, data json.RawMessage) error {
	category, err := dispatcher.Bind[store.Category](data)
	if err != nil {
		return err
	}
	_, err = h.processor.CreateCategory(ctx, category)
	return err
}

func (h *Handler) HandleUpdateCategory(ctx context.Context, data json.RawMessage) error {
	req, err := dispatcher.Bind[UpdateCategoryRequest](data)
	if err != nil {
		return err
	}

	patch := req.Category
	if patch == nil {
		flat, err := dispatcher.Bind[store.Category](data)
		if err != nil {
			return err
		}
		patch = &flat
	}
	return h.processor.UpdateCategory(ctx, req.ID, *patch)
}

// HandleQueryCategories returns one category when an id is given and all of
// them otherwise.
func (h *Handler) HandleQueryCategories(ctx context.Context, data json.RawMessage) (any, error) {
	id, err := dispatcher.BindID(data)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return h.processor.ListCategories(ctx)
	}

	category, err := h.processor.GetCategoryByID(ctx, id)
	if err != nil || category == nil {
		return nil, err
	}
	return category, nil
}
