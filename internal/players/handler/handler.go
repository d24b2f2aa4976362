package handler

import (
	"admin-backend/internal/dispatcher"
	"admin-backend/internal/players/processor"
	"admin-backend/internal/store"
	"context"
	"encoding/json"
)

const (
	PatternCreate = "criar-jogador"
	PatternUpdate = "atualizar-jogador"
	PatternDelete = "deletar-jogador"
	PatternQuery  = "consultar-jogadores"
)

type Handler struct {
	processor processor.PlayerProcessor
}

func New(processor processor.PlayerProcessor) Handler {
	return Handler{processor: processor}
}

// Register adds the player patterns to d.
func (h *Handler) Register(d *dispatcher.Dispatcher) {
	d.HandleCommand(PatternCreate, h.HandleCreatePlayer)
	d.HandleCommand(PatternUpdate, h.HandleUpdatePlayer)
	d.HandleCommand(PatternDelete, h.HandleDeletePlayer)
	d.HandleQuery(PatternQuery, h.HandleQueryPlayers)
}

// UpdatePlayerRequest carries the target id and the fields to change. The
// fields may also be sent flat next to the id.
type UpdatePlayerRequest struct {
	ID     string        `json:"id"`
	Player *store.Player `json:"player,omitempty"`
}

func (h *Handler) HandleCreatePlayer(ctx context.Context, data json.RawMessage) error {
	player, err := dispatcher.Bind[store.Player](data)
	if err != nil {
		return err
	}
	_, err = h.processor.CreatePlayer(ctx, player)
	return err
}

func (h *Handler) HandleUpdatePlayer(ctx context.Context, data json.RawMessage) error {
	req, err := dispatcher.Bind[UpdatePlayerRequest](data)
	if err != nil {
		return err
	}

	patch := req.Player
	if patch == nil {
		flat, err := dispatcher.Bind[store.Player](data)
		if err != nil {
			return err
		}
		patch = &flat
	}
	return h.processor.UpdatePlayer(ctx, req.ID, *patch)
}

func (h *Handler) HandleDeletePlayer(ctx context.Context, data json.RawMessage) error {
	id, err := dispatcher.BindID(data)
	if err != nil {
		return err
	}
	return h.processor.DeletePlayer(ctx, id)
}

// HandleQueryPlayers returns one player when an id is given and all of them
// otherwise.
func (h *Handler) HandleQueryPlayers(ctx context.Context, data json.RawMessage) (any, error) {
	id, err := dispatcher.BindID(data)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return h.processor.ListPlayers(ctx)
	}

	player, err := h.processor.GetPlayerByID(ctx, id)
	if err != nil || player == nil {
		return nil, err
	}
	return player, nil
}
