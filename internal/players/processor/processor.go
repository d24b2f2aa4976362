package processor

import (
	"admin-backend/internal/apierrors"
	"admin-backend/internal/observability"
	"admin-backend/internal/store"
	"context"

	"github.com/go-playground/validator/v10"
)

type PlayerProcessor struct {
	store    PlayerStore
	validate *validator.Validate
	logger   *observability.Logger
}

func New(store PlayerStore, logger *observability.Logger) PlayerProcessor {
	return PlayerProcessor{
		store:    store,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreatePlayer stores a new player. The category reference is kept as given.
func (p *PlayerProcessor) CreatePlayer(ctx context.Context, player store.Player) (store.Player, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "player_name", Value: player.Name})

	if err := p.validate.Struct(player); err != nil {
		p.logger.Error(ctx, "invalid player", err)
		return store.Player{}, apierrors.Invalid(err)
	}

	created, err := p.store.Insert(ctx, player)
	if err != nil {
		p.logger.Error(ctx, "failed to create player", err)
		return store.Player{}, apierrors.Wrap(err)
	}

	p.logger.Info(ctx, "player created successfully")
	return created, nil
}

func (p *PlayerProcessor) GetPlayerByID(ctx context.Context, id string) (*store.Player, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "player_id", Value: id})

	player, err := p.store.FindByID(ctx, id)
	if err != nil {
		p.logger.Error(ctx, "failed to get player", err)
		return nil, apierrors.Wrap(err)
	}
	return player, nil
}

func (p *PlayerProcessor) ListPlayers(ctx context.Context) ([]store.Player, error) {
	players, err := p.store.FindAll(ctx)
	if err != nil {
		p.logger.Error(ctx, "failed to list players", err)
		return nil, apierrors.Wrap(err)
	}
	return players, nil
}

// UpdatePlayer applies the non-empty fields of player. Only the email format is
// checked since every field is optional here.
func (p *PlayerProcessor) UpdatePlayer(ctx context.Context, id string, player store.Player) error {
	ctx = observability.WithFields(ctx, observability.Field{Key: "player_id", Value: id})

	if err := p.validate.StructPartial(player, "Email"); err != nil {
		p.logger.Error(ctx, "invalid player", err)
		return apierrors.Invalid(err)
	}

	if err := p.store.UpdateByID(ctx, id, player); err != nil {
		p.logger.Error(ctx, "failed to update player", err)
		return apierrors.Wrap(err)
	}

	p.logger.Info(ctx, "player updated successfully")
	return nil
}

func (p *PlayerProcessor) DeletePlayer(ctx context.Context, id string) error {
	ctx = observability.WithFields(ctx, observability.Field{Key: "player_id", Value: id})

	if err := p.store.DeleteByID(ctx, id); err != nil {
		p.logger.Error(ctx, "failed to delete player", err)
		return apierrors.Wrap(err)
	}

	p.logger.Info(ctx, "player deleted successfully")
	return nil
}
