package dispatcher_test

import (
	categoryhandler "admin-backend/internal/categories/handler"
	categoryprocessor "admin-backend/internal/categories/processor"
	"admin-backend/internal/dispatcher"
	"admin-backend/internal/observability"
	playerhandler "admin-backend/internal/players/handler"
	playerprocessor "admin-backend/internal/players/processor"
	"admin-backend/internal/store"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableCategories fails every write the way a dropped connection does.
type unreachableCategories struct {
	*store.MemoryGateway[store.Category, *store.Category]
}

func (unreachableCategories) Insert(context.Context, store.Category) (store.Category, error) {
	return store.Category{}, &store.StoreError{
		Op: "insert into", Collection: store.CollectionCategories,
		Err: errors.New("server selection error: context deadline exceeded"),
	}
}

type harness struct {
	dispatcher *dispatcher.Dispatcher
	categories *store.MemoryGateway[store.Category, *store.Category]
	players    *store.MemoryGateway[store.Player, *store.Player]
}

func newHarness(t *testing.T, policy dispatcher.AckPolicy, categories categoryprocessor.CategoryStore) *harness {
	t.Helper()
	logger := observability.NewLogger()

	h := &harness{
		dispatcher: dispatcher.New(dispatcher.Config{AckPolicy: policy}, logger),
		categories: store.NewMemoryGateway[store.Category, *store.Category](store.CollectionCategories),
		players:    store.NewMemoryGateway[store.Player, *store.Player](store.CollectionPlayers),
	}
	if categories == nil {
		categories = h.categories
	}

	ch := categoryhandler.New(categoryprocessor.New(categories, logger))
	ch.Register(h.dispatcher)
	ph := playerhandler.New(playerprocessor.New(h.players, logger))
	ph.Register(h.dispatcher)
	return h
}

func (h *harness) send(t *testing.T, pattern string, data any) *dispatcher.FakeDelivery {
	t.Helper()
	msg := dispatcher.NewFakeMessage(t, pattern, data, "")
	h.dispatcher.Dispatch(context.Background(), msg)
	return msg
}

func (h *harness) request(t *testing.T, pattern string, data any) (*dispatcher.FakeDelivery, dispatcher.DecodedReply) {
	t.Helper()
	msg := dispatcher.NewFakeMessage(t, pattern, data, "req-"+pattern)
	h.dispatcher.Dispatch(context.Background(), msg)
	return msg, msg.OnlyReply(t)
}

func assertSettled(t *testing.T, msg *dispatcher.FakeDelivery, wantAcks, wantNacks int) {
	t.Helper()
	acks, nacks := msg.Counts()
	assert.Equal(t, wantAcks, acks, "acks")
	assert.Equal(t, wantNacks, nacks, "nacks")
}

func TestScenario_CategoryAndPlayerLifecycle(t *testing.T) {
	h := newHarness(t, dispatcher.AckPolicyStrict, nil)
	ctx := context.Background()

	first := h.send(t, categoryhandler.PatternCreate, map[string]any{"name": "RPG"})
	assertSettled(t, first, 1, 0)

	all, err := h.categories.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	rpg := all[0]
	assert.NotEmpty(t, rpg.ID)

	second := h.send(t, categoryhandler.PatternCreate, map[string]any{"name": "RPG"})
	assertSettled(t, second, 1, 0)
	assert.Equal(t, 1, h.categories.Len())

	missing := h.send(t, categoryhandler.PatternUpdate, map[string]any{"id": "missing", "name": "X"})
	assertSettled(t, missing, 1, 0)
	all, err = h.categories.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, rpg, all[0])

	deleted := h.send(t, playerhandler.PatternDelete, map[string]any{"id": "missing"})
	assertSettled(t, deleted, 1, 0)

	created := h.send(t, playerhandler.PatternCreate, map[string]any{
		"name":     "Ana",
		"email":    "ana@example.com",
		"category": rpg.ID,
	})
	assertSettled(t, created, 1, 0)
	players, err := h.players.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, players, 1)

	query, reply := h.request(t, playerhandler.PatternQuery, players[0].ID)
	assertSettled(t, query, 1, 0)
	require.Nil(t, reply.Err)

	var got store.Player
	require.NoError(t, json.Unmarshal(reply.Response, &got))
	assert.Equal(t, players[0].ID, got.ID)
	assert.Equal(t, rpg.ID, got.Category)
}

func TestScenario_TransientCreateStaysUnacked(t *testing.T) {
	failing := unreachableCategories{store.NewMemoryGateway[store.Category, *store.Category](store.CollectionCategories)}
	h := newHarness(t, dispatcher.AckPolicyStrict, failing)

	msg := h.send(t, categoryhandler.PatternCreate, map[string]any{"name": "RPG"})

	assertSettled(t, msg, 0, 1)
	assert.Equal(t, 0, failing.Len())
}

func TestScenario_AckAllAcknowledgesTransientCreate(t *testing.T) {
	failing := unreachableCategories{store.NewMemoryGateway[store.Category, *store.Category](store.CollectionCategories)}
	h := newHarness(t, dispatcher.AckPolicyAckAll, failing)

	msg := h.send(t, categoryhandler.PatternCreate, map[string]any{"name": "RPG"})

	assertSettled(t, msg, 1, 0)
}

func TestScenario_QueriesAlwaysAck(t *testing.T) {
	h := newHarness(t, dispatcher.AckPolicyStrict, nil)

	t.Run("empty collection lists nothing", func(t *testing.T) {
		msg, reply := h.request(t, categoryhandler.PatternQuery, nil)
		assertSettled(t, msg, 1, 0)
		assert.Nil(t, reply.Err)
		assert.JSONEq(t, `[]`, string(reply.Response))
	})

	t.Run("unknown id is null", func(t *testing.T) {
		msg, reply := h.request(t, categoryhandler.PatternQuery, "65f1c0ffee0000000000abcd")
		assertSettled(t, msg, 1, 0)
		assert.Nil(t, reply.Err)
		assert.JSONEq(t, `null`, string(reply.Response))
	})

	t.Run("empty id lists all", func(t *testing.T) {
		h.send(t, playerhandler.PatternCreate, map[string]any{"name": "Ana"})
		h.send(t, playerhandler.PatternCreate, map[string]any{"name": "Bia"})

		msg, reply := h.request(t, playerhandler.PatternQuery, "")
		assertSettled(t, msg, 1, 0)

		var players []store.Player
		require.NoError(t, json.Unmarshal(reply.Response, &players))
		assert.Len(t, players, 2)
	})

	t.Run("malformed id still acks with an error reply", func(t *testing.T) {
		msg, reply := h.request(t, playerhandler.PatternQuery, 42)
		assertSettled(t, msg, 1, 0)
		require.NotNil(t, reply.Err)
		assert.Contains(t, reply.Err.Message, "invalid payload")
	})
}

func TestScenario_UpdateForms(t *testing.T) {
	h := newHarness(t, dispatcher.AckPolicyStrict, nil)
	ctx := context.Background()

	h.send(t, categoryhandler.PatternCreate, map[string]any{"name": "A", "description": "first"})
	h.send(t, categoryhandler.PatternCreate, map[string]any{"name": "B"})
	all, err := h.categories.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	a := all[0]
	if a.Name != "A" {
		a = all[1]
	}

	nested := h.send(t, categoryhandler.PatternUpdate, map[string]any{
		"id":       a.ID,
		"category": map[string]any{"_id": "hijack", "description": "nested"},
	})
	assertSettled(t, nested, 1, 0)

	got, err := h.categories.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "nested", got.Description)
	assert.Equal(t, "A", got.Name)

	flat := h.send(t, categoryhandler.PatternUpdate, map[string]any{"id": a.ID, "description": "flat"})
	assertSettled(t, flat, 1, 0)
	got, err = h.categories.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "flat", got.Description)

	clash := h.send(t, categoryhandler.PatternUpdate, map[string]any{"id": a.ID, "category": map[string]any{"name": "B"}})
	assertSettled(t, clash, 1, 0)
	got, err = h.categories.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)
}

func TestScenario_InvalidPayloadsAreAcked(t *testing.T) {
	h := newHarness(t, dispatcher.AckPolicyStrict, nil)

	for _, tc := range []struct {
		pattern string
		data    any
	}{
		{categoryhandler.PatternCreate, map[string]any{"description": "no name"}},
		{categoryhandler.PatternCreate, "RPG"},
		{playerhandler.PatternCreate, map[string]any{"name": "Ana", "email": "not-an-email"}},
		{playerhandler.PatternUpdate, []int{1}},
		{playerhandler.PatternDelete, 12},
	} {
		msg := h.send(t, tc.pattern, tc.data)
		assertSettled(t, msg, 1, 0)
	}
	assert.Equal(t, 0, h.categories.Len())
	assert.Equal(t, 0, h.players.Len())
}

func TestScenario_ConflictUnderBothPolicies(t *testing.T) {
	for _, policy := range []dispatcher.AckPolicy{dispatcher.AckPolicyStrict, dispatcher.AckPolicyAckAll} {
		t.Run(string(policy), func(t *testing.T) {
			h := newHarness(t, policy, nil)

			for i := 0; i < 3; i++ {
				msg := h.send(t, playerhandler.PatternCreate, map[string]any{"name": "Ana"})
				assertSettled(t, msg, 1, 0)
			}
			assert.Equal(t, 1, h.players.Len())
		})
	}
}
