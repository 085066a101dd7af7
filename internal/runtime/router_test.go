package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/coachflow/internal/runtime"
	"github.com/aretw0/coachflow/pkg/adapters/memory"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteProcessor_Select(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStoreFrom(map[string]any{"user.x": 2})
	router := runtime.NewRouteProcessor(runtime.NewConditionEvaluator(store), nil)

	conditional := []domain.RouteRule{
		{Condition: "user.x == 1", NextMessageID: "5"},
		{Condition: "user.x == 2", NextMessageID: "6"},
	}
	fallbackDefault := domain.RouteRule{IsDefault: true, NextMessageID: "9"}

	t.Run("Default first does not shadow a match", func(t *testing.T) {
		node := domain.MessageNode{ID: "r", Kind: domain.KindAutoroute, Routes: append([]domain.RouteRule{fallbackDefault}, conditional...)}
		_, d := router.Select(ctx, node)
		assert.Equal(t, "6", d.NextMessageID)
		assert.Equal(t, domain.RouteMatched, d.Outcome)
		assert.Equal(t, 2, d.RuleIndex)
	})

	t.Run("Default last", func(t *testing.T) {
		node := domain.MessageNode{ID: "r", Kind: domain.KindAutoroute, Routes: append(append([]domain.RouteRule{}, conditional...), fallbackDefault)}
		_, d := router.Select(ctx, node)
		assert.Equal(t, "6", d.NextMessageID)
	})

	t.Run("Default when nothing matches", func(t *testing.T) {
		node := domain.MessageNode{ID: "r", Kind: domain.KindAutoroute, Routes: []domain.RouteRule{
			{Condition: "user.x > 5", NextMessageID: "5"},
			fallbackDefault,
			{IsDefault: true, NextMessageID: "10"},
		}}
		_, d := router.Select(ctx, node)
		assert.Equal(t, "9", d.NextMessageID)
		assert.Equal(t, domain.RouteDefault, d.Outcome)
		assert.Equal(t, 1, d.RuleIndex)
	})

	t.Run("Empty condition never matches", func(t *testing.T) {
		node := domain.MessageNode{ID: "r", Kind: domain.KindAutoroute, NextMessageID: "fb", Routes: []domain.RouteRule{
			{NextMessageID: "5"},
		}}
		_, d := router.Select(ctx, node)
		assert.Equal(t, "fb", d.NextMessageID)
		assert.Equal(t, domain.RouteFallback, d.Outcome)
		assert.Equal(t, -1, d.RuleIndex)
	})

	t.Run("No rules and no next", func(t *testing.T) {
		_, d := router.Select(ctx, domain.MessageNode{ID: "r", Kind: domain.KindAutoroute})
		assert.Empty(t, d.NextMessageID)
		assert.Empty(t, d.SequenceID)
	})
}

func TestRouteProcessor_ProcessAutoRoute(t *testing.T) {
	ctx := context.Background()

	target, err := domain.NewSequence("week2", []domain.MessageNode{
		{ID: "w1", Kind: domain.KindBot, Text: "Week two", NextMessageID: "w2"},
		{ID: "w2", Kind: domain.KindBot, Text: "Go"},
	}, "")
	require.NoError(t, err)
	loader := memory.NewFromSequences(target)

	store := memory.NewStoreFrom(map[string]any{"user.streak": 7})
	transitions := runtime.NewTransitionManager(loader)
	router := runtime.NewRouteProcessor(runtime.NewConditionEvaluator(store), transitions)

	t.Run("Switches sequence and lands on entry", func(t *testing.T) {
		node := domain.MessageNode{ID: "r", Kind: domain.KindAutoroute, Routes: []domain.RouteRule{
			{Condition: "user.streak >= 7", SequenceID: "week2"},
		}}
		d, err := router.ProcessAutoRoute(ctx, node)
		require.NoError(t, err)
		assert.Equal(t, "week2", d.SequenceID)
		assert.Equal(t, "w1", d.NextMessageID)
		assert.Equal(t, "week2", transitions.CurrentSequenceID())
	})

	t.Run("Resumes at named node", func(t *testing.T) {
		node := domain.MessageNode{ID: "r", Kind: domain.KindAutoroute, Routes: []domain.RouteRule{
			{IsDefault: true, SequenceID: "week2", NextMessageID: "w2"},
		}}
		d, err := router.ProcessAutoRoute(ctx, node)
		require.NoError(t, err)
		assert.Equal(t, "w2", d.NextMessageID)
	})

	t.Run("Unknown sequence", func(t *testing.T) {
		node := domain.MessageNode{ID: "r", Kind: domain.KindAutoroute, Routes: []domain.RouteRule{
			{IsDefault: true, SequenceID: "nope"},
		}}
		_, err := router.ProcessAutoRoute(ctx, node)
		assert.ErrorIs(t, err, domain.ErrSequenceNotFound)
		assert.Equal(t, "week2", transitions.CurrentSequenceID())
	})

	t.Run("Rejects other kinds", func(t *testing.T) {
		_, err := router.ProcessAutoRoute(ctx, domain.MessageNode{ID: "b", Kind: domain.KindBot})
		assert.Error(t, err)
	})
}
