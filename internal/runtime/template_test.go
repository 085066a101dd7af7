package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/coachflow/internal/runtime"
	"github.com/aretw0/coachflow/pkg/adapters/memory"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateResolver_ResolveText(t *testing.T) {
	store := memory.NewStoreFrom(map[string]any{
		"user.name":   "Ana",
		"user.empty":  "",
		"user.none":   nil,
		"user.streak": 4,
		"user.mood":   "great",
		"user.badges": []any{"early", "bird"},
	})
	resolver := runtime.NewTemplateResolver(store,
		runtime.WithClock(wednesday),
		runtime.WithFormatters(ports.Formatters{
			"user.mood": {"great": "feeling great"},
		}),
	)
	ctx := context.Background()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"Plain text", "Hello there", "Hello there"},
		{"Present key", "Hi {user.name}!", "Hi Ana!"},
		{"Present key ignores fallback", "Hi {user.name|friend}!", "Hi Ana!"},
		{"Absent key uses fallback", "Hi {user.nick|friend}!", "Hi friend!"},
		{"Empty value uses fallback", "Hi {user.empty|friend}!", "Hi friend!"},
		{"Null value uses fallback", "Hi {user.none|friend}!", "Hi friend!"},
		{"Absent key without fallback", "Hi {user.nick}!", "Hi !"},
		{"Spaces inside braces", "Day { user.streak }", "Day 4"},
		{"Number", "{user.streak} days", "4 days"},
		{"Formatter", "You are {user.mood}", "You are feeling great"},
		{"List joins", "Badges: {user.badges}", "Badges: early, bird"},
		{"Date token", "Today is {TODAY_DATE}", "Today is 2024-01-10"},
		{"Several", "{user.name}, {user.streak}, {user.nick|none}", "Ana, 4, none"},
		{"Non placeholder braces", "a {not a key} b", "a {not a key} b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolver.ResolveText(ctx, tt.text))
		})
	}
}

func TestTemplateResolver_Render(t *testing.T) {
	store := memory.NewStoreFrom(map[string]any{"user.name": "Ana"})
	resolver := runtime.NewTemplateResolver(store,
		runtime.WithContentResolver(memory.Content{"greeting.welcome": "Welcome, {user.name}!"}),
	)
	ctx := context.Background()

	t.Run("Content key when text is empty", func(t *testing.T) {
		out := resolver.Render(ctx, domain.MessageNode{ID: "1", Kind: domain.KindBot, ContentKey: "greeting.welcome"})
		require.Len(t, out, 1)
		assert.Equal(t, "Welcome, Ana!", out[0].Text)
		assert.Equal(t, "greeting.welcome", out[0].ContentKey)
	})

	t.Run("Text wins over content key", func(t *testing.T) {
		out := resolver.Render(ctx, domain.MessageNode{ID: "1", Kind: domain.KindBot, Text: "Hi", ContentKey: "greeting.welcome"})
		require.Len(t, out, 1)
		assert.Equal(t, "Hi", out[0].Text)
	})

	t.Run("Unknown content key renders empty", func(t *testing.T) {
		out := resolver.Render(ctx, domain.MessageNode{ID: "1", Kind: domain.KindBot, ContentKey: "missing"})
		require.Len(t, out, 1)
		assert.Empty(t, out[0].Text)
	})

	t.Run("Choice labels are resolved", func(t *testing.T) {
		node := domain.MessageNode{
			ID:      "q",
			Kind:    domain.KindChoice,
			Text:    "Ready?",
			Choices: []domain.Choice{{Text: "Yes, {user.name}"}, {Text: "No"}},
		}
		out := resolver.Render(ctx, node)
		require.Len(t, out, 1)
		assert.Equal(t, "Yes, Ana", out[0].Choices[0].Text)
		assert.Equal(t, "Yes, {user.name}", node.Choices[0].Text, "source node must not change")
	})
}

func TestTemplateResolver_Expand(t *testing.T) {
	resolver := runtime.NewTemplateResolver(memory.NewStore())

	t.Run("Single bubble", func(t *testing.T) {
		node := domain.MessageNode{ID: "1", Kind: domain.KindBot, Text: "Hello"}
		assert.Equal(t, []domain.MessageNode{node}, resolver.Expand(node))
	})

	t.Run("Interaction stays on the last bubble", func(t *testing.T) {
		node := domain.MessageNode{
			ID:        "q",
			Kind:      domain.KindChoice,
			Text:      "First ||| Second|||Third?",
			StoreKey:  "user.answer",
			Choices:   []domain.Choice{{Text: "Yes"}, {Text: "No"}},
			Animation: &domain.Animation{Name: "typing", DelayMs: 300},
		}
		out := resolver.Expand(node)
		require.Len(t, out, 3)

		assert.Equal(t, []string{"q", "q_1", "q_2"}, []string{out[0].ID, out[1].ID, out[2].ID})
		assert.Equal(t, []string{"First", "Second", "Third?"}, []string{out[0].Text, out[1].Text, out[2].Text})

		assert.Equal(t, domain.KindBot, out[0].Kind)
		assert.Equal(t, domain.KindBot, out[1].Kind)
		assert.Equal(t, domain.KindChoice, out[2].Kind)

		assert.Nil(t, out[0].Choices)
		assert.Empty(t, out[0].StoreKey)
		assert.Len(t, out[2].Choices, 2)
		assert.Equal(t, "user.answer", out[2].StoreKey)

		require.NotNil(t, out[0].Animation)
		assert.Equal(t, 300, out[0].Animation.DelayMs)
		assert.Nil(t, out[1].Animation)
	})

	t.Run("Empty bubbles are dropped", func(t *testing.T) {
		out := resolver.Expand(domain.MessageNode{ID: "1", Kind: domain.KindBot, Text: "Only |||  ||| "})
		require.Len(t, out, 1)
		assert.Equal(t, "Only", out[0].Text)
		assert.Equal(t, "1", out[0].ID)
	})

	t.Run("Custom separator", func(t *testing.T) {
		custom := runtime.NewTemplateResolver(memory.NewStore(), runtime.WithBubbleSeparator("\n\n"))
		out := custom.Expand(domain.MessageNode{ID: "m", Kind: domain.KindBot, Text: "one\n\ntwo"})
		require.Len(t, out, 2)
		assert.Equal(t, "m_1", out[1].ID)
	})
}
