package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/coachflow/internal/runtime"
	"github.com/aretw0/coachflow/pkg/adapters/memory"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, store *memory.Store, key string) domain.Value {
	t.Helper()
	v, _, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	return v
}

func TestStateMutator_Set(t *testing.T) {
	store := memory.NewStore()
	m := runtime.NewStateMutator(store, runtime.WithClock(wednesday))

	report := m.Execute(context.Background(), []domain.DataActionSpec{
		{Kind: domain.ActionSet, Key: "user.name", Value: domain.String("Ana")},
		{Kind: domain.ActionSet, Key: "user.cleared"},
		{Kind: domain.ActionSet, Key: "task.nextDate", Value: domain.String(domain.TokenNextActiveDate)},
		{Kind: domain.ActionSet, Key: "user.ratio", Value: domain.Float(0.5)},
	})

	assert.Equal(t, 4, report.Applied())
	assert.Empty(t, report.Errors())
	assert.Equal(t, domain.String("Ana"), get(t, store, "user.name"))
	assert.Equal(t, domain.Null{}, get(t, store, "user.cleared"))
	assert.Equal(t, domain.String("2024-01-11"), get(t, store, "task.nextDate"))
	assert.Equal(t, domain.Float(0.5), get(t, store, "user.ratio"))
}

func TestStateMutator_IncrementDecrement(t *testing.T) {
	store := memory.NewStoreFrom(map[string]any{
		"user.streak": 2,
		"user.text":   "7",
		"user.junk":   "abc",
	})
	m := runtime.NewStateMutator(store)

	report := m.Execute(context.Background(), []domain.DataActionSpec{
		{Kind: domain.ActionIncrement, Key: "user.streak"},
		{Kind: domain.ActionIncrement, Key: "user.streak", Value: domain.Int(3)},
		{Kind: domain.ActionDecrement, Key: "user.text", Value: domain.String("2")},
		{Kind: domain.ActionIncrement, Key: "user.missing"},
		{Kind: domain.ActionIncrement, Key: "user.junk"},
		{Kind: domain.ActionIncrement, Key: "user.streak", Value: domain.String("lots")},
	})

	assert.Equal(t, domain.Int(6), get(t, store, "user.streak"))
	assert.Equal(t, domain.Int(5), get(t, store, "user.text"))
	assert.Equal(t, domain.Int(1), get(t, store, "user.missing"))
	assert.Equal(t, domain.Int(1), get(t, store, "user.junk"))

	require.Len(t, report.Outcomes, 6)
	assert.True(t, report.Outcomes[5].Skipped)
	var actionErr *runtime.ActionError
	require.ErrorAs(t, report.Outcomes[5].Err, &actionErr)
	assert.Equal(t, domain.ActionIncrement, actionErr.Kind)
	assert.Equal(t, 5, report.Applied())
}

func TestStateMutator_Reset(t *testing.T) {
	store := memory.NewStoreFrom(map[string]any{"user.streak": 9, "user.mood": "sad"})
	m := runtime.NewStateMutator(store)

	m.Execute(context.Background(), []domain.DataActionSpec{
		{Kind: domain.ActionReset, Key: "user.streak"},
		{Kind: domain.ActionReset, Key: "user.mood", Value: domain.String("ok")},
	})

	assert.Equal(t, domain.Int(0), get(t, store, "user.streak"))
	assert.Equal(t, domain.String("ok"), get(t, store, "user.mood"))
}

func TestStateMutator_Append(t *testing.T) {
	ctx := context.Background()

	t.Run("Absent key starts a list", func(t *testing.T) {
		store := memory.NewStore()
		m := runtime.NewStateMutator(store)
		m.Execute(ctx, []domain.DataActionSpec{
			{Kind: domain.ActionAppend, Key: "user.badges", Value: domain.String("early")},
		})
		assert.Equal(t, domain.List{domain.String("early")}, get(t, store, "user.badges"))
	})

	t.Run("Idempotent", func(t *testing.T) {
		store := memory.NewStoreFrom(map[string]any{"user.badges": []any{"early"}})
		m := runtime.NewStateMutator(store)
		spec := domain.DataActionSpec{Kind: domain.ActionAppend, Key: "user.badges", Value: domain.String("early")}
		m.Execute(ctx, []domain.DataActionSpec{spec, spec})
		assert.Equal(t, domain.List{domain.String("early")}, get(t, store, "user.badges"))
	})

	t.Run("Coerces to existing element type", func(t *testing.T) {
		store := memory.NewStoreFrom(map[string]any{"task.activeDays": []any{1, 3}})
		m := runtime.NewStateMutator(store)
		m.Execute(ctx, []domain.DataActionSpec{
			{Kind: domain.ActionAppend, Key: "task.activeDays", Value: domain.String("3")},
			{Kind: domain.ActionAppend, Key: "task.activeDays", Value: domain.String("5")},
		})
		assert.Equal(t, domain.List{domain.Int(1), domain.Int(3), domain.Int(5)}, get(t, store, "task.activeDays"))
	})

	t.Run("JSON string is rewritten as a list", func(t *testing.T) {
		store := memory.NewStoreFrom(map[string]any{"task.activeDays": "[1,2]"})
		m := runtime.NewStateMutator(store)
		m.Execute(ctx, []domain.DataActionSpec{
			{Kind: domain.ActionAppend, Key: "task.activeDays", Value: domain.Int(2)},
		})
		assert.Equal(t, domain.List{domain.Int(1), domain.Int(2)}, get(t, store, "task.activeDays"))
	})

	t.Run("Comma string", func(t *testing.T) {
		store := memory.NewStoreFrom(map[string]any{"user.tags": "a, b"})
		m := runtime.NewStateMutator(store)
		m.Execute(ctx, []domain.DataActionSpec{
			{Kind: domain.ActionAppend, Key: "user.tags", Value: domain.List{domain.String("b"), domain.String("c")}},
		})
		assert.Equal(t, domain.List{domain.String("a"), domain.String("b"), domain.String("c")}, get(t, store, "user.tags"))
	})

	t.Run("Non list value is skipped", func(t *testing.T) {
		store := memory.NewStoreFrom(map[string]any{"user.streak": 3})
		m := runtime.NewStateMutator(store)
		report := m.Execute(ctx, []domain.DataActionSpec{
			{Kind: domain.ActionAppend, Key: "user.streak", Value: domain.Int(1)},
			{Kind: domain.ActionSet, Key: "user.after", Value: domain.Bool(true)},
		})
		assert.True(t, report.Outcomes[0].Skipped)
		assert.Equal(t, domain.Int(3), get(t, store, "user.streak"))
		assert.Equal(t, domain.Bool(true), get(t, store, "user.after"), "the batch continues")
	})
}

func TestStateMutator_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("Removes every match", func(t *testing.T) {
		store := memory.NewStoreFrom(map[string]any{"task.activeDays": []any{1, 3, 5, 3}})
		m := runtime.NewStateMutator(store)
		m.Execute(ctx, []domain.DataActionSpec{
			{Kind: domain.ActionRemove, Key: "task.activeDays", Value: domain.String("3")},
		})
		assert.Equal(t, domain.List{domain.Int(1), domain.Int(5)}, get(t, store, "task.activeDays"))
	})

	t.Run("Absent key is a no-op", func(t *testing.T) {
		store := memory.NewStore()
		m := runtime.NewStateMutator(store)
		report := m.Execute(ctx, []domain.DataActionSpec{
			{Kind: domain.ActionRemove, Key: "user.badges", Value: domain.String("early")},
		})
		assert.Equal(t, 1, report.Applied())
		_, ok, err := store.Get(ctx, "user.badges")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStateMutator_Trigger(t *testing.T) {
	ctx := context.Background()

	t.Run("Payload date tokens are resolved", func(t *testing.T) {
		rec := memory.NewRecorder()
		m := runtime.NewStateMutator(memory.NewStore(), runtime.WithEventSink(rec), runtime.WithClock(wednesday))
		m.Execute(ctx, []domain.DataActionSpec{
			{Kind: domain.ActionTrigger, Event: "reminder.schedule", Data: map[string]any{"on": domain.TokenTodayDate, "count": 2}},
		})

		events := rec.Events()
		require.Len(t, events, 1)
		assert.Equal(t, "reminder.schedule", events[0].Name)
		assert.Equal(t, "2024-01-10", events[0].Payload["on"])
		assert.Equal(t, 2, events[0].Payload["count"])
	})

	t.Run("Sink errors are swallowed", func(t *testing.T) {
		rec := memory.NewRecorder()
		rec.Err = errors.New("broker down")
		store := memory.NewStore()
		m := runtime.NewStateMutator(store, runtime.WithEventSink(rec))
		report := m.Execute(ctx, []domain.DataActionSpec{
			{Kind: domain.ActionTrigger, Event: "x"},
			{Kind: domain.ActionSet, Key: "user.after", Value: domain.Int(1)},
		})
		assert.Empty(t, report.Errors())
		assert.Equal(t, domain.Int(1), get(t, store, "user.after"))
	})

	t.Run("Sink panics are recovered", func(t *testing.T) {
		m := runtime.NewStateMutator(memory.NewStore(), runtime.WithEventSink(panickingSink{}))
		assert.NotPanics(t, func() {
			m.Execute(ctx, []domain.DataActionSpec{{Kind: domain.ActionTrigger, Event: "x"}})
		})
	})

	t.Run("No sink", func(t *testing.T) {
		m := runtime.NewStateMutator(memory.NewStore())
		report := m.Execute(ctx, []domain.DataActionSpec{{Kind: domain.ActionTrigger, Event: "x"}})
		assert.Equal(t, 1, report.Applied())
	})
}

func TestStateMutator_StoreFailureSkipsOnlyThatAction(t *testing.T) {
	m := runtime.NewStateMutator(failingStore{})
	report := m.Execute(context.Background(), []domain.DataActionSpec{
		{Kind: domain.ActionSet, Key: "user.a", Value: domain.Int(1)},
		{Kind: domain.ActionIncrement, Key: "user.b"},
	})
	require.Len(t, report.Outcomes, 2)
	assert.Len(t, report.Errors(), 2)
	assert.Zero(t, report.Applied())
}

type panickingSink struct{}

func (panickingSink) Trigger(context.Context, string, map[string]any) error {
	panic("sink exploded")
}
