package runtime_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aretw0/coachflow/internal/logging"
	"github.com/aretw0/coachflow/internal/runtime"
	"github.com/aretw0/coachflow/pkg/adapters/memory"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/stretchr/testify/assert"
)

// failingStore errors on every read.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (domain.Value, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingStore) Set(context.Context, string, domain.Value) error {
	return errors.New("connection refused")
}

// panickingStore panics on every read.
type panickingStore struct{ failingStore }

func (panickingStore) Get(context.Context, string) (domain.Value, bool, error) {
	panic("corrupt entry")
}

func TestConditionEvaluator_Evaluate(t *testing.T) {
	store := memory.NewStoreFrom(map[string]any{
		"user.streak":  3,
		"user.ratio":   0.5,
		"user.name":    "Ana",
		"user.note":    "a>b",
		"user.flag":    true,
		"user.count":   "5",
		"user.empty":   "",
		"user.badges":  []any{"early"},
		"task.nothing": nil,
	})
	eval := runtime.NewConditionEvaluator(store)
	ctx := context.Background()

	tests := []struct {
		expr string
		want bool
	}{
		{"user.streak > 0", true},
		{"user.streak >= 3", true},
		{"user.streak <= 2", false},
		{"user.streak < 10", true},
		{"user.streak == 3", true},
		{"user.streak == 3.0", true},
		{"user.streak != 3", false},
		{"user.ratio < 1", true},
		{"user.name == 'Ana'", true},
		{`user.name == "Ana"`, true},
		{"user.name == Ana", true},
		{"user.name != 'Bob'", true},
		{"user.name > 2", false},
		{"user.note == 'a>b'", true},
		{"user.note == 'a<=b'", false},
		{"user.flag == true", true},
		{"user.flag", true},
		{"user.count == 5", true},
		{"user.count > 4", true},
		{"user.empty", false},
		{"user.badges", true},
		{"user.missing", false},
		{"user.missing == null", true},
		{"task.activeDays == null", true},
		{"task.nothing == null", true},
		{"user.missing != null", false},
		{"user.missing > 0", false},
		{"user.missing == ''", false},
		{"", false},
		{"== 3", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, eval.Evaluate(ctx, tt.expr))
		})
	}
}

func TestConditionEvaluator_StoreFailuresReadAsFalse(t *testing.T) {
	ctx := context.Background()

	eval := runtime.NewConditionEvaluator(failingStore{})
	assert.False(t, eval.Evaluate(ctx, "user.streak == null"))
	assert.False(t, eval.EvaluateCompound(ctx, "user.a || user.b"))

	panicky := runtime.NewConditionEvaluator(panickingStore{})
	assert.NotPanics(t, func() {
		assert.False(t, panicky.Evaluate(ctx, "user.streak > 0"))
	})
}

func TestConditionEvaluator_EvaluateCompound(t *testing.T) {
	store := memory.NewStoreFrom(map[string]any{
		"user.a":    1,
		"user.b":    0,
		"user.text": "x || y && z",
	})
	eval := runtime.NewConditionEvaluator(store)
	ctx := context.Background()

	tests := []struct {
		expr string
		want bool
	}{
		{"user.a == 1 && user.b == 0", true},
		{"user.a == 1 && user.b == 1", false},
		{"user.a == 0 || user.b == 0", true},
		{"user.a == 0 || user.b == 1", false},
		// OR is split first: (a==0) || (b==0 && a==2)
		{"user.a == 0 || user.b == 0 && user.a == 2", false},
		// (a==1 && b==1) || (b==0)
		{"user.a == 1 && user.b == 1 || user.b == 0", true},
		{"user.text == 'x || y && z'", true},
		{"user.text == 'x || y && z' && user.a", true},
		{"user.a && user.b", false},
		{"user.a || user.b", true},
		{"   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, eval.EvaluateCompound(ctx, tt.expr))
		})
	}
}

func TestConditionEvaluator_DebugLogOnlyWhenEnabled(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStoreFrom(map[string]any{"user.tags": []any{"a", "b"}})

	var quiet bytes.Buffer
	e := runtime.NewConditionEvaluator(store, runtime.WithLogger(logging.NewWithWriter(&quiet, slog.LevelInfo, "text")))
	assert.True(t, e.Evaluate(ctx, "user.tags != null"))
	assert.Empty(t, quiet.String())

	var verbose bytes.Buffer
	e = runtime.NewConditionEvaluator(store, runtime.WithLogger(logging.NewWithWriter(&verbose, slog.LevelDebug, "text")))
	assert.True(t, e.Evaluate(ctx, "user.tags != null"))
	assert.Contains(t, verbose.String(), "msg=condition")
	assert.Contains(t, verbose.String(), `left="[\"a\",\"b\"]"`)
}
