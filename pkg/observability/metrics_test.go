package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	ctx := context.Background()
	hooks := m.Hooks()

	base := domain.EventBase{SequenceID: "intro"}
	hooks.OnMessageRendered(ctx, &domain.MessageEvent{EventBase: base, Kind: domain.KindBot})
	hooks.OnMessageRendered(ctx, &domain.MessageEvent{EventBase: base, Kind: domain.KindBot})
	hooks.OnRouteDecision(ctx, &domain.RouteEvent{EventBase: base, Outcome: domain.RouteDefault})
	hooks.OnDataAction(ctx, &domain.ActionEvent{Kind: domain.ActionIncrement, Skipped: true})
	hooks.OnTransition(ctx, &domain.TransitionEvent{From: "a", To: "b"})
	hooks.OnTransition(ctx, &domain.TransitionEvent{From: "a", To: "c", Err: errors.New("boom"), RolledBack: true})
	hooks.OnStateChange(ctx, &domain.StateEvent{To: domain.StateAwaitingInput})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messages.WithLabelValues("intro", "bot")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.routes.WithLabelValues("intro", "default")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actions.WithLabelValues("increment", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("rolled_back")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.states.WithLabelValues("awaiting_input")))
}

func TestMetrics_ObserveCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.ObserveCall("respond", time.Now(), nil)
	m.ObserveCall("respond", time.Now(), domain.ErrInvalidResponse)
	m.ObserveCall("start", time.Now(), errors.New("disk"))

	assert.Equal(t, 3, testutil.CollectAndCount(m.calls))
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	assert.Error(t, err)
}
