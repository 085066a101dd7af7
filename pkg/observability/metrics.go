package observability

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	messages    *prometheus.CounterVec
	routes      *prometheus.CounterVec
	actions     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	states      *prometheus.CounterVec
	calls       *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coachflow_messages_rendered_total",
			Help: "Messages handed to the host.",
		}, []string{"sequence_id", "kind"}),
		routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coachflow_route_decisions_total",
			Help: "Autoroute resolutions by outcome.",
		}, []string{"sequence_id", "outcome"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coachflow_data_actions_total",
			Help: "Executed data actions.",
		}, []string{"kind", "skipped"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coachflow_sequence_transitions_total",
			Help: "Sequence switches by result.",
		}, []string{"result"}),
		states: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coachflow_state_changes_total",
			Help: "Orchestrator state entries.",
		}, []string{"state"}),
		calls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coachflow_flow_call_duration_seconds",
			Help:    "Duration of flow service calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}

	for _, c := range []prometheus.Collector{m.messages, m.routes, m.actions, m.transitions, m.states, m.calls} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that feed the counters.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnMessageRendered: func(_ context.Context, e *domain.MessageEvent) {
			m.messages.WithLabelValues(e.SequenceID, string(e.Kind)).Inc()
		},
		OnRouteDecision: func(_ context.Context, e *domain.RouteEvent) {
			m.routes.WithLabelValues(e.SequenceID, string(e.Outcome)).Inc()
		},
		OnDataAction: func(_ context.Context, e *domain.ActionEvent) {
			m.actions.WithLabelValues(string(e.Kind), strconv.FormatBool(e.Skipped)).Inc()
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.transitions.WithLabelValues(transitionResult(e)).Inc()
		},
		OnStateChange: func(_ context.Context, e *domain.StateEvent) {
			m.states.WithLabelValues(string(e.To)).Inc()
		},
	}
}

// ObserveCall records a flow service call that began at start.
func (m *Metrics) ObserveCall(operation string, start time.Time, err error) {
	m.calls.WithLabelValues(operation, callStatus(err)).Observe(time.Since(start).Seconds())
}

func transitionResult(e *domain.TransitionEvent) string {
	switch {
	case e.Err == nil:
		return "committed"
	case e.RolledBack:
		return "rolled_back"
	}
	return "failed"
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidResponse), errors.Is(err, domain.ErrNotAwaitingInput):
		return "rejected"
	}
	return "error"
}
