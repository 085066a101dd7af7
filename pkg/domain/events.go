package domain

import (
	"context"
	"time"
)

// EventType defines the category of a lifecycle event.
type EventType string

const (
	EventMessageRendered EventType = "message_rendered"
	EventRouteDecision   EventType = "route_decision"
	EventDataAction      EventType = "data_action"
	EventTransition      EventType = "sequence_transition"
	EventStateChange     EventType = "state_change"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	SequenceID string    `json:"sequence_id"`
}

// MessageEvent is emitted for every bubble handed to the host.
type MessageEvent struct {
	EventBase
	MessageID string      `json:"message_id"`
	Kind      MessageKind `json:"kind"`
}

// RouteOutcome classifies how an autoroute node was resolved.
type RouteOutcome string

const (
	RouteMatched  RouteOutcome = "matched"
	RouteDefault  RouteOutcome = "default"
	RouteFallback RouteOutcome = "fallback"
)

// RouteEvent is emitted once per autoroute visit.
type RouteEvent struct {
	EventBase
	MessageID string       `json:"message_id"`
	Outcome   RouteOutcome `json:"outcome"`
	RuleIndex int          `json:"rule_index"`
	Target    string       `json:"target"`
}

// ActionEvent is emitted for every executed (or skipped) data action.
type ActionEvent struct {
	EventBase
	MessageID string     `json:"message_id"`
	Kind      ActionKind `json:"kind"`
	Key       string     `json:"key,omitempty"`
	Skipped   bool       `json:"skipped,omitempty"`
}

// TransitionEvent is emitted for every attempted sequence switch.
type TransitionEvent struct {
	EventBase
	From       string `json:"from"`
	To         string `json:"to"`
	Err        error  `json:"-"`
	RolledBack bool   `json:"rolled_back,omitempty"`
}

// StateEvent is emitted when the orchestrator changes state.
type StateEvent struct {
	EventBase
	From FlowState `json:"from"`
	To   FlowState `json:"to"`
}

// LifecycleHooks defines callbacks for engine observability.
// Every field is optional.
type LifecycleHooks struct {
	OnMessageRendered func(context.Context, *MessageEvent)
	OnRouteDecision   func(context.Context, *RouteEvent)
	OnDataAction      func(context.Context, *ActionEvent)
	OnTransition      func(context.Context, *TransitionEvent)
	OnStateChange     func(context.Context, *StateEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnMessageRendered: chain(h.OnMessageRendered, other.OnMessageRendered),
		OnRouteDecision:   chain(h.OnRouteDecision, other.OnRouteDecision),
		OnDataAction:      chain(h.OnDataAction, other.OnDataAction),
		OnTransition:      chain(h.OnTransition, other.OnTransition),
		OnStateChange:     chain(h.OnStateChange, other.OnStateChange),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
