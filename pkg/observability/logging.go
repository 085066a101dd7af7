package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/coachflow/internal/logging"
	"github.com/aretw0/coachflow/pkg/domain"
)

// LogHooks returns lifecycle hooks that write one debug record per event.
// Failed transitions are logged at warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	logger = logging.Component(logger, "lifecycle")
	return domain.LifecycleHooks{
		OnMessageRendered: func(ctx context.Context, e *domain.MessageEvent) {
			logger.DebugContext(ctx, "message_rendered",
				"sequence_id", e.SequenceID,
				"message_id", e.MessageID,
				"kind", e.Kind,
			)
		},
		OnRouteDecision: func(ctx context.Context, e *domain.RouteEvent) {
			logger.DebugContext(ctx, "route_decision",
				"sequence_id", e.SequenceID,
				"message_id", e.MessageID,
				"outcome", e.Outcome,
				"rule_index", e.RuleIndex,
				"target", e.Target,
			)
		},
		OnDataAction: func(ctx context.Context, e *domain.ActionEvent) {
			logger.DebugContext(ctx, "data_action",
				"sequence_id", e.SequenceID,
				"message_id", e.MessageID,
				"kind", e.Kind,
				"key", e.Key,
				"skipped", e.Skipped,
			)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "sequence_transition",
					"from", e.From,
					"to", e.To,
					"rolled_back", e.RolledBack,
					"err", e.Err,
				)
				return
			}
			logger.DebugContext(ctx, "sequence_transition", "from", e.From, "to", e.To)
		},
		OnStateChange: func(ctx context.Context, e *domain.StateEvent) {
			logger.DebugContext(ctx, "state_change", "from", e.From, "to", e.To)
		},
	}
}

// LogSink implements ports.EventSink by logging every trigger at info.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink writing to logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logging.Component(logger, "events")}
}

// Trigger logs the event and its payload.
func (s *LogSink) Trigger(ctx context.Context, event string, payload map[string]any) error {
	s.logger.InfoContext(ctx, "trigger", "event", event, "payload", payload)
	return nil
}
