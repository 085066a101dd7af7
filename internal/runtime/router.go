package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/coachflow/internal/logging"
	"github.com/aretw0/coachflow/pkg/domain"
)

// RouteDecision is the outcome of one autoroute visit.
type RouteDecision struct {
	// NextMessageID is where traversal continues; empty ends the flow.
	NextMessageID string
	// SequenceID is set when the chosen rule switched sequences.
	SequenceID string
	Outcome    domain.RouteOutcome
	// RuleIndex is the position of the chosen rule, -1 for the fallback.
	RuleIndex int
}

// SequenceSwitcher activates another sequence. *TransitionManager
// implements it; the orchestrator wraps it to persist the switch.
type SequenceSwitcher interface {
	TransitionToSequence(ctx context.Context, id string) (*domain.Sequence, error)
}

// RouteProcessor resolves autoroute nodes in two passes: conditional rules
// in list order, then the first default rule, then the node's nextMessageId.
type RouteProcessor struct {
	evaluator *ConditionEvaluator
	switcher  SequenceSwitcher
	logger    *slog.Logger
}

// NewRouteProcessor creates a processor. switcher may be nil, in which
// case rules pointing to another sequence are reported but not executed.
func NewRouteProcessor(evaluator *ConditionEvaluator, switcher SequenceSwitcher, opts ...Option) *RouteProcessor {
	o := newOptions(opts)
	return &RouteProcessor{
		evaluator: evaluator,
		switcher:  switcher,
		logger:    logging.Component(o.logger, "router"),
	}
}

// Select picks the rule to follow without side effects.
func (r *RouteProcessor) Select(ctx context.Context, node domain.MessageNode) (domain.RouteRule, RouteDecision) {
	for i, rule := range node.Routes {
		if rule.IsDefault || rule.Condition == "" {
			continue
		}
		if r.evaluator.EvaluateCompound(ctx, rule.Condition) {
			r.logger.Debug("route matched", "message_id", node.ID, "rule", i, "condition", rule.Condition)
			return rule, RouteDecision{NextMessageID: rule.NextMessageID, SequenceID: rule.SequenceID, Outcome: domain.RouteMatched, RuleIndex: i}
		}
	}

	for i, rule := range node.Routes {
		if rule.IsDefault {
			r.logger.Debug("route default", "message_id", node.ID, "rule", i)
			return rule, RouteDecision{NextMessageID: rule.NextMessageID, SequenceID: rule.SequenceID, Outcome: domain.RouteDefault, RuleIndex: i}
		}
	}

	r.logger.Debug("route fallback", "message_id", node.ID, "next", node.NextMessageID)
	fallback := domain.RouteRule{NextMessageID: node.NextMessageID, SequenceID: node.SequenceID}
	return fallback, RouteDecision{NextMessageID: node.NextMessageID, SequenceID: node.SequenceID, Outcome: domain.RouteFallback, RuleIndex: -1}
}

// ProcessAutoRoute selects a rule and, when it names another sequence,
// performs the transition. The decision's NextMessageID is then the rule's
// nextMessageId inside the new sequence, or that sequence's entry.
func (r *RouteProcessor) ProcessAutoRoute(ctx context.Context, node domain.MessageNode) (RouteDecision, error) {
	if node.Kind != domain.KindAutoroute {
		return RouteDecision{}, fmt.Errorf("message %s is %s, not autoroute", node.ID, node.Kind)
	}

	rule, decision := r.Select(ctx, node)
	if decision.SequenceID == "" || r.switcher == nil {
		return decision, nil
	}

	seq, err := r.switcher.TransitionToSequence(ctx, rule.SequenceID)
	if err != nil {
		return decision, err
	}
	if decision.NextMessageID == "" {
		decision.NextMessageID = seq.EntryID()
	}
	return decision, nil
}
