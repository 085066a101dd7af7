package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/coachflow/internal/logging"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/ports"
)

// Orchestrator is the top-level flow state machine. It drives one
// conversation: a single goroutine at a time, every store access, sequence
// load and trigger happening in declared order.
type Orchestrator struct {
	store       ports.KeyValueStore
	transitions *TransitionManager
	traverser   *Traverser
	evaluator   *ConditionEvaluator
	router      *RouteProcessor
	mutator     *StateMutator
	templates   *TemplateResolver

	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	maxSteps    int
	responseKey string
	persist     bool

	running atomic.Bool

	mu       sync.RWMutex
	state    domain.FlowState
	awaiting string
}

// NewOrchestrator wires the runtime components around loader and store.
func NewOrchestrator(loader ports.SequenceLoader, store ports.KeyValueStore, opts ...Option) *Orchestrator {
	o := newOptions(opts)

	transitions := NewTransitionManager(loader, opts...)
	evaluator := NewConditionEvaluator(store, opts...)

	orch := &Orchestrator{
		store:       store,
		transitions: transitions,
		traverser:   &Traverser{},
		evaluator:   evaluator,
		mutator:     NewStateMutator(store, opts...),
		templates:   NewTemplateResolver(store, opts...),
		hooks:       o.hooks,
		logger:      logging.Component(o.logger, "orchestrator"),
		maxSteps:    o.maxSteps,
		responseKey: o.responseKey,
		persist:     o.persist,
		state:       domain.StateIdle,
	}
	orch.router = NewRouteProcessor(evaluator, switchFunc(orch.switchSequence), opts...)
	return orch
}

// switchFunc adapts a function to SequenceSwitcher.
type switchFunc func(ctx context.Context, id string) (*domain.Sequence, error)

func (f switchFunc) TransitionToSequence(ctx context.Context, id string) (*domain.Sequence, error) {
	return f(ctx, id)
}

// State returns the current flow state.
func (o *Orchestrator) State() domain.FlowState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// AwaitingNodeID returns the node the flow waits on, or "".
func (o *Orchestrator) AwaitingNodeID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.awaiting
}

// CurrentSequenceID returns the active sequence id.
func (o *Orchestrator) CurrentSequenceID() string {
	return o.transitions.CurrentSequenceID()
}

// Transitions exposes the sequence manager.
func (o *Orchestrator) Transitions() *TransitionManager { return o.transitions }

// Evaluator exposes the condition evaluator.
func (o *Orchestrator) Evaluator() *ConditionEvaluator { return o.evaluator }

// cursor is where a run starts: optionally switch sequence first, then walk
// from messageID ("" means the sequence entry).
type cursor struct {
	sequenceID string
	messageID  string
}

// Start activates sequenceID and runs the flow from messageID (the sequence
// entry when empty).
func (o *Orchestrator) Start(ctx context.Context, sequenceID, messageID string) (*domain.TraversalResult, error) {
	if !o.enter() {
		return &domain.TraversalResult{}, nil
	}
	defer o.leave()

	if sequenceID == "" {
		sequenceID = o.transitions.CurrentSequenceID()
	}
	if sequenceID == "" {
		return o.fail(ctx, &domain.TraversalResult{}, domain.ErrNoActiveSequence)
	}
	o.setAwaiting(ctx, "")
	return o.run(ctx, cursor{sequenceID: sequenceID, messageID: messageID})
}

// ProcessFlow runs the flow from startID in the active sequence until it
// needs input or ends. A call made while another is in progress is rejected
// with an empty result.
func (o *Orchestrator) ProcessFlow(ctx context.Context, startID string) (*domain.TraversalResult, error) {
	if !o.enter() {
		return &domain.TraversalResult{}, nil
	}
	defer o.leave()

	if o.transitions.Current() == nil {
		return o.fail(ctx, &domain.TraversalResult{}, domain.ErrNoActiveSequence)
	}
	o.setAwaiting(ctx, "")
	return o.run(ctx, cursor{messageID: startID})
}

// Respond stores the user's answer to the awaited node and continues from
// its continuation: the chosen option's target for choices, the node's
// nextMessageId/sequenceId otherwise. A rejected answer leaves the flow
// waiting on the same node; the returned result carries the error and the
// awaited node. Failures after the answer is accepted end the run like any
// other flow failure.
func (o *Orchestrator) Respond(ctx context.Context, nodeID string, resp domain.Response) (*domain.TraversalResult, error) {
	if !o.enter() {
		return &domain.TraversalResult{}, nil
	}
	defer o.leave()

	awaiting := o.AwaitingNodeID()
	if awaiting == "" || awaiting != nodeID {
		return o.reject(fmt.Errorf("%w: waiting on %q, got %q", domain.ErrNotAwaitingInput, awaiting, nodeID))
	}

	seq := o.transitions.Current()
	node, ok := seq.Node(nodeID)
	if !ok {
		return o.reject(fmt.Errorf("%w: %q in sequence %q", domain.ErrNodeNotFound, nodeID, o.transitions.CurrentSequenceID()))
	}

	stored, next, err := o.answer(ctx, node, resp)
	if err != nil {
		return o.reject(err)
	}

	key := node.StoreKey
	if key == "" {
		key = o.responseKey
	}
	if err := o.store.Set(ctx, key, domain.String(stored)); err != nil {
		return o.fail(ctx, &domain.TraversalResult{}, fmt.Errorf("store response for %s: %w", nodeID, err))
	}
	o.logger.Debug("response stored", "message_id", nodeID, "key", key)
	o.setAwaiting(ctx, "")

	if next.sequenceID == "" && next.messageID == "" {
		o.setState(ctx, domain.StateIdle)
		return &domain.TraversalResult{SequenceID: o.transitions.CurrentSequenceID()}, nil
	}
	return o.run(ctx, next)
}

// reject reports an answer that was not accepted. The flow state is left
// untouched.
func (o *Orchestrator) reject(err error) (*domain.TraversalResult, error) {
	o.logger.Debug("response rejected", "sequence_id", o.transitions.CurrentSequenceID(), "error", err)
	awaiting := o.AwaitingNodeID()
	return &domain.TraversalResult{
		Messages:       []domain.MessageNode{},
		AwaitingInput:  awaiting != "",
		AwaitingNodeID: awaiting,
		SequenceID:     o.transitions.CurrentSequenceID(),
		Err:            err,
	}, err
}

// answer validates resp against node and returns the value to store and
// where the flow continues. Choice labels and values are matched as
// rendered.
func (o *Orchestrator) answer(ctx context.Context, node domain.MessageNode, resp domain.Response) (string, cursor, error) {
	next := cursor{sequenceID: node.SequenceID, messageID: node.NextMessageID}

	switch node.Kind {
	case domain.KindTextInput:
		return resp.Text, next, nil

	case domain.KindChoice:
		choices := o.templates.ResolveChoices(ctx, node.Choices)
		idx := -1
		if resp.ChoiceIndex != nil {
			idx = *resp.ChoiceIndex
		} else {
			text := strings.TrimSpace(resp.Text)
			for i, c := range choices {
				if strings.EqualFold(text, c.Text) || (c.Value != "" && strings.EqualFold(text, c.Value)) {
					idx = i
					break
				}
			}
		}
		if idx < 0 || idx >= len(choices) {
			return "", cursor{}, fmt.Errorf("%w: no option %q for message %s", domain.ErrInvalidResponse, resp.Text, node.ID)
		}

		choice := choices[idx]
		if choice.SequenceID != "" || choice.NextMessageID != "" {
			next = cursor{sequenceID: choice.SequenceID, messageID: choice.NextMessageID}
		}
		return choice.StoredValue(), next, nil
	}

	return "", cursor{}, fmt.Errorf("%w: message %s is %s", domain.ErrInvalidResponse, node.ID, node.Kind)
}

// Restore reinstates the sequence and awaited node persisted in the store
// by a previous run. It reports whether there was anything to restore.
func (o *Orchestrator) Restore(ctx context.Context) (bool, error) {
	seqID, ok := o.readString(ctx, domain.KeyCurrentSequence)
	if !ok {
		return false, nil
	}
	if _, err := o.transitions.TransitionToSequence(ctx, seqID); err != nil {
		return false, err
	}
	if nodeID, ok := o.readString(ctx, domain.KeyAwaitingNode); ok && o.transitions.Current().Has(nodeID) {
		o.mu.Lock()
		o.awaiting = nodeID
		o.mu.Unlock()
		o.setState(ctx, domain.StateAwaitingInput)
	}
	return true, nil
}

func (o *Orchestrator) readString(ctx context.Context, key string) (string, bool) {
	v, ok, err := o.store.Get(ctx, key)
	if err != nil {
		o.logger.Warn("failed to read session key", "key", key, "error", err)
		return "", false
	}
	if !ok || domain.IsNull(v) {
		return "", false
	}
	s := domain.StringForm(v)
	return s, s != ""
}

func (o *Orchestrator) enter() bool {
	if !o.running.CompareAndSwap(false, true) {
		o.logger.Warn("flow already in progress, rejecting re-entrant call")
		return false
	}
	return true
}

func (o *Orchestrator) leave() {
	o.running.Store(false)
}

// run is the traversal loop. Transitions and autoroutes continue the same
// loop, so output is spliced across sequence boundaries.
func (o *Orchestrator) run(ctx context.Context, start cursor) (*domain.TraversalResult, error) {
	result := &domain.TraversalResult{Messages: []domain.MessageNode{}}
	budget := &stepBudget{limit: o.maxSteps}

	o.setState(ctx, domain.StateTraversing)

	pos := start
	for {
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, result, err)
		}

		if pos.sequenceID != "" {
			seq, err := o.switchSequence(ctx, pos.sequenceID)
			if err != nil {
				result.RequiresTransition = true
				result.TransitionTarget = pos.sequenceID
				return o.fail(ctx, result, err)
			}
			if pos.messageID == "" {
				pos.messageID = seq.EntryID()
			}
			pos.sequenceID = ""
		}

		seq := o.transitions.Current()
		if pos.messageID == "" {
			pos.messageID = seq.EntryID()
		}

		seg, err := o.traverser.Collect(seq, pos.messageID, budget)
		if err != nil {
			return o.fail(ctx, result, err)
		}

		o.setState(ctx, domain.StateProcessingMessages)
		for _, node := range seg.Nodes {
			if node.Kind.IsSilent() {
				continue
			}
			o.render(ctx, result, seq.ID, node)
		}

		last := seg.Last()
		var next cursor
		switch seg.Stop {
		case StopInteractive:
			result.AwaitingInput = true
			result.AwaitingNodeID = last.ID
			result.SequenceID = seq.ID
			o.setAwaiting(ctx, last.ID)
			o.setState(ctx, domain.StateAwaitingInput)
			return result, nil

		case StopDeadEnd:
			result.SequenceID = seq.ID
			o.setState(ctx, domain.StateIdle)
			return result, nil

		case StopJump:
			next = cursor{sequenceID: last.SequenceID, messageID: last.NextMessageID}

		case StopSilent:
			if last.Kind == domain.KindAutoroute {
				next, err = o.route(ctx, seq.ID, last)
				if err != nil {
					result.RequiresTransition = true
					result.TransitionTarget = next.sequenceID
					return o.fail(ctx, result, err)
				}
			} else {
				o.execute(ctx, seq.ID, last)
				next = cursor{sequenceID: last.SequenceID, messageID: last.NextMessageID}
			}
		}

		if next.sequenceID == "" && next.messageID == "" {
			result.SequenceID = o.transitions.CurrentSequenceID()
			o.setState(ctx, domain.StateIdle)
			return result, nil
		}
		o.setState(ctx, domain.StateTraversing)
		pos = next
	}
}

func (o *Orchestrator) switchSequence(ctx context.Context, id string) (*domain.Sequence, error) {
	o.setState(ctx, domain.StateTransitioningSequence)
	seq, err := o.transitions.TransitionToSequence(ctx, id)
	if err != nil {
		return nil, err
	}
	o.persistString(ctx, domain.KeyCurrentSequence, seq.ID)
	o.setState(ctx, domain.StateTraversing)
	return seq, nil
}

// route resolves an autoroute node. A rule naming another sequence has
// already been switched to when route returns; on failure the returned
// cursor names the sequence that could not be entered.
func (o *Orchestrator) route(ctx context.Context, seqID string, node domain.MessageNode) (cursor, error) {
	o.setState(ctx, domain.StateProcessingRoutes)

	decision, err := o.router.ProcessAutoRoute(ctx, node)
	o.emitRoute(ctx, seqID, node.ID, decision)
	if err != nil {
		return cursor{sequenceID: decision.SequenceID}, err
	}
	return cursor{messageID: decision.NextMessageID}, nil
}

func (o *Orchestrator) execute(ctx context.Context, seqID string, node domain.MessageNode) {
	report := o.mutator.Execute(ctx, node.DataActions)
	if o.hooks.OnDataAction == nil {
		return
	}
	for _, outcome := range report.Outcomes {
		o.hooks.OnDataAction(ctx, &domain.ActionEvent{
			EventBase: o.base(domain.EventDataAction, seqID),
			MessageID: node.ID,
			Kind:      outcome.Kind,
			Key:       outcome.Key,
			Skipped:   outcome.Skipped,
		})
	}
}

func (o *Orchestrator) render(ctx context.Context, result *domain.TraversalResult, seqID string, node domain.MessageNode) {
	for _, bubble := range o.templates.Render(ctx, node) {
		result.Messages = append(result.Messages, bubble)
		if o.hooks.OnMessageRendered != nil {
			o.hooks.OnMessageRendered(ctx, &domain.MessageEvent{
				EventBase: o.base(domain.EventMessageRendered, seqID),
				MessageID: bubble.ID,
				Kind:      bubble.Kind,
			})
		}
	}
}

// fail surfaces err, passing through the error state back to idle.
func (o *Orchestrator) fail(ctx context.Context, result *domain.TraversalResult, err error) (*domain.TraversalResult, error) {
	o.logger.Error("flow failed", "sequence_id", o.transitions.CurrentSequenceID(), "error", err)
	o.setState(ctx, domain.StateError)
	o.setState(ctx, domain.StateIdle)

	result.Err = err
	if result.SequenceID == "" {
		result.SequenceID = o.transitions.CurrentSequenceID()
	}

	var terr *domain.TransitionError
	if errors.As(err, &terr) && terr.Inconsistent {
		o.persistString(ctx, domain.KeyCurrentSequence, "")
	}
	return result, err
}

func (o *Orchestrator) setState(ctx context.Context, next domain.FlowState) {
	o.mu.Lock()
	prev := o.state
	o.state = next
	o.mu.Unlock()

	if prev == next {
		return
	}
	o.logger.Debug("state change", "from", prev, "to", next)
	if o.hooks.OnStateChange != nil {
		o.hooks.OnStateChange(ctx, &domain.StateEvent{
			EventBase: o.base(domain.EventStateChange, o.transitions.CurrentSequenceID()),
			From:      prev,
			To:        next,
		})
	}
}

func (o *Orchestrator) setAwaiting(ctx context.Context, nodeID string) {
	o.mu.Lock()
	changed := o.awaiting != nodeID
	o.awaiting = nodeID
	o.mu.Unlock()

	if changed {
		o.persistString(ctx, domain.KeyAwaitingNode, nodeID)
	}
}

// persistString writes session bookkeeping; an empty value is stored as null.
func (o *Orchestrator) persistString(ctx context.Context, key, value string) {
	if !o.persist || o.store == nil {
		return
	}
	var v domain.Value = domain.Null{}
	if value != "" {
		v = domain.String(value)
	}
	if err := o.store.Set(ctx, key, v); err != nil {
		o.logger.Warn("failed to persist session key", "key", key, "error", err)
	}
}

func (o *Orchestrator) emitRoute(ctx context.Context, seqID, nodeID string, d RouteDecision) {
	if o.hooks.OnRouteDecision == nil {
		return
	}
	target := d.NextMessageID
	if d.SequenceID != "" {
		target = domain.RouteRule{SequenceID: d.SequenceID, NextMessageID: d.NextMessageID}.Target()
	}
	o.hooks.OnRouteDecision(ctx, &domain.RouteEvent{
		EventBase: o.base(domain.EventRouteDecision, seqID),
		MessageID: nodeID,
		Outcome:   d.Outcome,
		RuleIndex: d.RuleIndex,
		Target:    target,
	})
}

func (o *Orchestrator) base(t domain.EventType, seqID string) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, SequenceID: seqID}
}
