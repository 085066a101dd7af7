package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/coachflow/internal/logging"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/ports"
)

// ActionError reports a data action that was skipped because its data could
// not be coerced. Traversal continues.
type ActionError struct {
	Kind domain.ActionKind
	Key  string
	Err  error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Key, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// TriggerError reports a failed event trigger. It is logged and discarded.
type TriggerError struct {
	Event string
	Err   error
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("trigger %s: %v", e.Event, e.Err)
}

func (e *TriggerError) Unwrap() error { return e.Err }

// ActionOutcome is the result of one data action.
type ActionOutcome struct {
	Kind    domain.ActionKind
	Key     string
	Skipped bool
	Err     error
}

// ExecutionReport summarises a batch run by StateMutator.Execute.
type ExecutionReport struct {
	Outcomes []ActionOutcome
}

// Applied counts actions that were not skipped.
func (r ExecutionReport) Applied() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Skipped {
			n++
		}
	}
	return n
}

// Errors returns the errors of skipped or failed actions.
func (r ExecutionReport) Errors() []error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}

var (
	errMissingValue = errors.New("missing value")
	errNotNumeric   = errors.New("value is not an integer")
	errNotListLike  = errors.New("stored value is not list-like")
)

// StateMutator executes data actions against the key/value store.
type StateMutator struct {
	store  ports.KeyValueStore
	tokens *DateTokens
	sink   ports.EventSink
	logger *slog.Logger
}

// NewStateMutator creates a mutator writing to store.
func NewStateMutator(store ports.KeyValueStore, opts ...Option) *StateMutator {
	o := newOptions(opts)
	return &StateMutator{
		store:  store,
		tokens: NewDateTokens(store, opts...),
		sink:   o.sink,
		logger: logging.Component(o.logger, "mutator"),
	}
}

// Execute runs actions strictly in order; later actions observe the writes
// of earlier ones. A failing action is skipped and reported, and the rest of
// the batch still runs.
func (m *StateMutator) Execute(ctx context.Context, actions []domain.DataActionSpec) ExecutionReport {
	report := ExecutionReport{Outcomes: make([]ActionOutcome, 0, len(actions))}

	for _, action := range actions {
		outcome := ActionOutcome{Kind: action.Kind, Key: action.Key}
		if err := m.apply(ctx, action); err != nil {
			outcome.Skipped = true
			outcome.Err = err

			var actionErr *ActionError
			if errors.As(err, &actionErr) {
				m.logger.Warn("action skipped", "kind", action.Kind, "key", action.Key, "error", err)
			} else {
				m.logger.Error("action failed", "kind", action.Kind, "key", action.Key, "error", err)
			}
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return report
}

func (m *StateMutator) apply(ctx context.Context, action domain.DataActionSpec) error {
	switch action.Kind {
	case domain.ActionSet:
		return m.set(ctx, action)
	case domain.ActionIncrement:
		return m.add(ctx, action, 1)
	case domain.ActionDecrement:
		return m.add(ctx, action, -1)
	case domain.ActionReset:
		return m.reset(ctx, action)
	case domain.ActionAppend:
		return m.appendItems(ctx, action)
	case domain.ActionRemove:
		return m.removeItems(ctx, action)
	case domain.ActionTrigger:
		m.trigger(ctx, action)
		return nil
	}
	return &ActionError{Kind: action.Kind, Key: action.Key, Err: fmt.Errorf("unknown action type %q", action.Kind)}
}

// resolve substitutes reserved date tokens; other values pass through.
func (m *StateMutator) resolve(ctx context.Context, v domain.Value) domain.Value {
	if s, ok := v.(domain.String); ok && domain.IsDateToken(string(s)) {
		if resolved, ok := m.tokens.Resolve(ctx, string(s)); ok {
			return resolved
		}
	}
	return v
}

func (m *StateMutator) set(ctx context.Context, action domain.DataActionSpec) error {
	v := action.Value
	if v == nil {
		v = domain.Null{}
	}
	return m.write(ctx, action.Key, m.resolve(ctx, v))
}

func (m *StateMutator) add(ctx context.Context, action domain.DataActionSpec, sign int64) error {
	by := int64(1)
	if action.Value != nil && !domain.IsNull(action.Value) {
		n, ok := domain.AsInt(action.Value)
		if !ok {
			return &ActionError{Kind: action.Kind, Key: action.Key, Err: errNotNumeric}
		}
		by = n
	}

	current, _, err := m.read(ctx, action.Key)
	if err != nil {
		return err
	}
	n, ok := domain.AsInt(current)
	if !ok {
		n = 0
	}
	return m.write(ctx, action.Key, domain.Int(n+sign*by))
}

func (m *StateMutator) reset(ctx context.Context, action domain.DataActionSpec) error {
	v := action.Value
	if v == nil {
		v = domain.Int(0)
	}
	return m.write(ctx, action.Key, m.resolve(ctx, v))
}

func (m *StateMutator) appendItems(ctx context.Context, action domain.DataActionSpec) error {
	if action.Value == nil {
		return &ActionError{Kind: action.Kind, Key: action.Key, Err: errMissingValue}
	}

	current, ok, err := m.read(ctx, action.Key)
	if err != nil {
		return err
	}
	list := domain.List{}
	if ok && !domain.IsNull(current) {
		existing, isList := domain.AsList(current)
		if !isList {
			return &ActionError{Kind: action.Kind, Key: action.Key, Err: errNotListLike}
		}
		list = append(list, existing...)
	}

	changed := false
	for _, item := range itemsOf(m.resolve(ctx, action.Value)) {
		if len(list) > 0 {
			item = domain.CoerceLike(item, list[0])
		}
		if domain.IndexOf(list, item) >= 0 {
			continue
		}
		list = append(list, item)
		changed = true
	}
	if !changed && ok {
		if _, native := current.(domain.List); native {
			return nil
		}
	}
	return m.write(ctx, action.Key, list)
}

func (m *StateMutator) removeItems(ctx context.Context, action domain.DataActionSpec) error {
	if action.Value == nil {
		return &ActionError{Kind: action.Kind, Key: action.Key, Err: errMissingValue}
	}

	current, ok, err := m.read(ctx, action.Key)
	if err != nil {
		return err
	}
	if !ok || domain.IsNull(current) {
		m.logger.Warn("remove on absent key", "key", action.Key)
		return nil
	}
	existing, isList := domain.AsList(current)
	if !isList {
		m.logger.Warn("remove on non list-like value", "key", action.Key, "value", domain.StringForm(current))
		return nil
	}

	targets := itemsOf(m.resolve(ctx, action.Value))
	kept := make(domain.List, 0, len(existing))
	for _, item := range existing {
		drop := false
		for _, target := range targets {
			if domain.Equal(item, domain.CoerceLike(target, item)) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, item)
		}
	}
	return m.write(ctx, action.Key, kept)
}

func (m *StateMutator) trigger(ctx context.Context, action domain.DataActionSpec) {
	if m.sink == nil {
		m.logger.Debug("no event sink registered, dropping trigger", "event", action.Event)
		return
	}

	payload := make(map[string]any, len(action.Data))
	for k, v := range action.Data {
		if s, ok := v.(string); ok && domain.IsDateToken(s) {
			if resolved, ok := m.tokens.Resolve(ctx, s); ok {
				v = domain.ToAny(resolved)
			}
		}
		payload[k] = v
	}

	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("trigger panicked", "error", &TriggerError{Event: action.Event, Err: fmt.Errorf("panic: %v", r)})
		}
	}()
	if err := m.sink.Trigger(ctx, action.Event, payload); err != nil {
		m.logger.Warn("trigger failed", "error", &TriggerError{Event: action.Event, Err: err})
	}
}

func (m *StateMutator) read(ctx context.Context, key string) (domain.Value, bool, error) {
	if m.store == nil {
		return nil, false, errors.New("no store configured")
	}
	v, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return v, ok, nil
}

func (m *StateMutator) write(ctx context.Context, key string, v domain.Value) error {
	if m.store == nil {
		return errors.New("no store configured")
	}
	if err := m.store.Set(ctx, key, v); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	m.logger.Debug("store updated", "key", key, "value", domain.StringForm(v))
	return nil
}

// itemsOf spreads a list argument so append/remove accept one or many values.
func itemsOf(v domain.Value) domain.List {
	if l, ok := v.(domain.List); ok {
		return l
	}
	return domain.List{v}
}
