package coachflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/coachflow/internal/logging"
	"github.com/aretw0/coachflow/internal/runtime"
	"github.com/aretw0/coachflow/internal/validator"
	"github.com/aretw0/coachflow/pkg/adapters/file"
	"github.com/aretw0/coachflow/pkg/adapters/memory"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/observability"
	"github.com/aretw0/coachflow/pkg/ports"
	"github.com/aretw0/coachflow/pkg/session"
)

// Engine is the high-level entry point of the library. It hosts any number
// of sessions over one sequence loader and one key/value store, and
// implements ports.FlowService for the transports.
type Engine struct {
	loader   ports.SequenceLoader
	store    ports.ManagedStore
	sessions *session.Manager
	metrics  *observability.Metrics
	hooks    domain.LifecycleHooks
	logger   *slog.Logger

	runtimeOpts []runtime.Option
	sessionOpts []session.Option

	// Name labels the engine in logs; it defaults to the base of the
	// sequences directory.
	Name string
}

var _ ports.FlowService = (*Engine)(nil)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLoader injects a custom SequenceLoader, bypassing the default file loader.
func WithLoader(l ports.SequenceLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithStore sets the key/value store shared by all sessions (default: in memory).
func WithStore(s ports.ManagedStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls merge.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithMetrics records lifecycle events and call durations in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithEventSink sets the receiver of trigger actions.
func WithEventSink(sink ports.EventSink) Option {
	return func(e *Engine) {
		e.sessionOpts = append(e.sessionOpts, session.WithEventSink(sink))
	}
}

// WithLocker serialises sessions across replicas.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.sessionOpts = append(e.sessionOpts, session.WithLocker(locker), session.WithLockTTL(ttl))
	}
}

// WithEntry sets where new sessions start: sequenceID at messageID (the
// sequence entry when empty).
func WithEntry(sequenceID, messageID string) Option {
	return func(e *Engine) {
		e.sessionOpts = append(e.sessionOpts, session.WithEntry(sequenceID, messageID))
	}
}

// WithMaxInputSize bounds response texts in bytes.
func WithMaxInputSize(n int) Option {
	return func(e *Engine) {
		e.sessionOpts = append(e.sessionOpts, session.WithMaxInputSize(n))
	}
}

// WithContentResolver resolves contentKey-only messages.
func WithContentResolver(r ports.ContentResolver) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithContentResolver(r))
	}
}

// WithFormatters sets the display tables used in templates.
func WithFormatters(f ports.Formatters) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithFormatters(f))
	}
}

// WithClock overrides time.Now for date tokens.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithClock(clock))
	}
}

// WithBubbleSeparator overrides the multi-bubble separator (default "|||").
func WithBubbleSeparator(sep string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithBubbleSeparator(sep))
	}
}

// WithMaxSteps bounds node visits per flow run (default 1000).
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxSteps(n))
	}
}

// WithResponseKey sets where responses go when a node has no storeKey.
func WithResponseKey(key string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithResponseKey(key))
	}
}

// WithActiveDaysKey sets the store key holding the active weekday set.
func WithActiveDaysKey(key string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithActiveDaysKey(key))
	}
}

// WithAnchorKey sets the store key holding the FIRST_ACTIVE_DATE anchor.
func WithAnchorKey(key string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithAnchorKey(key))
	}
}

// New initializes an Engine.
// By default, sequences are read from the directory dir and state is kept
// in memory. If WithLoader is provided, dir can be empty.
func New(dir string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.loader == nil {
		if dir == "" {
			return nil, errors.New("dir is required when no custom loader is provided")
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		eng.loader = file.NewLoader(abs)
		eng.Name = filepath.Base(abs)
	} else if dir != "" {
		eng.Name = filepath.Base(dir)
	}

	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("flow", eng.Name)
	}

	hooks := eng.hooks
	if eng.metrics != nil {
		hooks = hooks.Merge(eng.metrics.Hooks())
	}

	runtimeOpts := append([]runtime.Option{runtime.WithLifecycleHooks(hooks)}, eng.runtimeOpts...)
	sessionOpts := append([]session.Option{
		session.WithLogger(eng.logger),
		session.WithRuntimeOptions(runtimeOpts...),
	}, eng.sessionOpts...)

	eng.sessions = session.NewManager(eng.loader, eng.store, sessionOpts...)
	return eng, nil
}

// Start runs sessionID's flow from messageID of sequenceID. Empty ids resume
// the session where it stopped, or start the configured entry point.
func (e *Engine) Start(ctx context.Context, sessionID, sequenceID, messageID string) (res *domain.TraversalResult, err error) {
	defer e.observe("start", time.Now(), &err)
	return e.sessions.Start(ctx, sessionID, sequenceID, messageID)
}

// Respond answers the node sessionID waits on and continues the flow.
func (e *Engine) Respond(ctx context.Context, sessionID, nodeID string, resp domain.Response) (res *domain.TraversalResult, err error) {
	defer e.observe("respond", time.Now(), &err)
	return e.sessions.Respond(ctx, sessionID, nodeID, resp)
}

// Sequence loads a sequence for introspection.
func (e *Engine) Sequence(ctx context.Context, id string) (*domain.Sequence, error) {
	return e.loader.Load(ctx, id)
}

// Sequences lists the available sequence ids.
func (e *Engine) Sequences(ctx context.Context) ([]string, error) {
	return e.loader.List(ctx)
}

// Validate checks every sequence the loader lists for dangling references,
// unreachable messages and other authoring mistakes.
func (e *Engine) Validate(ctx context.Context) (validator.Report, error) {
	report, err := validator.New(e.loader).ValidateAll(ctx)
	report.Sort()
	return report, err
}

// Sessions exposes the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Loader returns the underlying SequenceLoader used by the engine.
func (e *Engine) Loader() ports.SequenceLoader {
	return e.loader
}

// Store returns the shared key/value store.
func (e *Engine) Store() ports.ManagedStore {
	return e.store
}

// Watch returns a channel that receives the id of every changed sequence
// document. Returns an error if the loader does not support watching.
func (e *Engine) Watch(ctx context.Context) (<-chan string, error) {
	if w, ok := e.loader.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, errors.New("current loader does not support watching")
}

// NewFlow creates a single conversation over store that shares the engine's
// loader and settings but bypasses session scoping and locking.
func (e *Engine) NewFlow(store ports.KeyValueStore) *Flow {
	opts := append([]runtime.Option{
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
	}, e.runtimeOpts...)
	return &Flow{orch: runtime.NewOrchestrator(e.loader, store, opts...)}
}

func (e *Engine) observe(op string, start time.Time, err *error) {
	if e.metrics != nil {
		e.metrics.ObserveCall(op, start, *err)
	}
	if *err != nil {
		e.logger.Debug("flow call failed", "operation", op, "err", *err)
	}
}
