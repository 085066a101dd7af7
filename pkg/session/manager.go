package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/coachflow/internal/logging"
	"github.com/aretw0/coachflow/internal/runtime"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can hold a session.
const DefaultLockTTL = 30 * time.Second

// ErrInvalidSessionID is returned for empty ids and ids containing Separator.
var ErrInvalidSessionID = errors.New("invalid session id")

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager runs one flow per session over a shared loader and store.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	loader ports.SequenceLoader
	store  ports.ManagedStore

	mu    sync.Mutex
	locks map[string]*lockEntry
	flows map[string]*runtime.Orchestrator

	locker       ports.DistributedLocker
	lockTTL      time.Duration
	sink         ports.EventSink
	runtimeOpts  []runtime.Option
	entrySeq     string
	entryMsg     string
	maxInputSize int
	baseLogger   *slog.Logger
	logger       *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking. Flows are then rebuilt from the
// store on every call, since another replica may have advanced them.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.baseLogger = logger
		m.logger = logging.Component(logger, "session")
	}
}

// WithEventSink routes trigger events to sink with the session id added to
// every payload under "sessionId".
func WithEventSink(sink ports.EventSink) Option {
	return func(m *Manager) {
		m.sink = sink
	}
}

// WithRuntimeOptions passes options to every flow the Manager creates.
func WithRuntimeOptions(opts ...runtime.Option) Option {
	return func(m *Manager) {
		m.runtimeOpts = append(m.runtimeOpts, opts...)
	}
}

// WithEntry sets where a session with nothing to resume starts.
// An empty messageID means the sequence entry.
func WithEntry(sequenceID, messageID string) Option {
	return func(m *Manager) {
		m.entrySeq = sequenceID
		m.entryMsg = messageID
	}
}

// WithMaxInputSize overrides DefaultMaxInputSize for response texts.
func WithMaxInputSize(n int) Option {
	return func(m *Manager) {
		m.maxInputSize = n
	}
}

// NewManager creates a session manager.
func NewManager(loader ports.SequenceLoader, store ports.ManagedStore, opts ...Option) *Manager {
	m := &Manager{
		loader:       loader,
		store:        store,
		locks:        make(map[string]*lockEntry),
		flows:        make(map[string]*runtime.Orchestrator),
		lockTTL:      DefaultLockTTL,
		maxInputSize: DefaultMaxInputSize,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the shared, unscoped store.
func (m *Manager) Store() ports.ManagedStore {
	return m.store
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock executes fn while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	if err := validateID(sessionID); err != nil {
		return err
	}

	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Start runs the session's flow from messageID of sequenceID. With both ids
// empty the session resumes on the node it waits on, or starts the entry
// point when there is nothing to resume.
func (m *Manager) Start(ctx context.Context, sessionID, sequenceID, messageID string) (*domain.TraversalResult, error) {
	var result *domain.TraversalResult
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		flow, err := m.flow(ctx, sessionID)
		if err != nil {
			return err
		}

		if sequenceID == "" && messageID == "" {
			if awaiting := flow.AwaitingNodeID(); awaiting != "" {
				sequenceID, messageID = flow.CurrentSequenceID(), awaiting
			} else if m.entrySeq != "" {
				sequenceID, messageID = m.entrySeq, m.entryMsg
			}
		}

		result, err = flow.Start(ctx, sequenceID, messageID)
		return err
	})
	return result, err
}

// Respond sanitises the response text and hands it to the session's flow.
func (m *Manager) Respond(ctx context.Context, sessionID, nodeID string, resp domain.Response) (*domain.TraversalResult, error) {
	text, err := SanitizeInput(resp.Text, m.maxInputSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidResponse, err)
	}
	resp.Text = text

	var result *domain.TraversalResult
	err = m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		flow, err := m.flow(ctx, sessionID)
		if err != nil {
			return err
		}
		result, err = flow.Respond(ctx, nodeID, resp)
		return err
	})
	return result, err
}

// Values returns every stored value of the session, keyed without the
// session prefix.
func (m *Manager) Values(ctx context.Context, sessionID string) (map[string]domain.Value, error) {
	out := make(map[string]domain.Value)
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		scoped := Scoped(m.store, sessionID)
		keys, err := scoped.Keys(ctx, "")
		if err != nil {
			return err
		}
		for _, k := range keys {
			v, ok, err := scoped.Get(ctx, k)
			if err != nil {
				return err
			}
			if ok {
				out[k] = v
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes every key of the session and forgets its flow.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.mu.Lock()
		delete(m.flows, sessionID)
		m.mu.Unlock()

		scoped := Scoped(m.store, sessionID)
		keys, err := scoped.Keys(ctx, "")
		if err != nil {
			return err
		}
		var errs []error
		for _, k := range keys {
			if err := scoped.Delete(ctx, k); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Evict drops the cached flows of the given sessions, or of every session
// when none is given. The next call rebuilds them from the store, reloading
// their sequences.
func (m *Manager) Evict(sessionIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(sessionIDs) == 0 {
		clear(m.flows)
		return
	}
	for _, id := range sessionIDs {
		delete(m.flows, id)
	}
}

// List returns the ids of sessions that have an active sequence, sorted.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	keys, err := m.store.Keys(ctx, "")
	if err != nil {
		return nil, err
	}
	suffix := Separator + domain.KeyCurrentSequence
	var ids []string
	for _, k := range keys {
		if id, ok := strings.CutSuffix(k, suffix); ok && id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// flow returns the session's orchestrator, building and restoring it from
// the store when it is not cached. Must be called under the session lock.
func (m *Manager) flow(ctx context.Context, sessionID string) (*runtime.Orchestrator, error) {
	if m.locker == nil {
		m.mu.Lock()
		flow, ok := m.flows[sessionID]
		m.mu.Unlock()
		if ok {
			return flow, nil
		}
	}

	opts := append([]runtime.Option{runtime.WithLogger(m.baseLogger)}, m.runtimeOpts...)
	if m.sink != nil {
		opts = append(opts, runtime.WithEventSink(&sessionSink{inner: m.sink, sessionID: sessionID}))
	}
	flow := runtime.NewOrchestrator(m.loader, Scoped(m.store, sessionID), opts...)

	restored, err := flow.Restore(ctx)
	if err != nil {
		// A sequence that no longer loads must not lock the user out; the
		// next Start re-enters through the entry point.
		m.logger.Warn("failed to restore session", "session_id", sessionID, "err", err)
	} else if restored {
		m.logger.Debug("session restored", "session_id", sessionID,
			"sequence_id", flow.CurrentSequenceID(),
			"awaiting", flow.AwaitingNodeID(),
		)
	}

	if m.locker == nil {
		m.mu.Lock()
		m.flows[sessionID] = flow
		m.mu.Unlock()
	}
	return flow, nil
}

func validateID(sessionID string) error {
	if sessionID == "" || strings.Contains(sessionID, Separator) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}
	return nil
}

// sessionSink tags trigger payloads with the session id.
type sessionSink struct {
	inner     ports.EventSink
	sessionID string
}

func (s *sessionSink) Trigger(ctx context.Context, event string, payload map[string]any) error {
	tagged := make(map[string]any, len(payload)+1)
	maps.Copy(tagged, payload)
	tagged["sessionId"] = s.sessionID
	return s.inner.Trigger(ctx, event, tagged)
}
