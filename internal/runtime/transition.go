package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/coachflow/internal/logging"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/ports"
)

// TransitionManager owns the active sequence and switches it atomically:
// backup, load, validate, then commit or roll back.
type TransitionManager struct {
	loader ports.SequenceLoader
	hooks  domain.LifecycleHooks
	logger *slog.Logger

	mu      sync.RWMutex
	current *domain.Sequence
}

// NewTransitionManager creates a manager loading sequences from loader.
func NewTransitionManager(loader ports.SequenceLoader, opts ...Option) *TransitionManager {
	o := newOptions(opts)
	return &TransitionManager{
		loader: loader,
		hooks:  o.hooks,
		logger: logging.Component(o.logger, "transition"),
	}
}

// Current returns the active sequence, or nil before the first transition.
func (m *TransitionManager) Current() *domain.Sequence {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// CurrentSequenceID returns the active sequence id ("" when none).
func (m *TransitionManager) CurrentSequenceID() string {
	if seq := m.Current(); seq != nil {
		return seq.ID
	}
	return ""
}

// TransitionToSequence makes id the active sequence.
//
// A load failure leaves the active sequence untouched. A loaded sequence
// that fails validation is replaced by a single reload of the previous one;
// if that reload fails too, the returned TransitionError is marked
// Inconsistent and no sequence is active.
func (m *TransitionManager) TransitionToSequence(ctx context.Context, id string) (*domain.Sequence, error) {
	backupID := m.CurrentSequenceID()
	log := m.logger.With("from", backupID, "to", id)

	seq, err := m.loader.Load(ctx, id)
	if err != nil {
		terr := &domain.TransitionError{From: backupID, To: id, Phase: domain.PhaseLoad, Err: err}
		log.Error("sequence load failed", "error", err)
		m.emit(ctx, backupID, id, terr, false)
		return nil, terr
	}

	m.setCurrent(seq)

	if verr := validateLoaded(id, seq); verr != nil {
		log.Warn("loaded sequence failed validation, rolling back", "error", verr)
		return nil, m.rollback(ctx, backupID, id, verr)
	}

	log.Info("sequence transition committed", "messages", seq.Len())
	m.emit(ctx, backupID, id, nil, false)
	return seq, nil
}

func (m *TransitionManager) rollback(ctx context.Context, backupID, target string, cause error) error {
	terr := &domain.TransitionError{From: backupID, To: target, Phase: domain.PhaseValidate, Err: cause}

	if backupID == "" {
		m.setCurrent(nil)
		m.emit(ctx, backupID, target, terr, true)
		return terr
	}

	prev, err := m.loader.Load(ctx, backupID)
	if err == nil {
		err = validateLoaded(backupID, prev)
	}
	if err != nil {
		m.setCurrent(nil)
		terr.Phase = domain.PhaseRollback
		terr.RollbackErr = err
		terr.Inconsistent = true
		m.logger.Error("rollback failed, no active sequence", "from", backupID, "to", target, "error", terr)
		m.emit(ctx, backupID, target, terr, false)
		return terr
	}

	m.setCurrent(prev)
	m.emit(ctx, backupID, target, terr, true)
	return terr
}

// validateLoaded checks the invariants every active sequence must hold.
func validateLoaded(requested string, seq *domain.Sequence) error {
	switch {
	case seq == nil:
		return errors.New("loader returned no sequence")
	case seq.ID != requested:
		return fmt.Errorf("loaded sequence id %q does not match requested %q", seq.ID, requested)
	case seq.Len() == 0:
		return errors.New("sequence has no messages")
	}
	return nil
}

func (m *TransitionManager) setCurrent(seq *domain.Sequence) {
	m.mu.Lock()
	m.current = seq
	m.mu.Unlock()
}

func (m *TransitionManager) emit(ctx context.Context, from, to string, err error, rolledBack bool) {
	if m.hooks.OnTransition == nil {
		return
	}
	m.hooks.OnTransition(ctx, &domain.TransitionEvent{
		EventBase: domain.EventBase{
			Timestamp:  time.Now(),
			Type:       domain.EventTransition,
			SequenceID: m.CurrentSequenceID(),
		},
		From:       from,
		To:         to,
		Err:        err,
		RolledBack: rolledBack,
	})
}
