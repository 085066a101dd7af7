package session

import (
	"context"
	"strings"

	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/ports"
)

// Separator joins a session id and a store key.
const Separator = ":"

// ScopedStore confines a ManagedStore to the keys of one session.
type ScopedStore struct {
	inner  ports.ManagedStore
	prefix string
}

// Scoped returns the view of inner that belongs to sessionID.
func Scoped(inner ports.ManagedStore, sessionID string) *ScopedStore {
	return &ScopedStore{inner: inner, prefix: sessionID + Separator}
}

func (s *ScopedStore) Get(ctx context.Context, key string) (domain.Value, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *ScopedStore) Set(ctx context.Context, key string, value domain.Value) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *ScopedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

// Keys returns the session's keys without the session prefix.
func (s *ScopedStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.inner.Keys(ctx, s.prefix+prefix)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, s.prefix)
	}
	return keys, nil
}
