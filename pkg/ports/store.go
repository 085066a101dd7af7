package ports

import (
	"context"

	"github.com/aretw0/coachflow/pkg/domain"
)

// KeyValueStore is the read/write contract over user, session and task state.
// Keys are dot-namespaced ("user.streak"). Implementations must preserve the
// Int/Float distinction of stored values.
type KeyValueStore interface {
	// Get returns the value stored under key. The boolean is false when the
	// key is absent; that is not an error.
	Get(ctx context.Context, key string) (domain.Value, bool, error)

	// Set overwrites the value stored under key.
	Set(ctx context.Context, key string, value domain.Value) error
}

// ManagedStore is a KeyValueStore that can also enumerate and delete keys.
// Session scoping, snapshots and resets rely on it. Every bundled adapter
// implements it.
type ManagedStore interface {
	KeyValueStore

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists the stored keys starting with prefix, in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
