package ports

import (
	"context"

	"github.com/aretw0/coachflow/pkg/domain"
)

// SequenceLoader defines how the engine retrieves sequence documents.
// This allows the storage layer (files, Loam, Memory) to be decoupled.
type SequenceLoader interface {
	// Load parses and indexes the sequence with the given id.
	// It returns an error wrapping domain.ErrSequenceNotFound when no document
	// carries that id, and a *domain.ParseError when the document is malformed.
	Load(ctx context.Context, id string) (*domain.Sequence, error)

	// List returns the ids of every sequence available to the loader.
	// This is used for validation and introspection tools (e.g. 'coachflow graph').
	List(ctx context.Context) ([]string, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel carrying the id of each changed document.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context) (<-chan string, error)
}
