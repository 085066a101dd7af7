package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/coachflow/internal/compiler"
	"github.com/aretw0/coachflow/pkg/domain"
)

// Loader implements ports.SequenceLoader using an in-memory map.
// Raw documents are parsed on every Load, so a malformed one only fails
// its own loads. Safe for concurrent use.
type Loader struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	seqs   map[string]*domain.Sequence
	parser *compiler.Parser
}

// NewLoader creates a new Loader with the provided raw documents
// (JSON or YAML strings) keyed by sequence id.
func NewLoader(docs map[string]string) *Loader {
	l := &Loader{
		docs:   make(map[string][]byte, len(docs)),
		seqs:   make(map[string]*domain.Sequence),
		parser: compiler.NewParser(),
	}
	for id, doc := range docs {
		l.docs[id] = []byte(doc)
	}
	return l
}

// NewFromSequences creates a Loader from already built sequences.
// This skips parsing entirely, improving DX for tests.
func NewFromSequences(seqs ...*domain.Sequence) *Loader {
	l := NewLoader(nil)
	for _, s := range seqs {
		l.seqs[s.ID] = s
	}
	return l
}

// Put adds or replaces a sequence.
func (l *Loader) Put(seq *domain.Sequence) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.docs, seq.ID)
	l.seqs[seq.ID] = seq
}

// PutDocument adds or replaces a raw document.
func (l *Loader) PutDocument(id, doc string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.seqs, id)
	l.docs[id] = []byte(doc)
}

// Load returns the sequence with the given id.
func (l *Loader) Load(ctx context.Context, id string) (*domain.Sequence, error) {
	l.mu.RLock()
	seq, built := l.seqs[id]
	doc, raw := l.docs[id]
	l.mu.RUnlock()

	switch {
	case built:
		return seq, nil
	case raw:
		return l.parser.ParseNamed(id, doc)
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrSequenceNotFound, id)
}

// List returns all available sequence IDs.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.docs)+len(l.seqs))
	for id := range l.docs {
		ids = append(ids, id)
	}
	for id := range l.seqs {
		ids = append(ids, id)
	}
	sort.Strings(ids) // Deterministic order
	return ids, nil
}
