package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/coachflow/internal/compiler"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/loam"
)

// Loader adapts a Loam repository to ports.SequenceLoader.
type Loader struct {
	Repo   *loam.TypedRepository[SequenceMetadata]
	parser *compiler.Parser
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[SequenceMetadata]) *Loader {
	return &Loader{
		Repo:   repo,
		parser: compiler.NewParser(),
	}
}

// Load retrieves the sequence with the given id. Loam resolves "intro" to
// intro.yaml/intro.json/intro.md; documents whose declared sequenceId
// differs from their file name are found by listing the repository.
func (l *Loader) Load(ctx context.Context, id string) (*domain.Sequence, error) {
	doc, err := l.Repo.Get(ctx, id)
	if err == nil {
		return l.parser.ParseMap(trimExtension(doc.ID), doc.Data.raw())
	}

	docs, listErr := l.Repo.List(ctx)
	if listErr != nil {
		return nil, fmt.Errorf("loam list failed: %w", listErr)
	}
	for _, d := range docs {
		if d.Data.declaredID() == id {
			return l.parser.ParseMap(trimExtension(d.ID), d.Data.raw())
		}
	}
	return nil, fmt.Errorf("%w: %s (loam get failed: %v)", domain.ErrSequenceNotFound, id, err)
}

// List returns the ids of all sequences in the repository, sorted.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Data.Messages) == 0 {
			continue
		}
		id := doc.Data.declaredID()
		if id == "" {
			id = trimExtension(doc.ID)
		}
		if existingPath, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: sequence '%s' is defined in both '%s' and '%s'", id, existingPath, doc.ID)
		}
		seen[id] = doc.ID
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Watch implements ports.Watchable.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Open initializes a read-only Loam repository at dir and wraps it in a
// Loader. Strict mode keeps numbers as json.Number across JSON and YAML
// documents.
func Open(dir string) (*Loader, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(abs,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[SequenceMetadata](repo)), nil
}
