package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/coachflow/internal/compiler"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/fsnotify/fsnotify"
)

var sequenceExtensions = []string{".json", ".yaml", ".yml"}

// Loader reads sequence documents from a directory. A document is found by
// file name first (intro.yaml for "intro"), then by scanning every document
// for a matching sequenceId.
type Loader struct {
	Dir    string
	parser *compiler.Parser
}

// NewLoader creates a loader over dir.
func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir, parser: compiler.NewParser()}
}

// Load parses the sequence with the given id.
func (l *Loader) Load(ctx context.Context, id string) (*domain.Sequence, error) {
	for _, ext := range sequenceExtensions {
		path := filepath.Join(l.Dir, id+ext)
		data, err := os.ReadFile(path)
		if err == nil {
			return l.parser.ParseNamed(id, data)
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read sequence %s: %w", path, err)
		}
	}

	paths, err := l.documents()
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seq, err := l.parseFile(path)
		if err != nil {
			continue
		}
		if seq.ID == id {
			return seq, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrSequenceNotFound, id)
}

// List returns the sequence id of every parseable document, sorted.
// Two documents declaring the same id are reported as a collision.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	paths, err := l.documents()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(paths))
	ids := make([]string, 0, len(paths))
	for _, path := range paths {
		seq, err := l.parseFile(path)
		if err != nil {
			return nil, err
		}
		if existing, ok := seen[seq.ID]; ok {
			return nil, fmt.Errorf("collision detected: sequence %q is defined in both %q and %q", seq.ID, existing, path)
		}
		seen[seq.ID] = path
		ids = append(ids, seq.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (l *Loader) parseFile(path string) (*domain.Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sequence %s: %w", path, err)
	}
	return l.parser.ParseNamed(stem(path), data)
}

func (l *Loader) documents() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sequences in %s: %w", l.Dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !isSequenceFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(l.Dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Watch implements ports.Watchable. It emits the file stem of every written,
// created, removed or renamed sequence document.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}
	if err := watcher.Add(l.Dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", l.Dir, err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isSequenceFile(evt.Name) || evt.Op == fsnotify.Chmod {
					continue
				}
				select {
				case ch <- stem(evt.Name):
				case <-ctx.Done():
					return
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return ch, nil
}

func isSequenceFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range sequenceExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
