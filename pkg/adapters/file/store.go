package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/coachflow/pkg/domain"
)

// Store implements ports.ManagedStore as a single JSON document on disk.
// The whole map is rewritten atomically on every mutation, so it suits
// single-process hosts such as the CLI.
type Store struct {
	Path string

	mu     sync.Mutex
	data   domain.Map
	loaded bool
}

// NewStore creates a store backed by path.
// If path is empty, it defaults to ".coachflow/store.json".
func NewStore(path string) *Store {
	if path == "" {
		path = filepath.Join(".coachflow", "store.json")
	}
	return &Store{Path: path}
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (domain.Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return nil, false, err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

// Set writes value under key and flushes the document.
func (s *Store) Set(ctx context.Context, key string, value domain.Value) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if value == nil {
		value = domain.Null{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	prev, had := s.data[key]
	s.data[key] = value
	if err := s.flush(); err != nil {
		if had {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	prev, had := s.data[key]
	if !had {
		return nil
	}
	delete(s.data, key)
	if err := s.flush(); err != nil {
		s.data[key] = prev
		return err
	}
	return nil
}

// Keys returns the sorted keys starting with prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) load() error {
	if s.loaded {
		return nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			s.data = domain.Map{}
			s.loaded = true
			return nil
		}
		return fmt.Errorf("failed to read store file: %w", err)
	}

	v, err := domain.UnmarshalValue(data)
	if err != nil {
		return fmt.Errorf("failed to decode store file %s: %w", s.Path, err)
	}
	m, ok := v.(domain.Map)
	if !ok {
		return fmt.Errorf("store file %s does not hold an object", s.Path)
	}
	s.data = m
	s.loaded = true
	return nil
}

// flush writes the document to a temp file, syncs it and renames it over
// the destination.
func (s *Store) flush() error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure store directory: %w", err)
	}

	data, err := domain.MarshalValue(s.data)
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "tmp-"+filepath.Base(s.Path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Windows cannot rename over an existing file.
	if _, err := os.Stat(s.Path); err == nil {
		if err := os.Remove(s.Path); err != nil {
			return fmt.Errorf("failed to remove existing store file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
