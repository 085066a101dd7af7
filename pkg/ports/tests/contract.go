package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/ports"
)

// SequenceLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.SequenceLoader.
// expected maps every sequence id the loader holds to its message count.
func SequenceLoaderContractTest(t *testing.T, loader ports.SequenceLoader, expected map[string]int) {
	t.Helper()
	ctx := context.Background()

	// 1. Test Load (Success)
	t.Run("Load_Success", func(t *testing.T) {
		for id, count := range expected {
			seq, err := loader.Load(ctx, id)
			if err != nil {
				t.Fatalf("unexpected error loading sequence %s: %v", id, err)
			}
			if seq.ID != id {
				t.Errorf("sequence id mismatch. got %q, want %q", seq.ID, id)
			}
			if seq.Len() != count {
				t.Errorf("message count mismatch for %s. got %d, want %d", id, seq.Len(), count)
			}
		}
	})

	// 2. Test Load (NotFound)
	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := loader.Load(ctx, "non-existent-sequence")
		if !errors.Is(err, domain.ErrSequenceNotFound) {
			t.Errorf("expected ErrSequenceNotFound, got %v", err)
		}
	})

	// 3. Test List
	t.Run("List", func(t *testing.T) {
		ids, err := loader.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing sequences: %v", err)
		}

		if len(ids) != len(expected) {
			t.Errorf("expected %d sequences, got %d", len(expected), len(ids))
		}

		// Verify all expected IDs are present
		lookup := make(map[string]bool)
		for _, id := range ids {
			lookup[id] = true
		}

		for id := range expected {
			if !lookup[id] {
				t.Errorf("sequence %s missing from list", id)
			}
		}
	})
}
