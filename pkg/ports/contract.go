package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunKeyValueStoreContract runs a suite of tests to verify that a ManagedStore
// implementation adheres to the defined interface contract.
func RunKeyValueStoreContract(t *testing.T, store ManagedStore) {
	ctx := context.Background()
	prefix := "contract" + time.Now().Format("20060102150405") + "."

	t.Run("Set and Get", func(t *testing.T) {
		key := prefix + "name"
		require.NoError(t, store.Set(ctx, key, domain.String("Ana")), "Set should not return error")

		v, ok, err := store.Get(ctx, key)
		require.NoError(t, err, "Get should not return error")
		assert.True(t, ok)
		assert.Equal(t, domain.String("Ana"), v)
	})

	t.Run("Get Absent", func(t *testing.T) {
		v, ok, err := store.Get(ctx, prefix+"missing")
		require.NoError(t, err, "absent keys are not an error")
		assert.False(t, ok)
		assert.Nil(t, v)
	})

	t.Run("Preserves Variants", func(t *testing.T) {
		values := map[string]domain.Value{
			"int":   domain.Int(3),
			"float": domain.Float(3),
			"bool":  domain.Bool(false),
			"null":  domain.Null{},
			"list":  domain.List{domain.String("a"), domain.Int(1)},
			"map":   domain.Map{"nested": domain.Float(0.5)},
		}
		for suffix, want := range values {
			require.NoError(t, store.Set(ctx, prefix+suffix, want))
		}
		for suffix, want := range values {
			got, ok, err := store.Get(ctx, prefix+suffix)
			require.NoError(t, err)
			require.True(t, ok, "key %s should exist", suffix)
			assert.True(t, domain.Equal(want, got), "%s: want %#v, got %#v", suffix, want, got)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		key := prefix + "counter"
		require.NoError(t, store.Set(ctx, key, domain.Int(1)))
		require.NoError(t, store.Set(ctx, key, domain.Int(2)))

		v, _, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, domain.Int(2), v)
	})

	t.Run("Keys and Delete", func(t *testing.T) {
		scope := prefix + "scope."
		require.NoError(t, store.Set(ctx, scope+"b", domain.Int(2)))
		require.NoError(t, store.Set(ctx, scope+"a", domain.Int(1)))

		keys, err := store.Keys(ctx, scope)
		require.NoError(t, err)
		assert.Equal(t, []string{scope + "a", scope + "b"}, keys)

		require.NoError(t, store.Delete(ctx, scope+"a"))
		require.NoError(t, store.Delete(ctx, scope+"never-set"), "deleting an absent key is not an error")

		_, ok, err := store.Get(ctx, scope+"a")
		require.NoError(t, err)
		assert.False(t, ok, "Get after Delete should report absence")

		keys, err = store.Keys(ctx, scope)
		require.NoError(t, err)
		assert.Equal(t, []string{scope + "b"}, keys)
	})
}
