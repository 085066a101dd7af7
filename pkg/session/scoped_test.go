package session_test

import (
	"context"
	"testing"

	"github.com/aretw0/coachflow/pkg/adapters/memory"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/ports"
	"github.com/aretw0/coachflow/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopedStore_Contract(t *testing.T) {
	ports.RunKeyValueStoreContract(t, session.Scoped(memory.NewStore(), "alice"))
}

func TestScopedStore_Isolation(t *testing.T) {
	ctx := context.Background()
	shared := memory.NewStore()
	alice := session.Scoped(shared, "alice")
	bob := session.Scoped(shared, "bob")

	require.NoError(t, alice.Set(ctx, "user.streak", domain.Int(3)))

	_, ok, err := bob.Get(ctx, "user.streak")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := shared.Get(ctx, "alice:user.streak")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.Int(3), v)

	keys, err := alice.Keys(ctx, "user.")
	require.NoError(t, err)
	assert.Equal(t, []string{"user.streak"}, keys)
}
