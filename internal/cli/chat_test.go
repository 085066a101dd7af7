package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/coachflow/internal/logging"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntime_Chat(t *testing.T) {
	rt, err := Build(context.Background(), testConfig(t), WithLogger(logging.NewNop()))
	require.NoError(t, err)
	defer rt.Close()

	var out bytes.Buffer
	err = rt.Chat(context.Background(), strings.NewReader("1\n"), &out, ChatOptions{Watch: true})
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "Hello from content\nHow are you?\n  1) Good\n> ")
	assert.Contains(t, got, "You feel pretty good")

	values, err := rt.Engine.Sessions().Values(context.Background(), "cli")
	require.NoError(t, err)
	assert.Equal(t, domain.String("good"), values["user.mood"])
}

func TestRuntime_ChatQuit(t *testing.T) {
	rt, err := Build(context.Background(), testConfig(t), WithLogger(logging.NewNop()))
	require.NoError(t, err)
	defer rt.Close()

	var out bytes.Buffer
	err = rt.Chat(context.Background(), strings.NewReader("exit\n"), &out, ChatOptions{SessionID: "ana"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Bye!")
	assert.NotContains(t, out.String(), "You feel")
}

func TestRuntime_ChatDebugShowsStoreChanges(t *testing.T) {
	rt, err := Build(context.Background(), testConfig(t), WithLogger(logging.NewNop()))
	require.NoError(t, err)
	defer rt.Close()

	var out bytes.Buffer
	err = rt.Chat(context.Background(), strings.NewReader("1\n"), &out, ChatOptions{Debug: true})
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "  ~ session.awaitingNodeId = mood\n")
	assert.Contains(t, got, "  ~ user.mood = good\n")
}
