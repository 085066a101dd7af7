package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/coachflow/pkg/adapters/memory"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const moodDoc = `
sequenceId: mood
messages:
  - id: ask
    type: choice
    text: How was your run?
    storeKey: user.run
    choices:
      - text: Easy
        nextMessageId: nice
      - text: Tough
        nextMessageId: why
  - id: nice
    type: bot
    text: Nice pace!
  - id: why
    type: textInput
    text: What made it tough?
    nextMessageId: ok
  - id: ok
    type: bot
    text: "Got it: {session.lastResponse}"
`

type service struct {
	*session.Manager
	loader *memory.Loader
}

func (s service) Sequence(ctx context.Context, id string) (*domain.Sequence, error) {
	return s.loader.Load(ctx, id)
}

func (s service) Sequences(ctx context.Context) ([]string, error) {
	return s.loader.List(ctx)
}

func newServer(t *testing.T) *Server {
	t.Helper()
	loader := memory.NewLoader(map[string]string{"mood": moodDoc})
	mgr := session.NewManager(loader, memory.NewStore(), session.WithEntry("mood", ""))
	return NewServer(service{Manager: mgr, loader: loader}, "test")
}

func TestServer_Conversation(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	res, err := s.handleProcessFlow(ctx, mcp.CallToolRequest{}, ProcessFlowArgs{SessionID: "agent-1"})
	require.NoError(t, err)
	assert.True(t, res.AwaitingInput)
	assert.Equal(t, "ask", res.AwaitingNodeID)
	assert.Equal(t, "mood", res.SequenceID)

	one := 1
	res, err = s.handleRespond(ctx, mcp.CallToolRequest{}, RespondArgs{SessionID: "agent-1", NodeID: "ask", ChoiceIndex: &one})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "What made it tough?", res.Messages[0].Text)

	res, err = s.handleRespond(ctx, mcp.CallToolRequest{}, RespondArgs{SessionID: "agent-1", NodeID: "why", Text: "hills"})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "Got it: hills", res.Messages[0].Text)
	assert.False(t, res.AwaitingInput)
}

func TestServer_ProcessFlowResumes(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	_, err := s.handleProcessFlow(ctx, mcp.CallToolRequest{}, ProcessFlowArgs{SessionID: "a"})
	require.NoError(t, err)

	res, err := s.handleProcessFlow(ctx, mcp.CallToolRequest{}, ProcessFlowArgs{SessionID: "a"})
	require.NoError(t, err)
	assert.Equal(t, "ask", res.AwaitingNodeID)

	res, err = s.handleProcessFlow(ctx, mcp.CallToolRequest{}, ProcessFlowArgs{SessionID: "a", SequenceID: "mood", MessageID: "nice"})
	require.NoError(t, err)
	assert.False(t, res.AwaitingInput)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "Nice pace!", res.Messages[0].Text)
}

func TestServer_Errors(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	_, err := s.handleProcessFlow(ctx, mcp.CallToolRequest{}, ProcessFlowArgs{})
	assert.Error(t, err)

	_, err = s.handleRespond(ctx, mcp.CallToolRequest{}, RespondArgs{SessionID: "a"})
	assert.Error(t, err)

	_, err = s.handleRespond(ctx, mcp.CallToolRequest{}, RespondArgs{SessionID: "a", NodeID: "ask", Text: "x"})
	assert.ErrorIs(t, err, domain.ErrNotAwaitingInput)

	_, err = s.handleProcessFlow(ctx, mcp.CallToolRequest{}, ProcessFlowArgs{SessionID: "a", SequenceID: "nope"})
	assert.ErrorIs(t, err, domain.ErrSequenceNotFound)
}

func TestServer_GetSequence(t *testing.T) {
	s := newServer(t)

	seq, err := s.handleGetSequence(context.Background(), mcp.CallToolRequest{}, GetSequenceArgs{SequenceID: "mood"})
	require.NoError(t, err)
	assert.Equal(t, "mood", seq.SequenceID)
	assert.Len(t, seq.Messages, 4)

	_, err = s.handleGetSequence(context.Background(), mcp.CallToolRequest{}, GetSequenceArgs{SequenceID: "nope"})
	assert.Error(t, err)
}

func TestServer_ListTools(t *testing.T) {
	s := newServer(t)

	msg := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc": "2.0", "id": 1, "method": "tools/list"}`))
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))

	var names []string
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"process_flow", "respond", "get_sequence"}, names)
}

func TestToResponse_Nil(t *testing.T) {
	res := toResponse(nil)
	assert.NotNil(t, res.Messages)
	assert.False(t, res.AwaitingInput)
}
