package coachflow

import (
	"context"

	"github.com/aretw0/coachflow/internal/runtime"
	"github.com/aretw0/coachflow/pkg/domain"
)

// Flow is one conversation driven directly, without a session manager.
// It is not safe for concurrent use; a call made while another is running
// returns an empty result.
type Flow struct {
	orch *runtime.Orchestrator
}

// Start activates sequenceID and runs from messageID (the sequence entry
// when empty). An empty sequenceID keeps the active sequence.
func (f *Flow) Start(ctx context.Context, sequenceID, messageID string) (*domain.TraversalResult, error) {
	return f.orch.Start(ctx, sequenceID, messageID)
}

// ProcessFlow runs from startID inside the active sequence until the flow
// needs input or ends.
func (f *Flow) ProcessFlow(ctx context.Context, startID string) (*domain.TraversalResult, error) {
	return f.orch.ProcessFlow(ctx, startID)
}

// Respond answers the awaited node and continues.
func (f *Flow) Respond(ctx context.Context, nodeID string, resp domain.Response) (*domain.TraversalResult, error) {
	return f.orch.Respond(ctx, nodeID, resp)
}

// Restore reinstates the sequence and awaited node persisted by a previous
// run. It reports whether there was anything to restore.
func (f *Flow) Restore(ctx context.Context) (bool, error) {
	return f.orch.Restore(ctx)
}

// State returns the flow's state machine position.
func (f *Flow) State() domain.FlowState { return f.orch.State() }

// AwaitingNodeID returns the node the flow waits on, or "".
func (f *Flow) AwaitingNodeID() string { return f.orch.AwaitingNodeID() }

// CurrentSequenceID returns the active sequence id.
func (f *Flow) CurrentSequenceID() string { return f.orch.CurrentSequenceID() }
