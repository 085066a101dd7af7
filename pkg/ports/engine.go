package ports

import (
	"context"

	"github.com/aretw0/coachflow/pkg/domain"
)

// FlowService is the driving port used by transports (HTTP, MCP, terminal).
// Every call is scoped to a session; implementations serialise calls of the
// same session.
type FlowService interface {
	// Start runs a flow from messageID of sequenceID. Empty ids resume the
	// session where it stopped, or start the configured entry point.
	Start(ctx context.Context, sessionID, sequenceID, messageID string) (*domain.TraversalResult, error)

	// Respond answers the node the session is waiting on and continues the flow.
	Respond(ctx context.Context, sessionID, nodeID string, resp domain.Response) (*domain.TraversalResult, error)

	// Sequence returns a loaded sequence for introspection.
	Sequence(ctx context.Context, id string) (*domain.Sequence, error)

	// Sequences lists the available sequence ids.
	Sequences(ctx context.Context) ([]string, error)
}
