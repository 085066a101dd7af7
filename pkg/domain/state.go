package domain

// FlowState is the orchestrator's position in its state machine.
type FlowState string

const (
	StateIdle                  FlowState = "idle"
	StateTraversing            FlowState = "traversing"
	StateProcessingRoutes      FlowState = "processing_routes"
	StateProcessingMessages    FlowState = "processing_messages"
	StateTransitioningSequence FlowState = "transitioning_sequence"
	StateAwaitingInput         FlowState = "awaiting_input"
	StateError                 FlowState = "error"
)

// Well-known store keys written by the engine itself.
const (
	// KeyLastResponse receives user responses when the node has no storeKey.
	KeyLastResponse = "session.lastResponse"
	// KeyCurrentSequence persists the active sequence id between runs.
	KeyCurrentSequence = "session.currentSequenceId"
	// KeyAwaitingNode persists the node a flow is waiting on.
	KeyAwaitingNode = "session.awaitingNodeId"
	// KeyActiveDays is the default location of the active weekday set.
	KeyActiveDays = "task.activeDays"
	// KeyStartDate is the default anchor for FIRST_ACTIVE_DATE.
	KeyStartDate = "task.startDate"
)

// TraversalResult is what a flow run hands back to the host.
type TraversalResult struct {
	// Messages are resolved, bubble-expanded nodes ready for display.
	Messages []MessageNode `json:"messages"`

	// RequiresTransition is set when traversal stopped because a sequence
	// change is pending; TransitionTarget names the sequence.
	RequiresTransition bool   `json:"requiresTransition,omitempty"`
	TransitionTarget   string `json:"transitionTarget,omitempty"`

	// AwaitingInput is set when the last message is a choice or textInput.
	AwaitingInput  bool   `json:"awaitingInput,omitempty"`
	AwaitingNodeID string `json:"awaitingNodeId,omitempty"`

	// SequenceID is the sequence active when traversal stopped.
	SequenceID string `json:"sequenceId,omitempty"`

	Err error `json:"-"`
}

// Texts returns the text of every message, mostly for tests and logs.
func (r *TraversalResult) Texts() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		out = append(out, m.Text)
	}
	return out
}

// Response is the user's answer to an interactive node.
type Response struct {
	// ChoiceIndex selects an option of a choice node.
	ChoiceIndex *int `json:"choiceIndex,omitempty"`
	// Text is free text for textInput nodes, or the option text/value of a
	// choice when ChoiceIndex is nil.
	Text string `json:"text,omitempty"`
}
