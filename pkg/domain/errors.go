package domain

import (
	"errors"
	"fmt"
)

// ErrSequenceNotFound is returned by loaders when no document carries the requested id.
var ErrSequenceNotFound = errors.New("sequence not found")

// ErrNodeNotFound is returned when a message id is missing from the active sequence.
var ErrNodeNotFound = errors.New("message not found")

// ErrNoActiveSequence is returned when a flow is driven before any sequence was loaded.
var ErrNoActiveSequence = errors.New("no active sequence")

// ErrNotAwaitingInput is returned when a response does not match the node the flow waits on.
var ErrNotAwaitingInput = errors.New("flow is not awaiting input on this message")

// ErrInvalidResponse is returned when a response cannot be applied to the awaited node.
var ErrInvalidResponse = errors.New("invalid response")

// ErrStepBudgetExceeded is returned when traversal visits more nodes than allowed,
// which almost always means the graph loops through silent nodes.
var ErrStepBudgetExceeded = errors.New("traversal step budget exceeded")

// ErrKeyNotFound is returned by stores that distinguish absence as an error.
var ErrKeyNotFound = errors.New("key not found")

// ParseError reports a malformed sequence document. It is fatal for that load only.
type ParseError struct {
	SequenceID string
	// Path locates the offending element, e.g. "messages[3].routes[0]".
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("parse sequence %q at %s: %v", e.SequenceID, e.Path, e.Err)
	}
	return fmt.Sprintf("parse sequence %q: %v", e.SequenceID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TransitionPhase names the step of a sequence switch that failed.
type TransitionPhase string

const (
	PhaseLoad     TransitionPhase = "load"
	PhaseValidate TransitionPhase = "validate"
	PhaseRollback TransitionPhase = "rollback"
)

// TransitionError reports a failed cross-sequence switch.
// Inconsistent is set when the rollback itself failed and the active
// sequence can no longer be trusted.
type TransitionError struct {
	From         string
	To           string
	Phase        TransitionPhase
	Inconsistent bool
	Err          error
	RollbackErr  error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("transition %q -> %q failed during %s: %v", e.From, e.To, e.Phase, e.Err)
	if e.RollbackErr != nil {
		msg += fmt.Sprintf(" (rollback failed: %v)", e.RollbackErr)
	}
	if e.Inconsistent {
		msg += " [state inconsistent]"
	}
	return msg
}

func (e *TransitionError) Unwrap() []error {
	if e.RollbackErr != nil {
		return []error{e.Err, e.RollbackErr}
	}
	return []error{e.Err}
}
