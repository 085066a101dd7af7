package runtime

import (
	"fmt"

	"github.com/aretw0/coachflow/pkg/domain"
)

// StopReason tells why the Traverser stopped collecting.
type StopReason int

const (
	// StopDeadEnd: the last node has no continuation.
	StopDeadEnd StopReason = iota
	// StopInteractive: the last node waits for the user.
	StopInteractive
	// StopSilent: the last node is an autoroute or dataAction to process.
	StopSilent
	// StopJump: the last node asks for another sequence.
	StopJump
)

func (s StopReason) String() string {
	switch s {
	case StopInteractive:
		return "interactive"
	case StopSilent:
		return "silent"
	case StopJump:
		return "jump"
	}
	return "dead_end"
}

// Segment is a run of nodes collected by following nextMessageId.
type Segment struct {
	Nodes []domain.MessageNode
	Stop  StopReason
}

// Last returns the node the segment stopped at.
func (s Segment) Last() domain.MessageNode {
	if len(s.Nodes) == 0 {
		return domain.MessageNode{}
	}
	return s.Nodes[len(s.Nodes)-1]
}

// stepBudget counts node visits across one flow run.
type stepBudget struct {
	limit, used int
}

func (b *stepBudget) take(nodeID string) error {
	b.used++
	if b.used > b.limit {
		return fmt.Errorf("%w: %d visits, last at %s", domain.ErrStepBudgetExceeded, b.limit, nodeID)
	}
	return nil
}

// Traverser walks a sequence forward from a node id.
type Traverser struct{}

// Collect follows nextMessageId from startID and stops at the first node
// that needs processing: an interactive node, a silent node, a node jumping
// to another sequence, or a dead end.
func (t *Traverser) Collect(seq *domain.Sequence, startID string, budget *stepBudget) (Segment, error) {
	var seg Segment
	if seq == nil {
		return seg, domain.ErrNoActiveSequence
	}

	id := startID
	for {
		node, ok := seq.Node(id)
		if !ok {
			return seg, fmt.Errorf("%w: %q in sequence %q", domain.ErrNodeNotFound, id, seq.ID)
		}
		if err := budget.take(id); err != nil {
			return seg, err
		}
		seg.Nodes = append(seg.Nodes, node)

		switch {
		case node.Kind.IsInteractive():
			seg.Stop = StopInteractive
			return seg, nil
		case node.Kind.IsSilent():
			seg.Stop = StopSilent
			return seg, nil
		case node.SequenceID != "":
			seg.Stop = StopJump
			return seg, nil
		case node.NextMessageID == "":
			seg.Stop = StopDeadEnd
			return seg, nil
		}
		id = node.NextMessageID
	}
}
