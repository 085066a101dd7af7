package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/coachflow/pkg/adapters/memory"
	"github.com/aretw0/coachflow/pkg/domain"
)

// Builder manages the sequence construction. Messages keep the order in
// which they were first added; the first one is the entry unless Entry says
// otherwise.
type Builder struct {
	id    string
	entry string
	order []string
	nodes map[string]*NodeBuilder
}

// New creates a new sequence builder.
func New(sequenceID string) *Builder {
	return &Builder{
		id:    sequenceID,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Entry sets the message the sequence starts at.
func (b *Builder) Entry(messageID string) *Builder {
	b.entry = messageID
	return b
}

// Add creates a message of the given kind.
// If the message already exists, it returns the existing builder.
func (b *Builder) Add(id string, kind domain.MessageKind) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node: domain.MessageNode{
			ID:   id,
			Kind: kind,
		},
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Bot adds a coach message.
func (b *Builder) Bot(id string) *NodeBuilder { return b.Add(id, domain.KindBot) }

// User adds a scripted message on the user's side.
func (b *Builder) User(id string) *NodeBuilder { return b.Add(id, domain.KindUser) }

// Image adds an image message.
func (b *Builder) Image(id, url string) *NodeBuilder {
	nb := b.Add(id, domain.KindImage)
	nb.node.ImageURL = url
	return nb
}

// Choice adds a message that waits for one of its options.
func (b *Builder) Choice(id string) *NodeBuilder { return b.Add(id, domain.KindChoice) }

// TextInput adds a message that waits for free text.
func (b *Builder) TextInput(id string) *NodeBuilder { return b.Add(id, domain.KindTextInput) }

// Autoroute adds a silent branching message.
func (b *Builder) Autoroute(id string) *NodeBuilder { return b.Add(id, domain.KindAutoroute) }

// Action adds a silent message that mutates the store or fires events.
func (b *Builder) Action(id string) *NodeBuilder { return b.Add(id, domain.KindDataAction) }

// Build compiles the messages into a Sequence.
func (b *Builder) Build() (*domain.Sequence, error) {
	if b.id == "" {
		return nil, errors.New("sequence id is required")
	}
	messages := make([]domain.MessageNode, 0, len(b.order))
	for _, id := range b.order {
		node := b.nodes[id].node
		if err := check(node); err != nil {
			return nil, fmt.Errorf("sequence %s: message %s: %w", b.id, id, err)
		}
		messages = append(messages, node.Clone())
	}

	seq, err := domain.NewSequence(b.id, messages, b.entry)
	if err != nil {
		return nil, fmt.Errorf("sequence %s: %w", b.id, err)
	}
	return seq, nil
}

// Loader builds every sequence into a memory loader.
func Loader(builders ...*Builder) (*memory.Loader, error) {
	seqs := make([]*domain.Sequence, 0, len(builders))
	for _, b := range builders {
		seq, err := b.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build memory loader: %w", err)
		}
		seqs = append(seqs, seq)
	}
	return memory.NewFromSequences(seqs...), nil
}

func check(node domain.MessageNode) error {
	if node.Kind == domain.KindChoice && len(node.Choices) == 0 {
		return errors.New("choice message has no choices")
	}
	for i, r := range node.Routes {
		if r.NextMessageID == "" && r.SequenceID == "" {
			return fmt.Errorf("route %d has no target", i)
		}
	}
	for i, a := range node.DataActions {
		if a.Kind == domain.ActionTrigger {
			if a.Event == "" {
				return fmt.Errorf("action %d: trigger needs an event", i)
			}
			continue
		}
		if a.Key == "" {
			return fmt.Errorf("action %d: %s needs a key", i, a.Kind)
		}
	}
	return nil
}
