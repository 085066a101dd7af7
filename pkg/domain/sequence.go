package domain

import "fmt"

// Sequence is a named, ordered graph of message nodes loaded from one document.
// It is immutable once built; transitions replace it wholesale.
type Sequence struct {
	ID       string
	Messages []MessageNode

	// EntryMessageID overrides the first message as the entry point.
	EntryMessageID string

	index map[string]int
}

// NewSequence builds the id index. Duplicate or empty ids are rejected.
func NewSequence(id string, messages []MessageNode, entryMessageID string) (*Sequence, error) {
	index := make(map[string]int, len(messages))
	for i, m := range messages {
		if m.ID == "" {
			return nil, fmt.Errorf("message at position %d has no id", i)
		}
		if prev, exists := index[m.ID]; exists {
			return nil, fmt.Errorf("duplicate message id %q at positions %d and %d", m.ID, prev, i)
		}
		index[m.ID] = i
	}
	if entryMessageID != "" {
		if _, ok := index[entryMessageID]; !ok {
			return nil, fmt.Errorf("entry message %q not found", entryMessageID)
		}
	}
	return &Sequence{
		ID:             id,
		Messages:       messages,
		EntryMessageID: entryMessageID,
		index:          index,
	}, nil
}

// Node looks up a message by id.
func (s *Sequence) Node(id string) (MessageNode, bool) {
	if s == nil {
		return MessageNode{}, false
	}
	i, ok := s.index[id]
	if !ok {
		return MessageNode{}, false
	}
	return s.Messages[i], true
}

// Has reports whether the sequence contains id.
func (s *Sequence) Has(id string) bool {
	_, ok := s.Node(id)
	return ok
}

// EntryID is the id traversal starts from after a transition into this sequence.
func (s *Sequence) EntryID() string {
	if s == nil {
		return ""
	}
	if s.EntryMessageID != "" {
		return s.EntryMessageID
	}
	if len(s.Messages) == 0 {
		return ""
	}
	return s.Messages[0].ID
}

// Len returns the number of messages.
func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Messages)
}
