package loam

// SequenceMetadata is the document shape of a sequence stored in a Loam
// repository: the whole sequence lives in the metadata (YAML/JSON files, or
// the frontmatter of a Markdown file).
type SequenceMetadata struct {
	SequenceID     string           `json:"sequenceId,omitempty" mapstructure:"sequenceId"`
	ID             string           `json:"id,omitempty" mapstructure:"id"`
	EntryMessageID string           `json:"entryMessageId,omitempty" mapstructure:"entryMessageId"`
	Messages       []map[string]any `json:"messages" mapstructure:"messages"`
}

// raw rebuilds the document map the compiler expects.
func (m SequenceMetadata) raw() map[string]any {
	messages := make([]any, 0, len(m.Messages))
	for _, msg := range m.Messages {
		messages = append(messages, msg)
	}
	out := map[string]any{"messages": messages}
	if m.SequenceID != "" {
		out["sequenceId"] = m.SequenceID
	}
	if m.ID != "" {
		out["id"] = m.ID
	}
	if m.EntryMessageID != "" {
		out["entryMessageId"] = m.EntryMessageID
	}
	return out
}

// declaredID is the id the document claims, before falling back to its path.
func (m SequenceMetadata) declaredID() string {
	if m.SequenceID != "" {
		return m.SequenceID
	}
	return m.ID
}
