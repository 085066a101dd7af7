package domain

// RouteRule is one entry of an autoroute node's ordered rule list.
type RouteRule struct {
	// Condition is a compound boolean expression, e.g. "user.streak > 0 && task.done == false".
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty" mapstructure:"condition"`

	// IsDefault marks the rule taken when no conditional rule matches,
	// wherever it sits in the list.
	IsDefault bool `json:"isDefault,omitempty" yaml:"isDefault,omitempty" mapstructure:"isDefault"`

	NextMessageID string `json:"nextMessageId,omitempty" yaml:"nextMessageId,omitempty" mapstructure:"nextMessageId"`

	// SequenceID switches the active sequence. When NextMessageID is also set,
	// traversal resumes at that node inside the new sequence.
	SequenceID string `json:"sequenceId,omitempty" yaml:"sequenceId,omitempty" mapstructure:"sequenceId"`
}

// Target describes where a rule leads, for logs and hooks.
func (r RouteRule) Target() string {
	if r.SequenceID != "" {
		if r.NextMessageID != "" {
			return r.SequenceID + "#" + r.NextMessageID
		}
		return r.SequenceID
	}
	return r.NextMessageID
}

// EdgeKind tells which field of a node an Edge comes from.
type EdgeKind string

const (
	EdgeNext   EdgeKind = "next"
	EdgeRoute  EdgeKind = "route"
	EdgeChoice EdgeKind = "choice"
)

// Edge is one outgoing reference of a message node. An empty SequenceID
// stays in the node's sequence; an empty MessageID with a SequenceID means
// that sequence's entry.
type Edge struct {
	Kind       EdgeKind
	Label      string
	SequenceID string
	MessageID  string
}

// CrossSequence reports whether following e switches sequence.
func (e Edge) CrossSequence() bool {
	return e.SequenceID != ""
}

// Edges lists every reference n can continue to, in document order: routes,
// then choices, then the node's own nextMessageId/sequenceId.
func (n MessageNode) Edges() []Edge {
	var out []Edge
	for _, r := range n.Routes {
		label := r.Condition
		if r.IsDefault {
			label = "default"
		}
		if r.SequenceID != "" || r.NextMessageID != "" {
			out = append(out, Edge{Kind: EdgeRoute, Label: label, SequenceID: r.SequenceID, MessageID: r.NextMessageID})
		}
	}
	for _, c := range n.Choices {
		if c.SequenceID != "" || c.NextMessageID != "" {
			out = append(out, Edge{Kind: EdgeChoice, Label: c.Text, SequenceID: c.SequenceID, MessageID: c.NextMessageID})
		}
	}
	if n.SequenceID != "" || n.NextMessageID != "" {
		out = append(out, Edge{Kind: EdgeNext, SequenceID: n.SequenceID, MessageID: n.NextMessageID})
	}
	return out
}
