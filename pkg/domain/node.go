package domain

// MessageKind defines how a node behaves during traversal.
type MessageKind string

const (
	// KindBot displays a coach message and continues (soft step).
	KindBot MessageKind = "bot"
	// KindUser displays a scripted message on the user's side and continues.
	KindUser MessageKind = "user"
	// KindImage displays an image and continues.
	KindImage MessageKind = "image"
	// KindChoice displays options and halts waiting for a selection (hard step).
	KindChoice MessageKind = "choice"
	// KindTextInput displays a prompt and halts waiting for free text (hard step).
	KindTextInput MessageKind = "textInput"
	// KindAutoroute picks the next node from its routes (silent step).
	KindAutoroute MessageKind = "autoroute"
	// KindDataAction mutates the store or fires events (silent step).
	KindDataAction MessageKind = "dataAction"
)

// IsInteractive reports whether traversal halts at this kind to wait for the user.
func (k MessageKind) IsInteractive() bool {
	return k == KindChoice || k == KindTextInput
}

// IsSilent reports whether nodes of this kind never reach the rendered output.
func (k MessageKind) IsSilent() bool {
	return k == KindAutoroute || k == KindDataAction
}

// Valid reports whether k is a known kind.
func (k MessageKind) Valid() bool {
	switch k {
	case KindBot, KindUser, KindImage, KindChoice, KindTextInput, KindAutoroute, KindDataAction:
		return true
	}
	return false
}

// Animation describes how the host should animate a bubble. The engine only
// carries it through.
type Animation struct {
	Name    string `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	DelayMs int    `json:"delayMs,omitempty" yaml:"delayMs,omitempty" mapstructure:"delayMs"`
}

// IsZero reports whether no animation is set.
func (a *Animation) IsZero() bool {
	return a == nil || (a.Name == "" && a.DelayMs == 0)
}

// Choice is one selectable option of a choice node.
type Choice struct {
	Text string `json:"text" yaml:"text" mapstructure:"text"`

	// Value is stored instead of Text when present.
	Value string `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`

	NextMessageID string `json:"nextMessageId,omitempty" yaml:"nextMessageId,omitempty" mapstructure:"nextMessageId"`
	SequenceID    string `json:"sequenceId,omitempty" yaml:"sequenceId,omitempty" mapstructure:"sequenceId"`
}

// StoredValue is what gets written to the store when this choice is picked.
func (c Choice) StoredValue() string {
	if c.Value != "" {
		return c.Value
	}
	return c.Text
}

// MessageNode is a single node of a sequence graph.
type MessageNode struct {
	ID   string      `json:"id" yaml:"id" mapstructure:"id"`
	Kind MessageKind `json:"type" yaml:"type" mapstructure:"type"`

	// Text may contain the multi-bubble separator and {key|fallback} placeholders.
	Text string `json:"text,omitempty" yaml:"text,omitempty" mapstructure:"text"`

	// ContentKey is a semantic pointer resolved by a ContentResolver when Text is empty.
	ContentKey string `json:"contentKey,omitempty" yaml:"contentKey,omitempty" mapstructure:"contentKey"`

	NextMessageID string `json:"nextMessageId,omitempty" yaml:"nextMessageId,omitempty" mapstructure:"nextMessageId"`

	// SequenceID requests a cross-sequence jump once this node is done.
	SequenceID string `json:"sequenceId,omitempty" yaml:"sequenceId,omitempty" mapstructure:"sequenceId"`

	Routes      []RouteRule      `json:"routes,omitempty" yaml:"routes,omitempty" mapstructure:"routes"`
	DataActions []DataActionSpec `json:"dataActions,omitempty" yaml:"dataActions,omitempty" mapstructure:"dataActions"`
	Choices     []Choice         `json:"choices,omitempty" yaml:"choices,omitempty" mapstructure:"choices"`

	// StoreKey is where choice/textInput responses are written.
	StoreKey string `json:"storeKey,omitempty" yaml:"storeKey,omitempty" mapstructure:"storeKey"`

	ImageURL  string     `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty" mapstructure:"imageUrl"`
	Animation *Animation `json:"animation,omitempty" yaml:"animation,omitempty" mapstructure:"animation"`
}

// Clone returns a copy that can be mutated without touching the loaded sequence.
func (n MessageNode) Clone() MessageNode {
	out := n
	if n.Routes != nil {
		out.Routes = append([]RouteRule(nil), n.Routes...)
	}
	if n.DataActions != nil {
		out.DataActions = append([]DataActionSpec(nil), n.DataActions...)
	}
	if n.Choices != nil {
		out.Choices = append([]Choice(nil), n.Choices...)
	}
	if n.Animation != nil {
		a := *n.Animation
		out.Animation = &a
	}
	return out
}
