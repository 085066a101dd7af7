package dsl

import "github.com/aretw0/coachflow/pkg/domain"

// NodeBuilder provides a fluent API for configuring a message.
type NodeBuilder struct {
	node domain.MessageNode
}

// Text sets the message text. "|||" splits it into several bubbles.
func (n *NodeBuilder) Text(text string) *NodeBuilder {
	n.node.Text = text
	return n
}

// ContentKey sets a content table key resolved when Text is empty.
func (n *NodeBuilder) ContentKey(key string) *NodeBuilder {
	n.node.ContentKey = key
	return n
}

// Next sets the message that follows inside this sequence.
func (n *NodeBuilder) Next(messageID string) *NodeBuilder {
	n.node.NextMessageID = messageID
	return n
}

// JumpTo continues in another sequence, at messageID or its entry.
func (n *NodeBuilder) JumpTo(sequenceID, messageID string) *NodeBuilder {
	n.node.SequenceID = sequenceID
	n.node.NextMessageID = messageID
	return n
}

// StoreKey names where a choice or text answer is stored.
func (n *NodeBuilder) StoreKey(key string) *NodeBuilder {
	n.node.StoreKey = key
	return n
}

// Animate attaches an animation hint.
func (n *NodeBuilder) Animate(name string, delayMs int) *NodeBuilder {
	n.node.Animation = &domain.Animation{Name: name, DelayMs: delayMs}
	return n
}

// Option adds a choice option. An empty value stores the option text.
func (n *NodeBuilder) Option(text, value, next string) *NodeBuilder {
	n.node.Choices = append(n.node.Choices, domain.Choice{
		Text:          text,
		Value:         value,
		NextMessageID: next,
	})
	return n
}

// OptionTo adds a choice option leading into another sequence.
func (n *NodeBuilder) OptionTo(text, value, sequenceID, messageID string) *NodeBuilder {
	n.node.Choices = append(n.node.Choices, domain.Choice{
		Text:          text,
		Value:         value,
		NextMessageID: messageID,
		SequenceID:    sequenceID,
	})
	return n
}

// When adds a conditional route, evaluated in insertion order.
func (n *NodeBuilder) When(condition, next string) *NodeBuilder {
	n.node.Routes = append(n.node.Routes, domain.RouteRule{
		Condition:     condition,
		NextMessageID: next,
	})
	return n
}

// WhenTo adds a conditional route into another sequence.
func (n *NodeBuilder) WhenTo(condition, sequenceID, messageID string) *NodeBuilder {
	n.node.Routes = append(n.node.Routes, domain.RouteRule{
		Condition:     condition,
		SequenceID:    sequenceID,
		NextMessageID: messageID,
	})
	return n
}

// Otherwise adds the default route.
func (n *NodeBuilder) Otherwise(next string) *NodeBuilder {
	n.node.Routes = append(n.node.Routes, domain.RouteRule{
		IsDefault:     true,
		NextMessageID: next,
	})
	return n
}

// Set stores value under key. Values go through domain.FromAny, so date
// tokens such as "TODAY_DATE" are passed as plain strings.
func (n *NodeBuilder) Set(key string, value any) *NodeBuilder {
	return n.do(domain.ActionSet, key, value)
}

// Increment adds by (1 when nil) to key.
func (n *NodeBuilder) Increment(key string, by any) *NodeBuilder {
	return n.do(domain.ActionIncrement, key, by)
}

// Decrement subtracts by (1 when nil) from key.
func (n *NodeBuilder) Decrement(key string, by any) *NodeBuilder {
	return n.do(domain.ActionDecrement, key, by)
}

// Reset sets key back to value, or 0 when value is nil.
func (n *NodeBuilder) Reset(key string, value any) *NodeBuilder {
	return n.do(domain.ActionReset, key, value)
}

// Append adds value to the list under key.
func (n *NodeBuilder) Append(key string, value any) *NodeBuilder {
	return n.do(domain.ActionAppend, key, value)
}

// Remove drops value from the list under key.
func (n *NodeBuilder) Remove(key string, value any) *NodeBuilder {
	return n.do(domain.ActionRemove, key, value)
}

// Trigger emits event with data to the event sink.
func (n *NodeBuilder) Trigger(event string, data map[string]any) *NodeBuilder {
	n.node.DataActions = append(n.node.DataActions, domain.DataActionSpec{
		Kind:  domain.ActionTrigger,
		Event: event,
		Data:  data,
	})
	return n
}

func (n *NodeBuilder) do(kind domain.ActionKind, key string, value any) *NodeBuilder {
	spec := domain.DataActionSpec{Kind: kind, Key: key}
	if value != nil {
		spec.Value = domain.FromAny(value)
	}
	n.node.DataActions = append(n.node.DataActions, spec)
	return n
}

// Build returns a copy of the underlying domain.MessageNode.
func (n *NodeBuilder) Build() domain.MessageNode {
	return n.node.Clone()
}
