package ports

import "context"

// EventSink receives the events fired by trigger actions.
// Errors are logged by the engine and never abort a flow.
type EventSink interface {
	Trigger(ctx context.Context, event string, payload map[string]any) error
}

// ContentResolver resolves a node's contentKey to display text.
type ContentResolver interface {
	Resolve(ctx context.Context, contentKey string) (string, bool)
}

// Formatters maps a store key to a table of raw value -> display string,
// e.g. {"user.mood": {"great": "feeling great"}}.
type Formatters map[string]map[string]string

// Lookup returns the display string for raw under key, if any.
func (f Formatters) Lookup(key, raw string) (string, bool) {
	table, ok := f[key]
	if !ok {
		return "", false
	}
	display, ok := table[raw]
	return display, ok
}
