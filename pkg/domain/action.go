package domain

// ActionKind is the mutation operator of a DataActionSpec.
type ActionKind string

const (
	ActionSet       ActionKind = "set"
	ActionIncrement ActionKind = "increment"
	ActionDecrement ActionKind = "decrement"
	ActionReset     ActionKind = "reset"
	ActionAppend    ActionKind = "append"
	ActionRemove    ActionKind = "remove"
	ActionTrigger   ActionKind = "trigger"
)

// Valid reports whether k is a known operator.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionSet, ActionIncrement, ActionDecrement, ActionReset, ActionAppend, ActionRemove, ActionTrigger:
		return true
	}
	return false
}

// Reserved template-function tokens accepted as DataActionSpec values and as
// template placeholders.
const (
	TokenTodayDate         = "TODAY_DATE"
	TokenNextActiveDate    = "NEXT_ACTIVE_DATE"
	TokenNextActiveWeekday = "NEXT_ACTIVE_WEEKDAY"
	TokenFirstActiveDate   = "FIRST_ACTIVE_DATE"
)

// IsDateToken reports whether s names one of the reserved date tokens.
func IsDateToken(s string) bool {
	switch s {
	case TokenTodayDate, TokenNextActiveDate, TokenNextActiveWeekday, TokenFirstActiveDate:
		return true
	}
	return false
}

// DataActionSpec is a single mutation executed by a dataAction node.
type DataActionSpec struct {
	Kind ActionKind `json:"type" yaml:"type"`

	// Key is a dot-namespaced store path, e.g. "user.streak".
	Key string `json:"key,omitempty" yaml:"key,omitempty"`

	// Value is the literal argument. Nil means "operator default".
	Value Value `json:"value,omitempty" yaml:"value,omitempty"`

	// Event and Data are only used by trigger.
	Event string         `json:"event,omitempty" yaml:"event,omitempty"`
	Data  map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}
