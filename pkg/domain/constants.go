package domain

// Defaults shared by the runtime and its adapters.
const (
	// DefaultBubbleSeparator splits one text into several chat bubbles.
	DefaultBubbleSeparator = "|||"

	// DefaultMaxSteps bounds node visits per flow run.
	DefaultMaxSteps = 1000

	// MaxDateScanDays bounds the forward scan of the active-date tokens.
	MaxDateScanDays = 366

	// DateLayout is how date tokens are rendered.
	DateLayout = "2006-01-02"
)

// Namespaces in use by authored sequences.
const (
	NamespaceUser    = "user"
	NamespaceSession = "session"
	NamespaceTask    = "task"
	NamespaceDebug   = "debug"
)
