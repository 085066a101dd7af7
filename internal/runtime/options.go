package runtime

import (
	"log/slog"
	"time"

	"github.com/aretw0/coachflow/internal/logging"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/ports"
)

// Option configures the runtime components. Every constructor in this
// package accepts the same options and picks the ones it needs.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	hooks      domain.LifecycleHooks
	clock      func() time.Time
	sink       ports.EventSink
	content    ports.ContentResolver
	formatters ports.Formatters
	separator  string
	maxSteps   int

	responseKey   string
	activeDaysKey string
	anchorKey     string
	persist       bool
}

func newOptions(opts []Option) options {
	o := options{
		logger:        logging.NewNop(),
		clock:         time.Now,
		separator:     domain.DefaultBubbleSeparator,
		maxSteps:      domain.DefaultMaxSteps,
		responseKey:   domain.KeyLastResponse,
		activeDaysKey: domain.KeyActiveDays,
		anchorKey:     domain.KeyStartDate,
		persist:       true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the structured logger. Each component tags it with its name.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *options) {
		o.hooks = o.hooks.Merge(hooks)
	}
}

// WithClock overrides time.Now for date tokens.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithEventSink sets the receiver of trigger actions.
func WithEventSink(sink ports.EventSink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithContentResolver sets the resolver used for nodes that only carry a contentKey.
func WithContentResolver(r ports.ContentResolver) Option {
	return func(o *options) {
		o.content = r
	}
}

// WithFormatters sets the display tables used when substituting placeholders.
func WithFormatters(f ports.Formatters) Option {
	return func(o *options) {
		o.formatters = f
	}
}

// WithBubbleSeparator overrides the multi-bubble separator (default "|||").
func WithBubbleSeparator(sep string) Option {
	return func(o *options) {
		if sep != "" {
			o.separator = sep
		}
	}
}

// WithMaxSteps bounds node visits per flow run (default 1000).
func WithMaxSteps(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// WithResponseKey sets where responses go when a node has no storeKey.
func WithResponseKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.responseKey = key
		}
	}
}

// WithActiveDaysKey sets the store key holding the active weekday set.
func WithActiveDaysKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.activeDaysKey = key
		}
	}
}

// WithAnchorKey sets the store key holding the FIRST_ACTIVE_DATE anchor.
func WithAnchorKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.anchorKey = key
		}
	}
}

// WithPersistence toggles writing session.currentSequenceId and
// session.awaitingNodeId to the store (default on).
func WithPersistence(enabled bool) Option {
	return func(o *options) {
		o.persist = enabled
	}
}
