package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/coachflow/pkg/ports"
)

// Mask replaces redacted payload values.
const Mask = "***"

type piiMiddleware struct {
	next     ports.EventSink
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a sink middleware that masks trigger payload
// values whose key matches one of the patterns, at any nesting depth.
func NewPIIMiddleware(patternStrings []string) (SinkMiddleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.EventSink) ports.EventSink {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Trigger(ctx context.Context, event string, payload map[string]any) error {
	// The caller may still hold payload.
	cloned := deepCopyMap(payload)
	maskMap(cloned, m.patterns)
	return m.next.Trigger(ctx, event, cloned)
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				masked = true
				break
			}
		}

		if subMap, ok := v.(map[string]any); ok && !masked {
			maskMap(subMap, patterns)
		}
	}
}
