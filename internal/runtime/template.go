package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aretw0/coachflow/internal/logging"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/ports"
)

// placeholderPattern matches {key} and {key|fallback}. Keys are dotted
// identifiers or reserved tokens; anything else is left as literal text.
var placeholderPattern = regexp.MustCompile(`\{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)\s*(?:\|([^{}]*))?\}`)

// TemplateResolver substitutes placeholders and expands multi-bubble texts.
type TemplateResolver struct {
	store      ports.KeyValueStore
	tokens     *DateTokens
	content    ports.ContentResolver
	formatters ports.Formatters
	separator  string
	logger     *slog.Logger
}

// NewTemplateResolver creates a resolver reading placeholder values from store.
func NewTemplateResolver(store ports.KeyValueStore, opts ...Option) *TemplateResolver {
	o := newOptions(opts)
	return &TemplateResolver{
		store:      store,
		tokens:     NewDateTokens(store, opts...),
		content:    o.content,
		formatters: o.formatters,
		separator:  o.separator,
		logger:     logging.Component(o.logger, "template"),
	}
}

// ResolveText replaces every placeholder in text. A placeholder whose key is
// absent, null or empty renders its fallback, or nothing without one.
func (t *TemplateResolver) ResolveText(ctx context.Context, text string) string {
	if !strings.Contains(text, "{") {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		key, fallback := groups[1], groups[2]

		if v, ok := t.tokens.Resolve(ctx, key); ok {
			return domain.DisplayString(v)
		}
		if s, ok := t.display(ctx, key); ok {
			return s
		}
		return fallback
	})
}

func (t *TemplateResolver) display(ctx context.Context, key string) (string, bool) {
	if t.store == nil {
		return "", false
	}
	v, ok, err := t.store.Get(ctx, key)
	if err != nil {
		t.logger.Warn("placeholder lookup failed", "key", key, "error", err)
		return "", false
	}
	if !ok || domain.IsNull(v) {
		return "", false
	}
	raw := domain.DisplayString(v)
	if raw == "" {
		return "", false
	}
	if formatted, ok := t.formatters.Lookup(key, raw); ok {
		return formatted, true
	}
	return raw, true
}

// Render resolves a node's text (falling back to its contentKey) and choice
// labels, then expands it into one message per bubble.
func (t *TemplateResolver) Render(ctx context.Context, node domain.MessageNode) []domain.MessageNode {
	resolved := node.Clone()

	text := resolved.Text
	if text == "" && resolved.ContentKey != "" {
		if t.content != nil {
			if s, ok := t.content.Resolve(ctx, resolved.ContentKey); ok {
				text = s
			} else {
				t.logger.Warn("content key not found", "content_key", resolved.ContentKey, "message_id", node.ID)
			}
		}
	}
	resolved.Text = t.ResolveText(ctx, text)
	resolved.Choices = t.ResolveChoices(ctx, resolved.Choices)

	return t.Expand(resolved)
}

// ResolveChoices returns a copy of choices with placeholders in their text
// and value substituted, as the user sees them.
func (t *TemplateResolver) ResolveChoices(ctx context.Context, choices []domain.Choice) []domain.Choice {
	if choices == nil {
		return nil
	}
	out := make([]domain.Choice, len(choices))
	for i, c := range choices {
		c.Text = t.ResolveText(ctx, c.Text)
		c.Value = t.ResolveText(ctx, c.Value)
		out[i] = c
	}
	return out
}

// Expand splits a node whose text holds the bubble separator into sibling
// messages. The first bubble keeps the node id, animation and contentKey;
// the last keeps the interaction (choices, storeKey). Empty bubbles are dropped.
func (t *TemplateResolver) Expand(node domain.MessageNode) []domain.MessageNode {
	if !strings.Contains(node.Text, t.separator) {
		return []domain.MessageNode{node}
	}

	var parts []string
	for _, p := range strings.Split(node.Text, t.separator) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) <= 1 {
		if len(parts) == 1 {
			node.Text = parts[0]
		} else {
			node.Text = ""
		}
		return []domain.MessageNode{node}
	}

	out := make([]domain.MessageNode, 0, len(parts))
	last := len(parts) - 1
	for i, part := range parts {
		bubble := node.Clone()
		bubble.Text = part
		if i > 0 {
			bubble.ID = fmt.Sprintf("%s_%d", node.ID, i)
			bubble.Animation = nil
			bubble.ContentKey = ""
		}
		if i != last {
			bubble.Choices = nil
			bubble.StoreKey = ""
			if bubble.Kind.IsInteractive() {
				bubble.Kind = domain.KindBot
			}
		}
		if i != 0 && bubble.Kind == domain.KindImage {
			bubble.Kind = domain.KindBot
			bubble.ImageURL = ""
		}
		out = append(out, bubble)
	}
	return out
}
