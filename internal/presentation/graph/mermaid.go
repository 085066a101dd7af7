package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/coachflow/pkg/domain"
)

// Overlay contains session state to highlight on the graph.
type Overlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid produces a Mermaid flowchart of one sequence.
// It applies semantic styling:
// - Entry: ((Circle))
// - Autoroute: {Rhombus}
// - Data action: [[Subroutine]]
// - Input (choice/textInput): [/Parallelogram/]
// - Default: [Rectangle]
// Cross-sequence jumps are drawn dotted into a stadium node named after the
// target sequence.
func GenerateMermaid(seq *domain.Sequence, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	external := make(map[string]string)
	entry := seq.EntryID()

	for _, node := range seq.Messages {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case node.ID == entry:
			opener, closer = "((", "))"
		case node.Kind == domain.KindAutoroute:
			opener, closer = "{", "}"
		case node.Kind == domain.KindDataAction:
			opener, closer = "[[", "]]"
		case node.Kind.IsInteractive():
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label(node), closer)

		for _, e := range node.Edges() {
			to := sanitizeMermaidID(e.MessageID)
			if e.CrossSequence() {
				to = "seq_" + sanitizeMermaidID(e.SequenceID)
				if e.MessageID != "" {
					to += "__" + sanitizeMermaidID(e.MessageID)
				}
				external[to] = externalLabel(e)
			}

			arrow := "-->"
			if e.CrossSequence() {
				arrow = "-.->"
			}
			if e.Label != "" {
				text := strings.ReplaceAll(e.Label, "\"", "'")
				arrow = fmt.Sprintf("-- \"%s\" -->", text)
				if e.CrossSequence() {
					arrow = fmt.Sprintf("-. \"%s\" .->", text)
				}
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", safeID, arrow, to)
		}
	}

	if len(external) > 0 {
		sb.WriteString("\n    %% Other sequences\n")
		for _, id := range sortedKeys(external) {
			fmt.Fprintf(&sb, "    %s([\"%s\"])\n", id, external[id])
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] && safeID != "" && seq.Has(id) {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentNode != "" && seq.Has(overlay.CurrentNode) {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func label(node domain.MessageNode) string {
	text := node.Text
	if text == "" {
		text = node.ContentKey
	}
	if text == "" {
		return fmt.Sprintf("%s: %s", node.ID, node.Kind)
	}
	if r := []rune(text); len(r) > 32 {
		text = string(r[:29]) + "..."
	}
	text = strings.ReplaceAll(text, "\"", "'")
	return fmt.Sprintf("%s: %s", node.ID, text)
}

func externalLabel(e domain.Edge) string {
	if e.MessageID != "" {
		return e.SequenceID + "#" + e.MessageID
	}
	return e.SequenceID
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
