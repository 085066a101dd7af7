package validator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/ports"
)

// Severity ranks an Issue. Errors make a sequence unusable at some point of
// the flow; warnings point at authoring mistakes the engine tolerates.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding about a sequence document.
type Issue struct {
	Severity   Severity
	SequenceID string
	MessageID  string
	Message    string
}

func (i Issue) String() string {
	loc := i.SequenceID
	if i.MessageID != "" {
		loc += "#" + i.MessageID
	}
	return fmt.Sprintf("[%s] %s: %s", i.Severity, loc, i.Message)
}

// Report collects the issues of one validation run.
type Report struct {
	Issues []Issue
}

// Errors returns only the error-level issues.
func (r Report) Errors() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// Err summarises the error-level issues, or returns nil.
func (r Report) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	lines := make([]string, len(errs))
	for i, issue := range errs {
		lines[i] = issue.String()
	}
	return fmt.Errorf("found %d errors:\n- %s", len(errs), strings.Join(lines, "\n- "))
}

func (r *Report) add(sev Severity, seqID, msgID, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Severity:   sev,
		SequenceID: seqID,
		MessageID:  msgID,
		Message:    fmt.Sprintf(format, args...),
	})
}

// Validator checks sequences loaded through a loader. Sequences referenced
// across documents are loaded once per Validator.
type Validator struct {
	loader ports.SequenceLoader
	cache  map[string]loaded
}

type loaded struct {
	seq *domain.Sequence
	err error
}

// New creates a validator over loader.
func New(loader ports.SequenceLoader) *Validator {
	return &Validator{loader: loader, cache: make(map[string]loaded)}
}

// ValidateAll validates every sequence the loader lists. Documents that fail
// to parse are reported as issues, not returned as errors.
func (v *Validator) ValidateAll(ctx context.Context) (Report, error) {
	ids, err := v.loader.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list sequences: %w", err)
	}

	var report Report
	var seqs []*domain.Sequence
	for _, id := range ids {
		seq, err := v.load(ctx, id)
		if err != nil {
			report.add(SeverityError, id, "", "failed to load: %v", err)
			continue
		}
		seqs = append(seqs, seq)
	}

	// Messages entered from other sequences count as reachable.
	roots := make(map[string][]string)
	for _, seq := range seqs {
		for _, node := range seq.Messages {
			for _, e := range node.Edges() {
				if e.CrossSequence() && e.MessageID != "" {
					roots[e.SequenceID] = append(roots[e.SequenceID], e.MessageID)
				}
			}
		}
	}

	for _, seq := range seqs {
		v.check(ctx, seq, roots[seq.ID], &report)
	}
	return report, nil
}

// Validate checks one sequence. A sequence that cannot be loaded at all is
// returned as an error.
func (v *Validator) Validate(ctx context.Context, id string) (Report, error) {
	seq, err := v.load(ctx, id)
	if err != nil {
		return Report{}, err
	}
	var report Report
	v.check(ctx, seq, nil, &report)
	return report, nil
}

func (v *Validator) load(ctx context.Context, id string) (*domain.Sequence, error) {
	if l, ok := v.cache[id]; ok {
		return l.seq, l.err
	}
	seq, err := v.loader.Load(ctx, id)
	v.cache[id] = loaded{seq: seq, err: err}
	return seq, err
}

func (v *Validator) check(ctx context.Context, seq *domain.Sequence, roots []string, report *Report) {
	if seq.Len() == 0 {
		report.add(SeverityError, seq.ID, "", "sequence has no messages")
		return
	}

	for _, node := range seq.Messages {
		v.checkNode(seq, node, report)
		for _, edge := range node.Edges() {
			v.checkEdge(ctx, seq, node, edge, report)
		}
	}

	for _, id := range unreachable(seq, roots) {
		report.add(SeverityWarning, seq.ID, id, "message is unreachable from entry %q", seq.EntryID())
	}
}

func (v *Validator) checkNode(seq *domain.Sequence, node domain.MessageNode, report *Report) {
	switch node.Kind {
	case domain.KindAutoroute:
		if len(node.Routes) == 0 {
			report.add(SeverityError, seq.ID, node.ID, "autoroute has no routes")
		}
		defaults := 0
		for i, r := range node.Routes {
			if r.IsDefault {
				defaults++
				continue
			}
			if strings.TrimSpace(r.Condition) == "" {
				report.add(SeverityWarning, seq.ID, node.ID, "route %d has no condition and is not default; it never matches", i)
			}
		}
		if defaults > 1 {
			report.add(SeverityWarning, seq.ID, node.ID, "%d default routes; only the first is used", defaults)
		}
	case domain.KindDataAction:
		if len(node.DataActions) == 0 {
			report.add(SeverityError, seq.ID, node.ID, "dataAction has no actions")
		}
	case domain.KindImage:
		if node.ImageURL == "" {
			report.add(SeverityWarning, seq.ID, node.ID, "image has no imageUrl")
		}
	}

	if node.Kind.IsInteractive() || node.Kind.IsSilent() || node.Kind == domain.KindImage {
		return
	}
	if node.Text == "" && node.ContentKey == "" {
		report.add(SeverityWarning, seq.ID, node.ID, "message has neither text nor contentKey")
	}
}

func (v *Validator) checkEdge(ctx context.Context, seq *domain.Sequence, node domain.MessageNode, edge domain.Edge, report *Report) {
	if !edge.CrossSequence() {
		if !seq.Has(edge.MessageID) {
			report.add(SeverityError, seq.ID, node.ID, "%s references missing message %q", edge.Kind, edge.MessageID)
		}
		return
	}

	target, err := v.load(ctx, edge.SequenceID)
	if err != nil {
		if errors.Is(err, domain.ErrSequenceNotFound) {
			report.add(SeverityError, seq.ID, node.ID, "%s references missing sequence %q", edge.Kind, edge.SequenceID)
		} else {
			report.add(SeverityError, seq.ID, node.ID, "%s references sequence %q that fails to load: %v", edge.Kind, edge.SequenceID, err)
		}
		return
	}
	if edge.MessageID != "" && !target.Has(edge.MessageID) {
		report.add(SeverityError, seq.ID, node.ID, "%s references missing message %q in sequence %q", edge.Kind, edge.MessageID, edge.SequenceID)
	}
}

// unreachable returns the ids no in-sequence path from the entry or one of
// roots reaches, in document order.
func unreachable(seq *domain.Sequence, roots []string) []string {
	visited := make(map[string]bool, seq.Len())
	queue := append([]string{seq.EntryID()}, roots...)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		node, ok := seq.Node(id)
		if !ok {
			continue
		}
		visited[id] = true
		for _, e := range node.Edges() {
			if !e.CrossSequence() && !visited[e.MessageID] {
				queue = append(queue, e.MessageID)
			}
		}
	}

	var out []string
	for _, m := range seq.Messages {
		if !visited[m.ID] {
			out = append(out, m.ID)
		}
	}
	return out
}

// Sort orders issues by sequence, then severity (errors first), then message id.
func (r Report) Sort() {
	sort.SliceStable(r.Issues, func(i, j int) bool {
		a, b := r.Issues[i], r.Issues[j]
		if a.SequenceID != b.SequenceID {
			return a.SequenceID < b.SequenceID
		}
		if a.Severity != b.Severity {
			return a.Severity == SeverityError
		}
		return a.MessageID < b.MessageID
	})
}
