package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/coachflow/internal/logging"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/ports"
)

// EvaluationError describes a condition that could not be evaluated.
// It is logged and the condition reads as false; it never reaches callers.
type EvaluationError struct {
	Expr string
	Err  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %q: %v", e.Expr, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Longer operators come first so ">=" is never read as ">".
var comparisonOperators = []string{"==", "!=", ">=", "<=", ">", "<"}

// ConditionEvaluator evaluates author conditions against the key/value store.
type ConditionEvaluator struct {
	store  ports.KeyValueStore
	logger *slog.Logger
}

// NewConditionEvaluator creates an evaluator reading from store.
func NewConditionEvaluator(store ports.KeyValueStore, opts ...Option) *ConditionEvaluator {
	o := newOptions(opts)
	return &ConditionEvaluator{
		store:  store,
		logger: logging.Component(o.logger, "condition"),
	}
}

// Evaluate reads a single "left op right" comparison, or a bare key tested
// for truthiness. It never fails: any problem is logged and yields false.
func (c *ConditionEvaluator) Evaluate(ctx context.Context, expr string) (result bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("condition panicked", "expr", expr, "panic", r)
			result = false
		}
	}()

	ok, err := c.evaluate(ctx, expr)
	if err != nil {
		c.logger.Warn("condition evaluation failed", "error", &EvaluationError{Expr: expr, Err: err})
		return false
	}
	return ok
}

func (c *ConditionEvaluator) evaluate(ctx context.Context, expr string) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, errors.New("empty expression")
	}

	pos, op := findOperator(expr)
	if op == "" {
		v, err := c.lookup(ctx, expr)
		if err != nil {
			return false, err
		}
		return domain.Truthy(v), nil
	}

	left := strings.TrimSpace(expr[:pos])
	right := strings.TrimSpace(expr[pos+len(op):])
	if left == "" {
		return false, fmt.Errorf("missing left operand for %q", op)
	}

	lv, err := c.lookup(ctx, left)
	if err != nil {
		return false, err
	}
	rv := domain.ParseLiteral(right)

	if c.logger.Enabled(ctx, slog.LevelDebug) {
		c.logger.Debug("condition", "expr", expr, "left", domain.StringForm(lv), "op", op, "right", domain.StringForm(rv))
	}
	return compare(lv, op, rv), nil
}

// lookup reads "namespace.remainder" from the store. Absent keys read as null.
func (c *ConditionEvaluator) lookup(ctx context.Context, operand string) (domain.Value, error) {
	if c.store == nil {
		return domain.Null{}, nil
	}
	key := operand
	if ns, rest, found := strings.Cut(operand, "."); found {
		key = strings.TrimSpace(ns) + "." + strings.TrimSpace(rest)
	}
	v, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || v == nil {
		return domain.Null{}, nil
	}
	return v, nil
}

func compare(left domain.Value, op string, right domain.Value) bool {
	switch op {
	case "==":
		return domain.LooseEqual(left, right)
	case "!=":
		return !domain.LooseEqual(left, right)
	}

	ln, lok := domain.AsNumber(left)
	rn, rok := domain.AsNumber(right)
	if !lok || !rok {
		return false
	}
	switch op {
	case ">":
		return ln > rn
	case "<":
		return ln < rn
	case ">=":
		return ln >= rn
	case "<=":
		return ln <= rn
	}
	return false
}

// EvaluateCompound evaluates conditions joined by "||" and "&&".
// There is no grouping: the expression is split on every "||" first, and
// only when none is present on "&&". A clause still holding an operator is
// evaluated again through EvaluateCompound.
func (c *ConditionEvaluator) EvaluateCompound(ctx context.Context, expr string) bool {
	if strings.TrimSpace(expr) == "" {
		return false
	}

	if clauses := splitOutsideQuotes(expr, "||"); len(clauses) > 1 {
		for _, clause := range clauses {
			if c.evaluateClause(ctx, clause) {
				return true
			}
		}
		return false
	}

	if clauses := splitOutsideQuotes(expr, "&&"); len(clauses) > 1 {
		for _, clause := range clauses {
			if !c.evaluateClause(ctx, clause) {
				return false
			}
		}
		return true
	}

	return c.Evaluate(ctx, expr)
}

func (c *ConditionEvaluator) evaluateClause(ctx context.Context, clause string) bool {
	if len(splitOutsideQuotes(clause, "||")) > 1 || len(splitOutsideQuotes(clause, "&&")) > 1 {
		return c.EvaluateCompound(ctx, clause)
	}
	return c.Evaluate(ctx, clause)
}

// findOperator returns the position of the first comparison operator that
// is not inside single or double quotes.
func findOperator(expr string) (int, string) {
	var quote byte
	for i := 0; i < len(expr); i++ {
		ch := expr[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		if ch == '\'' || ch == '"' {
			quote = ch
			continue
		}
		for _, op := range comparisonOperators {
			if strings.HasPrefix(expr[i:], op) {
				return i, op
			}
		}
	}
	return -1, ""
}

// splitOutsideQuotes splits s on sep, ignoring occurrences inside quotes.
func splitOutsideQuotes(s, sep string) []string {
	var (
		parts []string
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		if ch == '\'' || ch == '"' {
			quote = ch
			continue
		}
		if strings.HasPrefix(s[i:], sep) {
			parts = append(parts, s[start:i])
			i += len(sep) - 1
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
