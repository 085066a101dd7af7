package domain

import (
	"math"
	"strconv"
	"strings"
)

// The coercion rules shared by the condition evaluator, the state mutator and
// the template resolver live here so every component agrees on them.

// AsNumber reports the numeric reading of v. Ints, floats and strings that
// parse as numbers are numeric; everything else is not.
func AsNumber(v Value) (float64, bool) {
	switch val := v.(type) {
	case Int:
		return float64(val), true
	case Float:
		return float64(val), true
	case String:
		s := strings.TrimSpace(string(val))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsInt reports the integer reading of v: ints, whole floats and strings
// holding a whole number.
func AsInt(v Value) (int64, bool) {
	switch val := v.(type) {
	case Int:
		return int64(val), true
	case Float:
		f := float64(val)
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int64(f), true
	case String:
		s := strings.TrimSpace(string(val))
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, ok := AsNumber(val); ok && f == math.Trunc(f) {
			return int64(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// Truthy implements the truthiness rule: null, false, 0, empty string,
// empty list and empty map are false; everything else is true.
func Truthy(v Value) bool {
	switch val := v.(type) {
	case nil, Null:
		return false
	case Bool:
		return bool(val)
	case Int:
		return val != 0
	case Float:
		return val != 0
	case String:
		return val != ""
	case List:
		return len(val) > 0
	case Map:
		return len(val) > 0
	default:
		return false
	}
}

// StringForm is the canonical text of a value used for loose comparisons.
// Null reads as "null".
func StringForm(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "null"
	case Bool:
		return strconv.FormatBool(bool(val))
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case String:
		return string(val)
	default:
		b, err := MarshalValue(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// DisplayString is the text shown to users: like StringForm, except null
// renders as the empty string.
func DisplayString(v Value) string {
	if IsNull(v) {
		return ""
	}
	if l, ok := v.(List); ok {
		parts := make([]string, 0, len(l))
		for _, item := range l {
			parts = append(parts, DisplayString(item))
		}
		return strings.Join(parts, ", ")
	}
	return StringForm(v)
}

// Equal is strict structural equality. Int(1) and Float(1) are not Equal.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	switch av := a.(type) {
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, item := range av {
			other, exists := bv[k]
			if !exists || !Equal(item, other) {
				return false
			}
		}
		return true
	}
	return false
}

// LooseEqual applies the equality ladder: direct equality, then numeric
// comparison when both sides are numeric, then string-form comparison.
func LooseEqual(a, b Value) bool {
	if Equal(a, b) {
		return true
	}
	an, aok := AsNumber(a)
	bn, bok := AsNumber(b)
	if aok && bok {
		return an == bn
	}
	return StringForm(a) == StringForm(b)
}

// ParseLiteral reads the right-hand side of a comparison (or a raw action
// argument) into a Value: null, true/false, quoted text, int, float, or the
// raw string.
func ParseLiteral(s string) Value {
	s = strings.TrimSpace(s)
	switch s {
	case "null":
		return Null{}
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' || first == '"') && first == last {
			return String(s[1 : len(s)-1])
		}
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f)
	}
	return String(s)
}

// AsList reads a list-like value: a native list, a string holding a JSON
// array, or a comma-separated string. The empty string is an empty list.
func AsList(v Value) (List, bool) {
	switch val := v.(type) {
	case List:
		return val, true
	case String:
		s := strings.TrimSpace(string(val))
		if s == "" {
			return List{}, true
		}
		if strings.HasPrefix(s, "[") {
			decoded, err := UnmarshalValue([]byte(s))
			if err != nil {
				return nil, false
			}
			l, ok := decoded.(List)
			return l, ok
		}
		parts := strings.Split(s, ",")
		out := make(List, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			out = append(out, String(p))
		}
		return out, true
	default:
		return nil, false
	}
}

// CoerceLike converts v towards the variant of sample where a lossless
// reading exists: numeric strings become Int/Float next to numbers, numbers
// and bools become String next to strings. Otherwise v is returned as is.
func CoerceLike(v, sample Value) Value {
	switch sample.(type) {
	case Int:
		if i, ok := AsInt(v); ok {
			return Int(i)
		}
		if f, ok := AsNumber(v); ok {
			return Float(f)
		}
	case Float:
		if f, ok := AsNumber(v); ok {
			return Float(f)
		}
	case String:
		switch v.(type) {
		case Int, Float, Bool:
			return String(StringForm(v))
		}
	}
	return v
}

// IndexOf returns the position of the first element of l equal to v once v
// has been coerced to that element's variant, or -1.
func IndexOf(l List, v Value) int {
	for i, item := range l {
		if Equal(item, CoerceLike(v, item)) {
			return i
		}
	}
	return -1
}
