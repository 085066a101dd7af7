package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ValueKind identifies the variant held by a Value.
type ValueKind string

const (
	KindNull   ValueKind = "null"
	KindBool   ValueKind = "bool"
	KindInt    ValueKind = "int"
	KindFloat  ValueKind = "float"
	KindString ValueKind = "string"
	KindList   ValueKind = "list"
	KindMap    ValueKind = "map"
)

// Value is a sealed interface over the dynamically typed entries of the
// key/value store. Only Null, Bool, Int, Float, String, List and Map
// implement it.
type Value interface {
	Kind() ValueKind
	value()
}

// Null is the absent/explicit-null value.
type Null struct{}

func (Null) Kind() ValueKind { return KindNull }
func (Null) value()          {}

// MarshalJSON implements json.Marshaler.
func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// Bool is a boolean value.
type Bool bool

func (Bool) Kind() ValueKind { return KindBool }
func (Bool) value()          {}

// Int is an integer value. Integers and floats are distinct variants so that
// counters written as 3 are read back as 3, not 3.0.
type Int int64

func (Int) Kind() ValueKind { return KindInt }
func (Int) value()          {}

// Float is a floating point value.
type Float float64

func (Float) Kind() ValueKind { return KindFloat }
func (Float) value()          {}

// String is a text value.
type String string

func (String) Kind() ValueKind { return KindString }
func (String) value()          {}

// List is an ordered list of values.
type List []Value

func (List) Kind() ValueKind { return KindList }
func (List) value()          {}

// Map is a string-keyed map of values.
type Map map[string]Value

func (Map) Kind() ValueKind { return KindMap }
func (Map) value()          {}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// FromAny converts a Go value (as produced by encoding/json, yaml.v3 or
// hand-written literals) into a Value. Unknown types are rendered with %v
// into a String.
func FromAny(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Null{}
	case Value:
		return v
	case bool:
		return Bool(v)
	case int:
		return Int(v)
	case int8:
		return Int(v)
	case int16:
		return Int(v)
	case int32:
		return Int(v)
	case int64:
		return Int(v)
	case uint:
		return fromUint(uint64(v))
	case uint8:
		return Int(v)
	case uint16:
		return Int(v)
	case uint32:
		return Int(v)
	case uint64:
		return fromUint(v)
	case float32:
		return fromFloat(float64(v))
	case float64:
		return fromFloat(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return Int(i)
		}
		if f, err := v.Float64(); err == nil {
			return Float(f)
		}
		return String(v.String())
	case string:
		return String(v)
	case []any:
		list := make(List, 0, len(v))
		for _, item := range v {
			list = append(list, FromAny(item))
		}
		return list
	case []string:
		list := make(List, 0, len(v))
		for _, item := range v {
			list = append(list, String(item))
		}
		return list
	case []int:
		list := make(List, 0, len(v))
		for _, item := range v {
			list = append(list, Int(item))
		}
		return list
	case map[string]any:
		m := make(Map, len(v))
		for k, item := range v {
			m[k] = FromAny(item)
		}
		return m
	case map[any]any:
		m := make(Map, len(v))
		for k, item := range v {
			m[fmt.Sprintf("%v", k)] = FromAny(item)
		}
		return m
	default:
		return String(fmt.Sprintf("%v", v))
	}
}

// fromFloat keeps whole numbers decoded as float64 (the encoding/json
// default) as Int.
// fromUint keeps values beyond the int64 range exact as their decimal string.
func fromUint(u uint64) Value {
	if u > math.MaxInt64 {
		return String(strconv.FormatUint(u, 10))
	}
	return Int(u)
}

func fromFloat(f float64) Value {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<53 {
		return Int(int64(f))
	}
	return Float(f)
}

// ToAny converts a Value back into plain Go values.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case String:
		return string(val)
	case List:
		out := make([]any, 0, len(val))
		for _, item := range val {
			out = append(out, ToAny(item))
		}
		return out
	case Map:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = ToAny(item)
		}
		return out
	default:
		return nil
	}
}

// MarshalValue encodes v as JSON. Floats that happen to be whole are written
// with a trailing ".0" so that they decode back as Float.
func MarshalValue(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("cannot encode non-finite float %v", f)
		}
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if f == math.Trunc(f) {
			s += ".0"
		}
		buf.WriteString(s)
	case String:
		b, err := json.Marshal(string(val))
		if err != nil {
			return err
		}
		buf.Write(b)
	case List:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Map:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeValue(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
	return nil
}

// UnmarshalValue decodes JSON produced by MarshalValue (or any JSON document)
// into a Value. Numbers without a fraction or exponent become Int.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return fromDecoded(raw), nil
}

func fromDecoded(raw any) Value {
	switch v := raw.(type) {
	case json.Number:
		s := v.String()
		if !bytes.ContainsAny([]byte(s), ".eE") {
			if i, err := v.Int64(); err == nil {
				return Int(i)
			}
		}
		if f, err := v.Float64(); err == nil {
			return Float(f)
		}
		return String(s)
	case []any:
		list := make(List, 0, len(v))
		for _, item := range v {
			list = append(list, fromDecoded(item))
		}
		return list
	case map[string]any:
		m := make(Map, len(v))
		for k, item := range v {
			m[k] = fromDecoded(item)
		}
		return m
	default:
		return FromAny(v)
	}
}
