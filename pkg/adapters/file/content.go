package file

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/coachflow/pkg/ports"
	"gopkg.in/yaml.v3"
)

// Content is a content table loaded from YAML. Nested maps are flattened
// with dots, so
//
//	greeting:
//	  welcome: Hello!
//
// answers the content key "greeting.welcome".
type Content map[string]string

// Resolve implements ports.ContentResolver.
func (c Content) Resolve(ctx context.Context, key string) (string, bool) {
	s, ok := c[key]
	return s, ok
}

// LoadContent reads a content table from a YAML (or JSON) file.
func LoadContent(path string) (Content, error) {
	var raw map[string]any
	if err := readYAML(path, &raw); err != nil {
		return nil, err
	}
	out := make(Content)
	flatten("", raw, out)
	return out, nil
}

// LoadFormatters reads formatter tables: store key -> raw value -> display
// string. Store keys may be written flat ("user.mood") or nested.
func LoadFormatters(path string) (ports.Formatters, error) {
	var raw map[string]any
	if err := readYAML(path, &raw); err != nil {
		return nil, err
	}

	out := make(ports.Formatters)
	var visit func(prefix string, node map[string]any)
	visit = func(prefix string, node map[string]any) {
		for k, v := range node {
			key := join(prefix, k)
			child, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if isTable(child) {
				table := make(map[string]string, len(child))
				for rawValue, display := range child {
					table[rawValue] = fmt.Sprintf("%v", display)
				}
				out[key] = table
				continue
			}
			visit(key, child)
		}
	}
	visit("", raw)
	return out, nil
}

// isTable reports whether every value of m is a scalar.
func isTable(m map[string]any) bool {
	for _, v := range m {
		switch v.(type) {
		case map[string]any, []any:
			return false
		}
	}
	return true
}

func readYAML(path string, out *map[string]any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	for k, v := range *out {
		(*out)[k] = stringKeys(v)
	}
	return nil
}

// stringKeys rewrites the map[any]any yaml.v3 produces for non-string keys
// (e.g. "1: easy") into map[string]any.
func stringKeys(v any) any {
	switch val := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, sub := range val {
			m[fmt.Sprintf("%v", k)] = stringKeys(sub)
		}
		return m
	case map[string]any:
		for k, sub := range val {
			val[k] = stringKeys(sub)
		}
		return val
	}
	return v
}

func flatten(prefix string, node map[string]any, out Content) {
	for k, v := range node {
		key := join(prefix, k)
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprintf("%v", val)
		}
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
