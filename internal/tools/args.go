package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Arguments arrive decoded from JSON, so numbers are float64 and arrays are
// []any. These helpers coerce them to the declared parameter types.

func requireString(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return "", fmt.Errorf("missing required parameter: %s", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %s must be a string, got %T", name, v)
	}
	return s, nil
}

func optString(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

func optInt(args map[string]any, name string, def int) int {
	switch n := args[name].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return def
}

func optBool(args map[string]any, name string) bool {
	switch b := args[name].(type) {
	case bool:
		return b
	case string:
		v, _ := strconv.ParseBool(b)
		return v
	}
	return false
}

func optStrings(args map[string]any, name string) []string {
	switch v := args[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

func fail(err error) map[string]any {
	return map[string]any{"success": false, "error": err.Error()}
}
