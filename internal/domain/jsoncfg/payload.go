// Package jsoncfg holds helpers for the loosely typed JSON payloads that flow
// between clients, providers and the ledger.
package jsoncfg

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Clean recursively drops nil values, empty strings, empty arrays and empty
// objects. The second result is false when v itself collapses to nothing.
// Zero numbers and false booleans are kept.
func Clean(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		return t, t != ""
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			if cleaned, ok := Clean(item); ok {
				out = append(out, cleaned)
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			if cleaned, ok := Clean(item); ok {
				out[k] = cleaned
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	default:
		return v, true
	}
}

// CleanObject cleans m and always returns a non-nil map, suitable as an
// outbound request body.
func CleanObject(m map[string]any) map[string]any {
	cleaned, ok := Clean(m)
	if !ok {
		return map[string]any{}
	}
	return cleaned.(map[string]any)
}

// Merge returns a shallow copy of base with extra laid over it.
func Merge(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// DecodeObject decodes raw into a map using json.Number for numerics, so
// integer payload values survive a round trip unchanged. Empty input or JSON
// null yields an empty map.
func DecodeObject(raw []byte) (map[string]any, error) {
	out := map[string]any{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode json object: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}
