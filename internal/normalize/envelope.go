package normalize

import (
	"encoding/json"
	"fmt"
)

// Record is one upstream object as decoded from JSON.
type Record = map[string]any

// strategy extracts the record list from one known envelope shape. ok is
// false when the shape does not match.
type strategy struct {
	name    string
	extract func(payload any) (records []any, ok bool)
}

var strategies = []strategy{
	nested("result", "documents"),
	nested("result", "meetings"),
	nested("result", "items"),
	topLevel("documents"),
	topLevel("meetings"),
	topLevel("items"),
	{name: "array", extract: func(payload any) ([]any, bool) {
		list, ok := payload.([]any)
		return list, ok
	}},
}

func nested(outer, inner string) strategy {
	return strategy{
		name: outer + "." + inner,
		extract: func(payload any) ([]any, bool) {
			obj, ok := payload.(map[string]any)
			if !ok {
				return nil, false
			}
			return listAt(obj[outer], inner)
		},
	}
}

func topLevel(key string) strategy {
	return strategy{
		name: key,
		extract: func(payload any) ([]any, bool) {
			return listAt(payload, key)
		},
	}
}

func listAt(v any, key string) ([]any, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	list, ok := obj[key].([]any)
	return list, ok
}

// Envelope returns the ordered records of a decoded payload, trying each
// known envelope shape in turn. The name of the matching shape is returned
// for logging; an unknown shape yields no records and an empty name.
func Envelope(payload any) ([]Record, string) {
	for _, s := range strategies {
		list, ok := s.extract(payload)
		if !ok {
			continue
		}
		records := make([]Record, 0, len(list))
		for _, raw := range list {
			if rec, ok := raw.(map[string]any); ok {
				records = append(records, rec)
			}
		}
		return records, s.name
	}
	return nil, ""
}

// Decode parses a raw response body and applies Envelope. Only malformed JSON
// is an error.
func Decode(body []byte) ([]Record, string, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, "", fmt.Errorf("decode payload: %w", err)
	}
	records, shape := Envelope(payload)
	return records, shape, nil
}

// DecodeObject parses a single-object payload such as a detail response. A
// `result` wrapper is unwrapped when present.
func DecodeObject(body []byte) (Record, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode payload: expected object, got %T", payload)
	}
	if inner, ok := obj["result"].(map[string]any); ok {
		return inner, nil
	}
	return obj, nil
}
