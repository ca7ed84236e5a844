package settings

import (
	"encoding/json"
	"strings"
)

// Decode parses raw into T, returning def when the value cannot be used.
//
// Stored values come in three shapes: a bare scalar (12:00), JSON
// (["2026-01-01"]) or JSON encoded as a JSON string ("[\"2026-01-01\"]").
func Decode[T any](raw string, def T) T {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out
	}

	var inner string
	if err := json.Unmarshal([]byte(raw), &inner); err == nil {
		var again T
		if err := json.Unmarshal([]byte(inner), &again); err == nil {
			return again
		}
	}

	if s, ok := any(&out).(*string); ok {
		*s = raw
		return out
	}
	return def
}

// DecodeString unwraps a JSON string if present, otherwise returns raw as is.
func DecodeString(raw string, def string) string {
	v := strings.TrimSpace(Decode(raw, def))
	if v == "" {
		return def
	}
	return v
}

// DecodePositiveInt rejects zero and negative counts.
func DecodePositiveInt(raw string, def int) int {
	v := Decode(raw, def)
	if v <= 0 {
		return def
	}
	return v
}

func DecodeStrings(raw string, def []string) []string {
	v := Decode(raw, def)
	if len(v) == 0 {
		return def
	}
	return v
}
