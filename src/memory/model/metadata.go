package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// Metadata keys the engine reads explicitly; everything else is opaque.
const (
	TopicKey       = "topic"
	InteractionKey = "interaction_count"
)

// DecodeMetadata parses a JSON metadata blob into a map. Invalid or empty
// input yields an empty map rather than an error.
func DecodeMetadata(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return map[string]any{}
	}
	return meta
}

// EncodeMetadata serializes a metadata map back to its JSON form.
func EncodeMetadata(meta map[string]any) string {
	if len(meta) == 0 {
		return "{}"
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// CloneMetadata returns a shallow copy so callers can mutate without aliasing.
func CloneMetadata(meta map[string]any) map[string]any {
	cp := make(map[string]any, len(meta))
	for k, v := range meta {
		cp[k] = v
	}
	return cp
}

// FloatFromAny coerces loosely typed metadata values into float64.
func FloatFromAny(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
	}
	return 0
}

// StringFromAny coerces a metadata value into a string, serializing composite
// values as compact JSON.
func StringFromAny(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// TimeFromAny coerces a metadata value into a time.Time. Unparseable input
// yields the zero time.
func TimeFromAny(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts
		}
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// Topic extracts the explicit topic tag from a record's metadata, if any.
func Topic(rec MemoryRecord) string {
	return StringFromAny(DecodeMetadata(rec.Metadata)[TopicKey])
}

// InteractionCount extracts the explicit engagement counter from a record's
// metadata. The second return reports whether the signal was present at all.
func InteractionCount(rec MemoryRecord) (float64, bool) {
	meta := DecodeMetadata(rec.Metadata)
	raw, ok := meta[InteractionKey]
	if !ok {
		return 0, false
	}
	n := FloatFromAny(raw)
	if n < 0 {
		n = 0
	}
	return n, true
}
