package store

import (
	"encoding/json"
	"fmt"
	"math"
)

// Fields is the JSON object held by a document.
type Fields map[string]any

type increment struct {
	delta int64
}

type serverTimestamp struct{}

// Increment adds delta to the numeric field at commit time. A missing field
// counts as zero.
func Increment(delta int64) any {
	return increment{delta: delta}
}

// ServerTimestamp is replaced with the commit time in unix milliseconds.
func ServerTimestamp() any {
	return serverTimestamp{}
}

// resolveFields computes the stored value of a document after a write.
// Stored values are normalized through JSON so every backend hands out the
// same representation (float64 numbers, []any arrays, nested Fields as map[string]any).
func resolveFields(existing, updates Fields, now int64, merge bool) (Fields, error) {
	out := Fields{}
	if merge {
		for k, v := range existing {
			out[k] = v
		}
	}

	for k, v := range updates {
		switch val := v.(type) {
		case increment:
			base := float64(0)
			if merge {
				base, _ = Number(existing[k])
			}
			out[k] = base + float64(val.delta)
		case serverTimestamp:
			out[k] = now
		default:
			out[k] = val
		}
	}

	return normalize(out)
}

func normalize(fields Fields) (Fields, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document fields: %w", err)
	}
	out := Fields{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode document fields: %w", err)
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Number converts a decoded JSON number into float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Int64 returns the numeric field rounded to an integer, or zero.
func (d *Document) Int64(field string) int64 {
	if d == nil {
		return 0
	}
	n, _ := Number(d.Fields[field])
	return int64(math.Round(n))
}

// String returns the string field, or "".
func (d *Document) String(field string) string {
	if d == nil {
		return ""
	}
	s, _ := d.Fields[field].(string)
	return s
}

// Decode maps the document fields onto out through JSON.
func (d *Document) Decode(out any) error {
	raw, err := json.Marshal(d.Fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
