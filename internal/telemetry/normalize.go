package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// volatileKeys are fields that differ between otherwise identical runs:
// identifiers, timestamps, and environment metadata. They are stripped at
// any nesting depth so normalized snapshots are byte-stable.
var volatileKeys = map[string]struct{}{
	"event_id":        {},
	"timestamp":       {},
	"start_timestamp": {},
	"trace_id":        {},
	"span_id":         {},
	"parent_span_id":  {},
	"sdk":             {},
	"server_name":     {},
	"release":         {},
	"dist":            {},
	"environment":     {},
	"modules":         {},
	"device":          {},
	"os":              {},
	"runtime":         {},
	"stacktrace":      {},
	"breadcrumbs":     {},
}

// Normalize returns a deep copy of m with volatile fields and nulls
// removed. The result is suitable for MarshalCanonical.
func Normalize(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if _, volatile := volatileKeys[k]; volatile {
			continue
		}
		nv := normalizeValue(v)
		if nv == nil {
			continue
		}
		out[k] = nv
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return Normalize(val)
	case []any:
		out := make([]any, 0, len(val))
		for _, elem := range val {
			ne := normalizeValue(elem)
			if ne == nil {
				continue
			}
			out = append(out, ne)
		}
		return out
	default:
		return val
	}
}

// NormalizeJSON decodes a telemetry payload, strips volatile fields, and
// re-serializes it as canonical JSON. Two runs of the same function in
// the same environment produce byte-identical output.
func NormalizeJSON(payload []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return MarshalCanonical(Normalize(m))
}
