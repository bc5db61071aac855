package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStripsVolatileFields(t *testing.T) {
	got := Normalize(map[string]any{
		"event_id":  "abc123",
		"timestamp": "2026-01-01T00:00:00Z",
		"level":     "error",
		"sdk":       map[string]any{"name": "sentry.go"},
	})
	assert.Equal(t, map[string]any{"level": "error"}, got)
}

func TestNormalizeStripsAtDepth(t *testing.T) {
	got := Normalize(map[string]any{
		"contexts": map[string]any{
			"trace": map[string]any{
				"trace_id": "deadbeef",
				"span_id":  "cafe",
				"op":       "serverless.function",
			},
		},
		"exception": []any{
			map[string]any{
				"type":       "MyError",
				"stacktrace": map[string]any{"frames": []any{}},
			},
		},
	})
	assert.Equal(t, map[string]any{
		"contexts": map[string]any{
			"trace": map[string]any{"op": "serverless.function"},
		},
		"exception": []any{
			map[string]any{"type": "MyError"},
		},
	}, got)
}

func TestNormalizeStripsNulls(t *testing.T) {
	got := Normalize(map[string]any{
		"level":   "error",
		"message": nil,
		"extra":   []any{nil, "kept"},
	})
	assert.Equal(t, map[string]any{
		"level": "error",
		"extra": []any{"kept"},
	}, got)
}

func TestNormalizeJSONIsStableAcrossVolatileDifferences(t *testing.T) {
	first, err := NormalizeJSON([]byte(`{"event_id":"aaa","timestamp":1700000000.1,"level":"error","exception":[{"type":"E","value":"boom"}]}`))
	require.NoError(t, err)
	second, err := NormalizeJSON([]byte(`{"event_id":"bbb","timestamp":1700009999.9,"level":"error","exception":[{"type":"E","value":"boom"}]}`))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, `{"exception":[{"type":"E","value":"boom"}],"level":"error"}`, string(first))
}

func TestNormalizeJSONRejectsNonObject(t *testing.T) {
	_, err := NormalizeJSON([]byte(`[1,2,3]`))
	assert.Error(t, err)
}
