package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testRun(id, scenario string) Run {
	return Run{
		ID:           id,
		Scenario:     scenario,
		StartedAt:    time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
		DurationMS:   4200,
		Pass:         true,
		RawOutput:    "EVENT: {\"level\":\"error\"}\n",
		EventJSON:    []byte(`{"level":"error"}`),
		EnvelopeJSON: nil,
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Ping(context.Background()))
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	assert.NoError(t, st.Close())
}

func TestSaveAndGetRun(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run := testRun(NewRunID(), "error-return")
	require.NoError(t, st.SaveRun(ctx, run))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "error-return", got.Scenario)
	assert.True(t, got.StartedAt.Equal(run.StartedAt))
	assert.Equal(t, int64(4200), got.DurationMS)
	assert.True(t, got.Pass)
	assert.Equal(t, run.RawOutput, got.RawOutput)
	assert.Equal(t, run.EventJSON, got.EventJSON)
	assert.Nil(t, got.EnvelopeJSON)
}

func TestSaveRunRequiresID(t *testing.T) {
	st := newTestStore(t)

	run := testRun("", "error-return")
	assert.Error(t, st.SaveRun(context.Background(), run))
}

func TestGetRunNotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListRunsInExecutionOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// UUIDv7 IDs are time-sortable, so insertion order survives the
	// ORDER BY id.
	var ids []string
	for _, scenario := range []string{"first", "second", "third"} {
		id := NewRunID()
		ids = append(ids, id)
		require.NoError(t, st.SaveRun(ctx, testRun(id, scenario)))
	}

	runs, err := st.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	for i, run := range runs {
		assert.Equal(t, ids[i], run.ID)
	}
	assert.Equal(t, "first", runs[0].Scenario)
	assert.Equal(t, "third", runs[2].Scenario)
}

func TestNewRunIDIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := NewRunID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate run ID %s", id)
		seen[id] = struct{}{}
	}
}
