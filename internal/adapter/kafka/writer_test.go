package kafka

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cyclone-hazard/internal/domain"
	"github.com/couchcryptid/cyclone-hazard/internal/pipeline"
)

func testRunInfo() pipeline.RunInfo {
	return pipeline.RunInfo{
		ID:          "run-1",
		StartedAt:   time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC),
		Seed:        7,
		Simulations: 500,
		YearsPerSim: 10,
		Profile:     "powell",
		Boundary:    "kepert",
	}
}

func TestSerializeRunStarted(t *testing.T) {
	producedAt := time.Date(2026, 2, 1, 6, 0, 1, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(producedAt))
	defer domain.SetClock(nil)

	msg, err := serializeToMessage("run_started", testRunInfo(), nil)
	require.NoError(t, err)

	assert.Equal(t, []byte("run-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"event":"run_started"`)
	assert.Contains(t, string(msg.Value), `"run_id":"run-1"`)
	assert.Contains(t, string(msg.Value), `"profile":"powell"`)
	assert.Contains(t, string(msg.Value), `"boundary":"kepert"`)
	assert.NotContains(t, string(msg.Value), `"report"`)

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("run_started"), msg.Headers[0].Value)
	assert.Equal(t, "produced_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(producedAt.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeRunCompleted(t *testing.T) {
	report := pipeline.Report{
		RunID:          "run-1",
		Units:          500,
		UnitsCompleted: 498,
		UnitsFailed:    2,
		Storms:         4100,
		TracksKept:     3950,
		CellsFitted:    1180,
	}

	msg, err := serializeToMessage("run_completed", testRunInfo(), &report)
	require.NoError(t, err)

	assert.Equal(t, []byte("run-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"event":"run_completed"`)
	assert.Contains(t, string(msg.Value), `"report":{`)
	assert.Contains(t, string(msg.Value), `"units_completed":498`)
	assert.Contains(t, string(msg.Value), `"cells_fitted":1180`)
	assert.Equal(t, []byte("run_completed"), msg.Headers[0].Value)
}
