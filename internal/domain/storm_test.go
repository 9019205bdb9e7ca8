package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trackStart = time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

// makeTrack builds an n-point hourly track with a constant 20 hPa deficit.
func makeTrack(n int) Track {
	points := make([]StormState, n)
	for i := range points {
		points[i] = StormState{
			Timestamp:   trackStart.Add(time.Duration(i) * time.Hour),
			Age:         float64(i),
			Lon:         150.0 + 0.1*float64(i),
			Lat:         -15.0,
			Speed:       18.0,
			Bearing:     225.0,
			Pressure:    985.0,
			EnvPressure: 1005.0,
			RMax:        40.0,
		}
	}
	return Track{ID: TrackID(0, 0), Points: points}
}

func TestTrackValidate(t *testing.T) {
	t.Run("valid track", func(t *testing.T) {
		require.NoError(t, makeTrack(24).Validate())
	})

	t.Run("empty track", func(t *testing.T) {
		assert.NoError(t, Track{ID: "0/0"}.Validate())
	})

	t.Run("repeated timestamp", func(t *testing.T) {
		tr := makeTrack(5)
		tr.Points[3].Timestamp = tr.Points[2].Timestamp
		err := tr.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not increase")
	})

	t.Run("timestamp going backwards", func(t *testing.T) {
		tr := makeTrack(5)
		tr.Points[4].Timestamp = trackStart
		require.Error(t, tr.Validate())
	})

	t.Run("central pressure above environment", func(t *testing.T) {
		tr := makeTrack(5)
		tr.Points[2].Pressure = tr.Points[2].EnvPressure + 0.5
		err := tr.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds environment")
	})

	t.Run("non-positive rmax", func(t *testing.T) {
		tr := makeTrack(3)
		tr.Points[1].RMax = 0
		require.Error(t, tr.Validate())
	})
}

func TestStormStateDeficit(t *testing.T) {
	s := StormState{Pressure: 970.0, EnvPressure: 1004.5}
	assert.InDelta(t, 34.5, s.Deficit(), 1e-12)
}

func TestTrackDuration(t *testing.T) {
	assert.Zero(t, Track{}.Duration())
	assert.InDelta(t, 23.0, makeTrack(24).Duration(), 1e-12)
}

func TestTrackMinPressure(t *testing.T) {
	tr := makeTrack(6)
	tr.Points[4].Pressure = 962.3
	assert.InDelta(t, 962.3, tr.MinPressure(), 1e-12)
	assert.Zero(t, Track{}.MinPressure())
}

func TestTrackID(t *testing.T) {
	assert.Equal(t, "3/17", TrackID(3, 17))
}

func TestSetClock(t *testing.T) {
	frozen := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(frozen))
	defer SetClock(nil)

	assert.Equal(t, frozen, Now())

	SetClock(nil)
	assert.WithinDuration(t, time.Now(), Now(), time.Minute)
}
