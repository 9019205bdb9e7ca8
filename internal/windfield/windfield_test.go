package windfield_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cyclone-hazard/internal/domain"
	"github.com/couchcryptid/cyclone-hazard/internal/grid"
	"github.com/couchcryptid/cyclone-hazard/internal/windfield"
)

func testGrid(t *testing.T) *grid.Analysis {
	t.Helper()
	g, err := grid.NewAnalysis(145, 155, -20, -10, 0.5)
	require.NoError(t, err)
	return g
}

func testTrack() domain.Track {
	start := time.Date(2006, time.January, 10, 0, 0, 0, 0, time.UTC)
	points := make([]domain.StormState, 0, 6)
	for i := 0; i < 6; i++ {
		points = append(points, domain.StormState{
			Timestamp:   start.Add(time.Duration(i) * time.Hour),
			Age:         float64(i),
			Lon:         149 + 0.4*float64(i),
			Lat:         -16 + 0.2*float64(i),
			Speed:       18,
			Bearing:     60,
			Pressure:    955,
			EnvPressure: 1005,
			RMax:        35,
		})
	}
	return domain.Track{ID: "0/1", Unit: 0, Year: 1, Points: points}
}

func TestParseProfile(t *testing.T) {
	for _, name := range []string{"powell", "holland", "willoughby", "doubleholland", "rankine", "jelesnianski"} {
		p, err := windfield.ParseProfile(name)
		require.NoError(t, err)
		assert.Equal(t, windfield.Profile(name), p)
	}

	_, err := windfield.ParseProfile("cubic-spline")
	assert.Error(t, err)
}

func TestParseBoundary(t *testing.T) {
	for _, name := range []string{"kepert", "mcconochie", "hubbert"} {
		b, err := windfield.ParseBoundary(name)
		require.NoError(t, err)
		assert.Equal(t, windfield.BoundaryLayer(name), b)
	}

	_, err := windfield.ParseBoundary("log-layer")
	assert.Error(t, err)
}

func TestNewEvaluatorRejectsBadParams(t *testing.T) {
	g := testGrid(t)

	bad := []func(*windfield.Params){
		func(p *windfield.Params) { p.Profile = "unknown" },
		func(p *windfield.Params) { p.Boundary = "unknown" },
		func(p *windfield.Params) { p.Beta = 0 },
		func(p *windfield.Params) { p.Margin = -1 },
		func(p *windfield.Params) { p.GustFactor = 0 },
	}
	for _, mutate := range bad {
		params := windfield.DefaultParams()
		mutate(&params)
		_, err := windfield.NewEvaluator(g, params)
		assert.Error(t, err)
	}

	_, err := windfield.NewEvaluator(nil, windfield.DefaultParams())
	assert.Error(t, err)
}

func TestEvaluateObservesGusts(t *testing.T) {
	g := testGrid(t)
	ev, err := windfield.NewEvaluator(g, windfield.DefaultParams())
	require.NoError(t, err)

	local := grid.NewLocal(g, 0)
	require.NoError(t, ev.Evaluate(context.Background(), testTrack(), local))

	eyewall, ok := g.CellAt(149.2, -15.9)
	require.True(t, ok)
	assert.Greater(t, local.MaxGust(eyewall), 10.0, "storm neighborhood sees real wind")

	corner, ok := g.CellAt(145.1, -19.9)
	require.True(t, ok)
	assert.Zero(t, local.MaxGust(corner), "cells beyond the margin stay untouched")

	for cell := 0; cell < g.CellCount(); cell++ {
		gust := local.MaxGust(cell)
		assert.False(t, math.IsNaN(gust))
		assert.GreaterOrEqual(t, gust, 0.0)
	}
}

func TestEvaluatePressureBounds(t *testing.T) {
	g := testGrid(t)
	ev, err := windfield.NewEvaluator(g, windfield.DefaultParams())
	require.NoError(t, err)

	local := grid.NewLocal(g, 0)
	require.NoError(t, ev.Evaluate(context.Background(), testTrack(), local))

	acc, err := grid.NewAccumulator(g, 1)
	require.NoError(t, err)
	require.NoError(t, acc.Merge(local))

	eyewall, ok := g.CellAt(149.2, -15.9)
	require.True(t, ok)
	p := acc.MinPressure(eyewall)
	assert.GreaterOrEqual(t, p, 955.0, "no deeper than the storm center")
	assert.Less(t, p, 1005.0, "below ambient near the eye")
}

func TestEvaluateHonorsCancellation(t *testing.T) {
	g := testGrid(t)
	ev, err := windfield.NewEvaluator(g, windfield.DefaultParams())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	local := grid.NewLocal(g, 0)
	err = ev.Evaluate(ctx, testTrack(), local)
	require.ErrorIs(t, err, context.Canceled)

	for cell := 0; cell < g.CellCount(); cell++ {
		assert.Zero(t, local.MaxGust(cell))
	}
}

func TestEvaluateSkipsPointsOutsideGrid(t *testing.T) {
	g := testGrid(t)
	ev, err := windfield.NewEvaluator(g, windfield.DefaultParams())
	require.NoError(t, err)

	track := testTrack()
	for i := range track.Points {
		track.Points[i].Lon = 170
	}

	local := grid.NewLocal(g, 0)
	require.NoError(t, ev.Evaluate(context.Background(), track, local))
	for cell := 0; cell < g.CellCount(); cell++ {
		assert.Zero(t, local.MaxGust(cell))
	}
}
