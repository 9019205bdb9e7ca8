package trackgen

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cyclone-hazard/internal/climate"
	"github.com/couchcryptid/cyclone-hazard/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDomain() climate.Domain {
	return climate.Domain{MinLon: 145, MaxLon: 160, MinLat: -25, MaxLat: -10, CellSize: 5}
}

func testClimatology(t *testing.T) *climate.Climatology {
	t.Helper()
	c := climate.Synthetic(climate.SyntheticSpec{Domain: testDomain(), MeanFrequency: 8}, 42)
	require.NoError(t, c.Validate())
	return c
}

func testParams() Params {
	return Params{Seed: 7, YearsPerSim: 5, MaxSteps: DefaultMaxSteps, StepHours: DefaultStepHours}
}

func testGenerator(t *testing.T, params Params) *Generator {
	t.Helper()
	g, err := New(testClimatology(t), params, discardLogger())
	require.NoError(t, err)
	return g
}

func TestNewRejectsBadParams(t *testing.T) {
	clim := testClimatology(t)

	_, err := New(nil, DefaultParams(), discardLogger())
	assert.Error(t, err, "a generator without a climatology has nothing to sample")

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero years per sim", func(p *Params) { p.YearsPerSim = 0 }},
		{"single step", func(p *Params) { p.MaxSteps = 1 }},
		{"zero step hours", func(p *Params) { p.StepHours = 0 }},
		{"negative step hours", func(p *Params) { p.StepHours = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams()
			tt.mutate(&params)
			_, err := New(clim, params, discardLogger())
			assert.Error(t, err)
		})
	}
}

func TestGenerateUnitDeterministic(t *testing.T) {
	a, err := testGenerator(t, testParams()).GenerateUnit(context.Background(), 3)
	require.NoError(t, err)
	b, err := testGenerator(t, testParams()).GenerateUnit(context.Background(), 3)
	require.NoError(t, err)

	require.NotEmpty(t, a.Tracks)
	assert.Empty(t, cmp.Diff(a, b), "same seed and unit must replay the same storms")

	c, err := testGenerator(t, testParams()).GenerateUnit(context.Background(), 4)
	require.NoError(t, err)
	assert.NotEmpty(t, cmp.Diff(a.Tracks, c.Tracks), "distinct units draw distinct storms")
}

func TestGenerateUnitTrackInvariants(t *testing.T) {
	params := testParams()
	u, err := testGenerator(t, params).GenerateUnit(context.Background(), 0)
	require.NoError(t, err)

	require.Greater(t, u.Storms, 0)
	require.NotEmpty(t, u.Tracks)

	dom := testDomain()
	seen := make(map[string]bool)
	for _, tr := range u.Tracks {
		require.NoError(t, tr.Validate(), "track %s", tr.ID)
		assert.False(t, seen[tr.ID], "track id %s reused", tr.ID)
		seen[tr.ID] = true

		assert.Equal(t, 0, tr.Unit)
		assert.GreaterOrEqual(t, tr.Year, 0)
		assert.Less(t, tr.Year, params.YearsPerSim)
		assert.GreaterOrEqual(t, tr.Duration(), spinUpHours, "track %s died before the spin-up window", tr.ID)
		assert.LessOrEqual(t, len(tr.Points), params.MaxSteps)

		assert.Zero(t, tr.Points[0].Age)
		for i, p := range tr.Points {
			assert.True(t, dom.Contains(p.Lon, p.Lat), "track %s point %d wandered outside the domain", tr.ID, i)
			assert.Less(t, p.Pressure, p.EnvPressure, "track %s point %d has no deficit", tr.ID, i)
			if i > 0 {
				assert.InDelta(t, tr.Points[i-1].Age+params.StepHours, p.Age, 1e-9)
			}
		}
	}
}

func TestGenerateUnitAccounting(t *testing.T) {
	u, err := testGenerator(t, testParams()).GenerateUnit(context.Background(), 1)
	require.NoError(t, err)

	dropped := 0
	for _, n := range u.Dropped {
		dropped += n
	}
	assert.Equal(t, 1, u.Index)
	assert.Equal(t, u.Storms, len(u.Tracks)+dropped, "every synthesized storm is kept or counted dropped")
}

func TestGenerateUnitHonorsCancellation(t *testing.T) {
	g := testGenerator(t, testParams())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.GenerateUnit(ctx, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestGenerateUnitInnerFilter(t *testing.T) {
	base, err := testGenerator(t, testParams()).GenerateUnit(context.Background(), 2)
	require.NoError(t, err)
	require.NotEmpty(t, base.Tracks)

	inner := &climate.Bounds{MinLon: 149, MaxLon: 156, MinLat: -21, MaxLat: -14}
	params := testParams()
	params.Inner = inner
	bounded, err := testGenerator(t, params).GenerateUnit(context.Background(), 2)
	require.NoError(t, err)

	for _, tr := range bounded.Tracks {
		for _, p := range tr.Points {
			assert.True(t, inner.Contains(p.Lon, p.Lat), "track %s escapes the inner domain", tr.ID)
		}
	}
	assert.NotZero(t, bounded.Dropped[DropLeftInner])
	assert.Equal(t, len(base.Tracks)-len(bounded.Tracks), bounded.Dropped[DropLeftInner],
		"inner filter prunes exactly the escapers")
}

// degenerateClimatology puts every tabulated initial pressure above the
// environment pressure, so no genesis draw can open a deficit.
func degenerateClimatology(t *testing.T) *climate.Climatology {
	t.Helper()
	d := climate.Domain{MinLon: 150, MaxLon: 155, MinLat: -20, MaxLat: -15, CellSize: 5}
	flat := func(v float64) climate.Field {
		return climate.Field{MinLon: d.MinLon, MinLat: d.MinLat, Resolution: 5, Cols: 1, Rows: 1, Values: []float64{v}}
	}
	co := climate.Coefficients{Sigma: 1, Alpha: 0.5, Phi: 0.5}
	stats := climate.VariableStats{Sea: []climate.Coefficients{co}, Land: []climate.Coefficients{co}}

	c := &climate.Climatology{
		Domain:         d,
		MeanFrequency:  20,
		MonthlyWeights: [12]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		Genesis:        flat(1),
		MSLP:           flat(950),
		LandMask:       flat(0),
		Speed:          stats,
		Bearing:        stats,
		Pressure:       stats,
		PressureRate:   stats,
		SizeRate:       stats,
		InitBearing:    []climate.CDF{climate.NewCDF([]float64{200, 220, 240})},
		InitSpeed:      []climate.CDF{climate.NewCDF([]float64{10, 15, 20})},
		InitPressure:   []climate.CDF{climate.NewCDF([]float64{980, 990, 1000})},
		InitSize:       []climate.CDF{climate.NewCDF([]float64{30, 40, 50})},
	}
	require.NoError(t, c.Validate())
	return c
}

func TestGenerateUnitGenesisExhausted(t *testing.T) {
	g, err := New(degenerateClimatology(t), Params{Seed: 1, YearsPerSim: 1, MaxSteps: 60, StepHours: 1}, discardLogger())
	require.NoError(t, err)

	_, err = g.GenerateUnit(context.Background(), 0)
	require.ErrorIs(t, err, ErrGenesisExhausted)
}

func TestFilterRules(t *testing.T) {
	point := func(age, lon, lat, pressure, env float64) domain.StormState {
		return domain.StormState{
			Timestamp:   time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(age) * time.Hour),
			Age:         age,
			Lon:         lon,
			Lat:         lat,
			Speed:       15,
			Bearing:     220,
			Pressure:    pressure,
			EnvPressure: env,
			RMax:        30,
		}
	}
	healthy := func(hours int) []domain.StormState {
		pts := make([]domain.StormState, hours+1)
		for i := range pts {
			pts[i] = point(float64(i), 152, -17, 975, 1005)
		}
		return pts
	}

	params := testParams()
	params.Inner = &climate.Bounds{MinLon: 150, MaxLon: 155, MinLat: -20, MaxLat: -15}
	g := testGenerator(t, params)

	filled := healthy(14)
	filled[7].Pressure = filled[7].EnvPressure

	escaped := healthy(14)
	escaped[9].Lon = 158

	tests := []struct {
		name    string
		points  []domain.StormState
		reason  DropReason
		dropped bool
	}{
		{"empty", nil, DropEmpty, true},
		{"died early", healthy(10), DropDiedEarly, true},
		{"filled", filled, DropFilled, true},
		{"left inner domain", escaped, DropLeftInner, true},
		{"kept", healthy(14), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, dropped := g.filter(domain.Track{ID: "0/1", Points: tt.points})
			assert.Equal(t, tt.dropped, dropped)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestLandfallDecayFillsTowardEnvironment(t *testing.T) {
	s := &stepper{rng: rand.New(rand.NewPCG(1, 2)), dt: 1, offshorePressure: 960}

	first := s.pressure(0, true, 960, 1005)
	assert.InDelta(t, 962.0, first, 0.3, "one hour ashore barely fills the storm")

	p := first
	for hour := 2; hour <= 48; hour++ {
		p = s.pressure(0, true, p, 1005)
		assert.Less(t, p, 1005.0, "filling never overshoots the environment at hour %d", hour)
	}
	assert.Greater(t, p, 995.0, "two days ashore nearly fills the storm")
	assert.Greater(t, p, first)
}

func TestOffshorePressureFloorReverses(t *testing.T) {
	// Lowest observed pressure 935 with sigma 9 puts the floor at 899.
	stats := climate.VariableStats{
		Sea:  []climate.Coefficients{{Min: 935, Sigma: 9}},
		Land: []climate.Coefficients{{Min: 935, Sigma: 9}},
	}
	s := &stepper{clim: &climate.Climatology{Pressure: stats}, dt: 1, rate: -2}

	got := s.pressure(0, false, 899.5, 1005)
	assert.InDelta(t, 901.5, got, 1e-12, "deepening through the floor reverses the increment")
	assert.InDelta(t, 901.5, s.offshorePressure, 1e-12)

	got = s.pressure(0, false, 950, 1005)
	assert.InDelta(t, 948.0, got, 1e-12, "ordinary deepening integrates the rate")
}

func TestSizeAntitheticIncrement(t *testing.T) {
	// Zero-variance coefficients pin the radius tendency at -3 km/h.
	stats := climate.VariableStats{
		Sea:  []climate.Coefficients{{Mu: -3}},
		Land: []climate.Coefficients{{Mu: -3}},
	}
	s := &stepper{clim: &climate.Climatology{SizeRate: stats}, rng: rand.New(rand.NewPCG(1, 2)), dt: 1}

	assert.InDelta(t, 37.0, s.size(0, false, false, 40), 1e-12, "shrinks by the sampled rate")
	assert.InDelta(t, 5.0, s.size(0, false, false, 2), 1e-12, "reverses when the radius would collapse")
}

func TestGenesisTimeRespectsSeasonality(t *testing.T) {
	clim := &climate.Climatology{MonthlyWeights: [12]float64{0, 1}}
	g := &Generator{clim: clim}
	rng := rand.New(rand.NewPCG(3, 4))

	for i := 0; i < 20; i++ {
		ts := g.genesisTime(rng, 3)
		assert.Equal(t, time.February, ts.Month())
		assert.Equal(t, epochYear+3, ts.Year())
	}
}
