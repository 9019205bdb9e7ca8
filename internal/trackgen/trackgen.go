// Package trackgen synthesizes multi-year sets of storm tracks from a
// calibrated climatology. Each simulation unit draws its storm count, genesis
// conditions, and hourly evolution from a single deterministic RNG stream, so
// a unit's tracks are a pure function of (climatology, parameters, seed, unit
// index) and never depend on worker count or dispatch order.
package trackgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/couchcryptid/cyclone-hazard/internal/climate"
	"github.com/couchcryptid/cyclone-hazard/internal/domain"
	"github.com/couchcryptid/cyclone-hazard/internal/geo"
	"github.com/couchcryptid/cyclone-hazard/internal/random"
)

const (
	// DefaultMaxSteps bounds a track to 15 synthetic days at the default step.
	DefaultMaxSteps = 360

	// DefaultStepHours is the simulation time step.
	DefaultStepHours = 1.0

	// maxGenesisRetries bounds the rejection loop over degenerate genesis draws.
	maxGenesisRetries = 50

	// epochYear anchors synthetic timestamps. Tracks only need ordering, so
	// any fixed calendar works; unit u year y lands in epochYear+y.
	epochYear = 2000
)

// ErrGenesisExhausted reports that every genesis draw within the retry bound
// was degenerate. It fails the whole simulation unit.
var ErrGenesisExhausted = errors.New("no viable genesis draw")

// Params configures track synthesis for a run.
type Params struct {
	Seed        int64
	YearsPerSim int     // synthetic years per simulation unit
	MaxSteps    int     // maximum points per track, including genesis
	StepHours   float64 // simulation time step in hours
	Inner       *climate.Bounds
}

// DefaultParams returns the stock stepping parameters for a one-year unit.
func DefaultParams() Params {
	return Params{YearsPerSim: 1, MaxSteps: DefaultMaxSteps, StepHours: DefaultStepHours}
}

// Unit is the generation outcome of one simulation unit: the surviving tracks
// plus the accounting the run report aggregates.
type Unit struct {
	Index   int
	Tracks  []domain.Track
	Storms  int                // storms synthesized, before post-filters
	Dropped map[DropReason]int // post-filter removals, by reason
}

// Generator synthesizes storm tracks. It is safe for concurrent use: all
// per-unit state lives in the unit's RNG stream and stack locals.
type Generator struct {
	clim   *climate.Climatology
	params Params
	logger *slog.Logger
}

// New validates the parameters and builds a generator.
func New(clim *climate.Climatology, params Params, logger *slog.Logger) (*Generator, error) {
	if clim == nil {
		return nil, errors.New("trackgen: climatology is required")
	}
	if params.YearsPerSim < 1 {
		return nil, fmt.Errorf("trackgen: years per simulation must be at least 1, got %d", params.YearsPerSim)
	}
	if params.MaxSteps < 2 {
		return nil, fmt.Errorf("trackgen: max steps must be at least 2, got %d", params.MaxSteps)
	}
	if params.StepHours <= 0 {
		return nil, fmt.Errorf("trackgen: step hours must be positive, got %g", params.StepHours)
	}
	return &Generator{clim: clim, params: params, logger: logger}, nil
}

// GenerateUnit synthesizes one unit's storms. The storm count is Poisson with
// mean yearsPerSim times the climatology's annual genesis frequency; each
// storm is assigned a uniform year within the unit, which together reproduce
// independent per-year Poisson counts. Dropped tracks are logged and counted;
// an exhausted genesis draw fails the unit.
func (g *Generator) GenerateUnit(ctx context.Context, unit int) (Unit, error) {
	src := random.UnitSource(g.params.Seed, unit)
	rng := rand.New(src)
	counts := distuv.Poisson{Lambda: float64(g.params.YearsPerSim) * g.clim.MeanFrequency, Src: src}

	u := Unit{Index: unit, Storms: int(counts.Rand())}
	for seq := 1; seq <= u.Storms; seq++ {
		if err := ctx.Err(); err != nil {
			return Unit{}, fmt.Errorf("trackgen: unit %d: %w", unit, err)
		}

		year := rng.IntN(g.params.YearsPerSim)
		start := g.genesisTime(rng, year)
		origin, err := g.genesis(rng, start)
		if err != nil {
			return Unit{}, fmt.Errorf("trackgen: storm %s: %w", domain.TrackID(unit, seq), err)
		}

		track := domain.Track{
			ID:     domain.TrackID(unit, seq),
			Unit:   unit,
			Year:   year,
			Points: g.evolve(rng, origin),
		}
		if reason, dropped := g.filter(track); dropped {
			if u.Dropped == nil {
				u.Dropped = make(map[DropReason]int)
			}
			u.Dropped[reason]++
			g.logger.Warn("track dropped",
				"track", track.ID,
				"reason", string(reason),
				"duration_hours", track.Duration(),
			)
			continue
		}
		u.Tracks = append(u.Tracks, track)
	}

	g.logger.Debug("unit generated",
		"unit", unit,
		"storms", u.Storms,
		"kept", len(u.Tracks),
	)
	return u, nil
}

// genesis draws a storm's initial state: origin from the genesis field,
// bearing, speed, central pressure, and size from the origin cell's empirical
// distributions, environment pressure from the MSLP field. Degenerate draws
// are rejected and redrawn whole: origins outside the domain, non-positive or
// NaN speed or size, a non-positive pressure deficit, and storms whose first
// step would already exit the domain.
func (g *Generator) genesis(rng *rand.Rand, start time.Time) (domain.StormState, error) {
	for attempt := 0; attempt < maxGenesisRetries; attempt++ {
		lon, lat := g.clim.SampleOrigin(rng)
		cell, err := g.clim.Domain.CellIndex(lon, lat)
		if err != nil {
			continue
		}

		bearing := g.clim.SampleBearing(rng, cell)
		speed := g.clim.SampleSpeed(rng, cell)
		env := g.clim.SampleMSLP(lon, lat)
		pressure := g.clim.SamplePressure(rng, cell, env)
		size := g.clim.SampleSize(rng, cell)

		// NaN draws fail every comparison and are rejected with the rest.
		if !(speed > 0) || !(size > 0) || pressure >= env {
			continue
		}
		nextLon, nextLat := geo.Destination(lon, lat, bearing, g.params.StepHours*speed)
		if !g.clim.Domain.Contains(nextLon, nextLat) {
			continue
		}

		return domain.StormState{
			Timestamp:   start,
			Lon:         lon,
			Lat:         lat,
			Speed:       speed,
			Bearing:     bearing,
			Pressure:    pressure,
			EnvPressure: env,
			RMax:        size,
		}, nil
	}
	return domain.StormState{}, fmt.Errorf("%w after %d attempts", ErrGenesisExhausted, maxGenesisRetries)
}

// genesisTime places a storm within its synthetic year: month from the
// seasonal weights, day and hour uniform.
func (g *Generator) genesisTime(rng *rand.Rand, year int) time.Time {
	month := g.clim.SampleMonth(rng.Float64())
	day := 1 + rng.IntN(28)
	hour := rng.IntN(24)
	return time.Date(epochYear+year, month, day, hour, 0, 0, 0, time.UTC)
}
