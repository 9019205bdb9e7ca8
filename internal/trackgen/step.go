package trackgen

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/cyclone-hazard/internal/climate"
	"github.com/couchcryptid/cyclone-hazard/internal/domain"
	"github.com/couchcryptid/cyclone-hazard/internal/geo"
)

const (
	// weakPressureDeficit terminates a storm once its deficit drops below
	// this many hPa after the spin-up window.
	weakPressureDeficit = 5.0

	// spinUpHours is the age before the weakening check applies.
	spinUpHours = 12.0

	// pressureFloorSigmas is how far below a cell's lowest observed central
	// pressure a storm may deepen before the increment is reversed.
	pressureFloorSigmas = 4.0

	// minRadiusKm is the size below which the antithetic increment applies.
	minRadiusKm = 1.0

	rad2deg = 180.0 / math.Pi
)

// evolve steps a storm from its genesis state until it exits the domain,
// weakens out, or reaches the maximum duration. The point that triggers an
// exit or weakening termination is not part of the returned track.
func (g *Generator) evolve(rng *rand.Rand, origin domain.StormState) []domain.StormState {
	dt := g.params.StepHours
	tick := time.Duration(dt * float64(time.Hour))

	points := make([]domain.StormState, 1, g.params.MaxSteps)
	points[0] = origin

	s := stepper{
		clim:             g.clim,
		rng:              rng,
		dt:               dt,
		bearing:          origin.Bearing,
		speed:            origin.Speed,
		offshorePressure: origin.Pressure,
	}

	for i := 1; i < g.params.MaxSteps; i++ {
		prev := points[len(points)-1]
		lon, lat := geo.Destination(prev.Lon, prev.Lat, prev.Bearing, dt*prev.Speed)
		cell, err := g.clim.Domain.CellIndex(lon, lat)
		if err != nil {
			return points // stepped out of the domain
		}

		env := g.clim.SampleMSLP(lon, lat)
		onLand := g.clim.OnLand(lon, lat)
		pressure, size := s.advance(cell, onLand, i == 1, prev, env)

		next := domain.StormState{
			Timestamp:   prev.Timestamp.Add(tick),
			Age:         prev.Age + dt,
			Lon:         lon,
			Lat:         lat,
			Speed:       s.speed,
			Bearing:     s.bearing,
			Pressure:    pressure,
			EnvPressure: env,
			RMax:        size,
		}
		if next.Age > spinUpHours && next.Deficit() < weakPressureDeficit {
			return points // weakened below the tracking threshold
		}
		points = append(points, next)
	}
	return points
}

// stepper carries one track's AR(1) state through its hourly evolution. The
// chi innovations persist across steps; the first step perturbs the initial
// draws in place and later steps relax each variable toward the cell mean.
type stepper struct {
	clim *climate.Climatology
	rng  *rand.Rand
	dt   float64

	rateChi, bearingChi, speedChi, sizeChi float64

	rate     float64 // central pressure tendency, hPa/h
	sizeRate float64 // radius tendency, km/h
	bearing  float64
	speed    float64

	offshorePressure float64 // last central pressure over open water
	hoursAshore      float64 // accumulates across successive landfalls
}

// advance runs every transition process for one step and returns the new
// central pressure and radius of maximum winds.
func (s *stepper) advance(cell int, onLand, first bool, prev domain.StormState, env float64) (pressure, size float64) {
	s.stepRate(cell, onLand, first)
	s.stepBearing(cell, onLand, first)
	s.stepSpeed(cell, onLand, first)
	pressure = s.pressure(cell, onLand, prev.Pressure, env)
	size = s.size(cell, onLand, first, prev.RMax)
	return pressure, size
}

// chi advances one AR(1) innovation state.
func chi(prev float64, co climate.Coefficients, rng *rand.Rand) float64 {
	return co.Alpha*prev + co.Phi*rng.NormFloat64()
}

func (s *stepper) stepRate(cell int, onLand, first bool) {
	co := s.clim.PressureRate.At(cell, onLand)
	s.rateChi = chi(s.rateChi, co, s.rng)
	if first {
		s.rate += co.Sigma * s.rateChi
	} else {
		s.rate = co.Mu + co.Sigma*s.rateChi
	}
}

func (s *stepper) stepBearing(cell int, onLand, first bool) {
	co := s.clim.Bearing.At(cell, onLand)
	s.bearingChi = chi(s.bearingChi, co, s.rng)
	// Bearing transition means are calibrated in radians.
	if first {
		s.bearing += co.Sigma * s.bearingChi * rad2deg
	} else {
		s.bearing = (co.Mu + co.Sigma*s.bearingChi) * rad2deg
	}
	s.bearing = geo.NormalizeBearing(s.bearing)
}

func (s *stepper) stepSpeed(cell int, onLand, first bool) {
	co := s.clim.Speed.At(cell, onLand)
	s.speedChi = chi(s.speedChi, co, s.rng)
	if first {
		s.speed += math.Abs(co.Sigma * s.speedChi)
	} else {
		s.speed = math.Abs(co.Mu + co.Sigma*s.speedChi)
	}
}

// pressure integrates the sampled tendency over open water and follows the
// exponential filling curve ashore, anchored to the last offshore pressure.
func (s *stepper) pressure(cell int, onLand bool, prev, env float64) float64 {
	if onLand {
		s.hoursAshore += s.dt
		deficit := env - s.offshorePressure
		alpha := 0.008 + 0.0008*deficit + s.rng.NormFloat64()*0.001
		return env - deficit*math.Exp(-alpha*s.hoursAshore)
	}

	p := prev + s.rate*s.dt
	co := s.clim.Pressure.At(cell, false)
	if p < co.Min-pressureFloorSigmas*co.Sigma {
		// Deepening far beyond anything observed in the cell: fill instead.
		p = prev + math.Abs(s.rate)*s.dt
	}
	s.offshorePressure = p
	return p
}

// size integrates the sampled radius tendency, applying the antithetic
// increment when the radius would collapse below the minimum.
func (s *stepper) size(cell int, onLand, first bool, prev float64) float64 {
	co := s.clim.SizeRate.At(cell, onLand)
	s.sizeChi = chi(s.sizeChi, co, s.rng)
	if first {
		s.sizeRate += co.Sigma * s.sizeChi
	} else {
		s.sizeRate = co.Mu + co.Sigma*s.sizeChi
	}

	r := prev + s.sizeRate*s.dt
	if r <= minRadiusKm {
		r = prev - s.sizeRate*s.dt
	}
	return r
}
