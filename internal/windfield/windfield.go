// Package windfield converts storm snapshots into surface wind and pressure
// fields. A radial profile gives the gradient-level tangential wind around
// the storm center, a boundary-layer model turns it into near-surface wind
// components with translation asymmetry, and the evaluator folds the result
// into per-cell gust maxima and pressure minima on the analysis grid.
//
// Everything below the exported API works in SI: radius in metres, pressure
// in Pa, speed in m/s. Tangential winds are signed by the Coriolis
// parameter, so the rotation sense follows the hemisphere without special
// cases. Conversion from track units happens once, at the evaluator's edge.
package windfield

import (
	"context"
	"fmt"
	"math"

	"github.com/couchcryptid/cyclone-hazard/internal/domain"
	"github.com/couchcryptid/cyclone-hazard/internal/geo"
	"github.com/couchcryptid/cyclone-hazard/internal/grid"
)

const deg2rad = math.Pi / 180

// Defaults for the evaluation knobs.
const (
	DefaultBeta       = 1.5
	DefaultThetaMax   = 70.0
	DefaultMargin     = 2.0
	DefaultGustFactor = 1.23
)

// Params selects and tunes the wind models for a run.
type Params struct {
	Profile  Profile
	Boundary BoundaryLayer

	// Beta is the Holland peakedness for profiles that do not derive
	// their own.
	Beta float64
	// ThetaMax is the azimuth of the wind maximum relative to the storm
	// motion, in degrees.
	ThetaMax float64
	// Margin bounds the windfield footprint around the storm center, in
	// degrees.
	Margin float64
	// GustFactor converts mean surface wind to peak gust.
	GustFactor float64
}

// DefaultParams returns the standard model selection.
func DefaultParams() Params {
	return Params{
		Profile:    DefaultProfile,
		Boundary:   DefaultBoundary,
		Beta:       DefaultBeta,
		ThetaMax:   DefaultThetaMax,
		Margin:     DefaultMargin,
		GustFactor: DefaultGustFactor,
	}
}

// Evaluator computes track windfields on a fixed analysis grid. It is
// stateless after construction and safe for concurrent use.
type Evaluator struct {
	grid        *grid.Analysis
	params      Params
	buildVortex func(domain.StormState) vortex
	buildModel  func(vortex) surfaceModel
}

// NewEvaluator validates the model selection and returns an evaluator bound
// to the grid.
func NewEvaluator(g *grid.Analysis, params Params) (*Evaluator, error) {
	if g == nil {
		return nil, fmt.Errorf("windfield: analysis grid is required")
	}
	if params.Beta <= 0 {
		return nil, fmt.Errorf("windfield: beta must be positive, got %g", params.Beta)
	}
	if params.Margin <= 0 {
		return nil, fmt.Errorf("windfield: margin must be positive, got %g", params.Margin)
	}
	if params.GustFactor <= 0 {
		return nil, fmt.Errorf("windfield: gust factor must be positive, got %g", params.GustFactor)
	}
	buildVortex, err := vortexBuilder(params.Profile, params.Beta)
	if err != nil {
		return nil, err
	}
	buildModel, err := surfaceBuilder(params.Boundary)
	if err != nil {
		return nil, err
	}
	return &Evaluator{
		grid:        g,
		params:      params,
		buildVortex: buildVortex,
		buildModel:  buildModel,
	}, nil
}

// Evaluate computes the surface windfield at every track point whose center
// lies inside the grid extent and folds gust maxima and pressure minima into
// local. The context is checked between points so long tracks cancel
// promptly; a cancelled evaluation leaves local partially updated and must
// not be merged.
func (e *Evaluator) Evaluate(ctx context.Context, track domain.Track, local *grid.Local) error {
	for _, st := range track.Points {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("windfield: track %s: %w", track.ID, err)
		}
		if _, ok := e.grid.CellAt(st.Lon, st.Lat); !ok {
			continue
		}
		e.evaluatePoint(st, local)
	}
	return nil
}

func (e *Evaluator) evaluatePoint(st domain.StormState, local *grid.Local) {
	v := e.buildVortex(st)
	model := e.buildModel(v)

	vFm := st.Speed / 3.6
	thetaFm := (90 - st.Bearing) * deg2rad
	thetaMax := e.params.ThetaMax * deg2rad
	cp := st.Pressure * 100
	dp := st.Deficit() * 100
	beta := v.beta()
	rm := v.rMax()

	e.grid.EachWithin(st.Lon, st.Lat, e.params.Margin, func(cell int, cellLon, cellLat float64) {
		r := geo.DistanceKm(st.Lon, st.Lat, cellLon, cellLat) * 1000
		if r < 1 {
			r = 1
		}
		lam := (90 - geo.BearingDeg(st.Lon, st.Lat, cellLon, cellLat)) * deg2rad

		ux, vy := model.surface(r, lam, vFm, thetaFm, thetaMax)
		gust := math.Hypot(ux*e.params.GustFactor, vy*e.params.GustFactor)

		// Surface pressure from the Holland relation; back to hPa for
		// the accumulator.
		pressure := (cp + dp*math.Exp(-math.Pow(rm/r, beta))) / 100

		local.Observe(cell, gust, pressure)
	})
}
