// Package climate holds the calibrated inputs of a simulation run: the
// genesis climatology (where and how often storms form) and the transition
// parameters (how storm properties evolve hour to hour). A Climatology is
// immutable after load; every simulation unit reads the same instance.
package climate

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Domain is the simulation region, divided into square statistics cells.
// Transition parameters and initial-condition distributions are calibrated
// per cell.
type Domain struct {
	MinLon   float64 `json:"min_lon"`
	MaxLon   float64 `json:"max_lon"`
	MinLat   float64 `json:"min_lat"`
	MaxLat   float64 `json:"max_lat"`
	CellSize float64 `json:"cell_size_deg"`
}

// Contains reports whether a point lies inside the simulation domain.
// The east and south edges are exclusive so that every inside point maps to
// a valid statistics cell.
func (d Domain) Contains(lon, lat float64) bool {
	return lon >= d.MinLon && lon < d.MaxLon && lat > d.MinLat && lat <= d.MaxLat
}

// Cols returns the number of statistics cells along a row of the domain.
func (d Domain) Cols() int {
	return int((d.MaxLon - d.MinLon) / d.CellSize)
}

// Rows returns the number of statistics cell rows in the domain.
func (d Domain) Rows() int {
	return int((d.MaxLat - d.MinLat) / d.CellSize)
}

// CellCount returns the total number of statistics cells.
func (d Domain) CellCount() int {
	return d.Cols() * d.Rows()
}

// CellIndex maps a point to its statistics cell. Cells are numbered row-major
// from the northwest corner.
func (d Domain) CellIndex(lon, lat float64) (int, error) {
	if !d.Contains(lon, lat) {
		return 0, fmt.Errorf("point (%.2f, %.2f) outside domain [%g, %g) x (%g, %g]",
			lon, lat, d.MinLon, d.MaxLon, d.MinLat, d.MaxLat)
	}
	row := int((d.MaxLat - lat) / d.CellSize)
	col := int((lon - d.MinLon) / d.CellSize)
	return row*d.Cols() + col, nil
}

// Bounds is a rectangular lon/lat extent. Used as the optional inner-domain
// track filter: tracks must stay strictly inside it.
type Bounds struct {
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
}

// Contains reports whether a point lies strictly inside the bounds.
func (b Bounds) Contains(lon, lat float64) bool {
	return lon > b.MinLon && lon < b.MaxLon && lat > b.MinLat && lat < b.MaxLat
}

// Field is a gridded scalar sampled by nearest cell, row-major from the
// southwest corner. Out-of-range points clamp to the nearest edge so sampling
// near the domain boundary never fails.
type Field struct {
	MinLon     float64   `json:"min_lon"`
	MinLat     float64   `json:"min_lat"`
	Resolution float64   `json:"resolution_deg"`
	Cols       int       `json:"cols"`
	Rows       int       `json:"rows"`
	Values     []float64 `json:"values"`
}

// Sample returns the field value at the cell containing the point.
func (f Field) Sample(lon, lat float64) float64 {
	col := clampIndex(int((lon-f.MinLon)/f.Resolution), f.Cols)
	row := clampIndex(int((lat-f.MinLat)/f.Resolution), f.Rows)
	return f.Values[row*f.Cols+col]
}

func (f Field) validate(name string) error {
	if f.Cols <= 0 || f.Rows <= 0 {
		return fmt.Errorf("climatology: %s.cols and %s.rows must be positive", name, name)
	}
	if f.Resolution <= 0 {
		return fmt.Errorf("climatology: %s.resolution_deg must be positive", name)
	}
	if len(f.Values) != f.Cols*f.Rows {
		return fmt.Errorf("climatology: %s.values has %d entries, want %d", name, len(f.Values), f.Cols*f.Rows)
	}
	return nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Coefficients is one AR(1) parameter set: the stationary mean and standard
// deviation of the variable, the autocorrelation of its innovation process,
// the innovation scale, and the lowest value observed during calibration.
type Coefficients struct {
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
	Alpha float64 `json:"alpha"`
	Phi   float64 `json:"phi"`
	Min   float64 `json:"min"`
}

// VariableStats carries the per-cell parameter sets of one track variable,
// with separate calibrations for over-sea and over-land behaviour.
type VariableStats struct {
	Sea  []Coefficients `json:"sea"`
	Land []Coefficients `json:"land"`
}

// At returns the parameter set for a cell, picking the land calibration when
// the storm center is ashore.
func (v VariableStats) At(cell int, onLand bool) Coefficients {
	if onLand {
		return v.Land[cell]
	}
	return v.Sea[cell]
}

func (v VariableStats) validate(name string, cells int) error {
	if len(v.Sea) != cells {
		return fmt.Errorf("climatology: %s.sea has %d cells, want %d", name, len(v.Sea), cells)
	}
	if len(v.Land) != cells {
		return fmt.Errorf("climatology: %s.land has %d cells, want %d", name, len(v.Land), cells)
	}
	for i, set := range [2][]Coefficients{v.Sea, v.Land} {
		side := "sea"
		if i == 1 {
			side = "land"
		}
		for c, co := range set {
			if co.Alpha < -1 || co.Alpha > 1 {
				return fmt.Errorf("climatology: %s.%s[%d].alpha %g outside [-1, 1]", name, side, c, co.Alpha)
			}
			if co.Sigma < 0 || co.Phi < 0 {
				return fmt.Errorf("climatology: %s.%s[%d] has negative sigma or phi", name, side, c)
			}
		}
	}
	return nil
}

// Climatology is the full calibrated input of a run.
//
// Bearing transition means (mu) are in radians; initial-condition bearings
// are compass degrees. Speed is km/h, pressure hPa, size km. The pressure
// stats describe pressure values and exist for the intensity floor; the rate
// stats drive the hourly AR(1) increments.
type Climatology struct {
	Domain         Domain      `json:"domain"`
	MeanFrequency  float64     `json:"mean_frequency"`
	MonthlyWeights [12]float64 `json:"monthly_weights"`

	Genesis  Field `json:"genesis"`
	MSLP     Field `json:"mslp"`
	LandMask Field `json:"land_mask"` // >= 0.5 means land

	Speed        VariableStats `json:"speed"`
	Bearing      VariableStats `json:"bearing"`
	Pressure     VariableStats `json:"pressure"`
	PressureRate VariableStats `json:"pressure_rate"`
	SizeRate     VariableStats `json:"size_rate"`

	InitBearing  []CDF `json:"init_bearing"`
	InitSpeed    []CDF `json:"init_speed"`
	InitPressure []CDF `json:"init_pressure"`
	InitSize     []CDF `json:"init_size"` // empty tables fall back to the lognormal size model

	originOnce sync.Once
	origin     *originSampler
}

// Load reads and validates a climatology from a JSON file.
func Load(path string) (*Climatology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read climatology: %w", err)
	}
	var c Climatology
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse climatology: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks internal consistency. A climatology that passes can be
// sampled without further error handling during a run.
func (c *Climatology) Validate() error {
	d := c.Domain
	if d.MaxLon <= d.MinLon || d.MaxLat <= d.MinLat {
		return fmt.Errorf("climatology: domain extent [%g, %g] x [%g, %g] is empty",
			d.MinLon, d.MaxLon, d.MinLat, d.MaxLat)
	}
	if d.CellSize <= 0 {
		return fmt.Errorf("climatology: domain.cell_size_deg must be positive, got %g", d.CellSize)
	}
	if d.Cols() < 1 || d.Rows() < 1 {
		return fmt.Errorf("climatology: domain smaller than one %g-degree statistics cell", d.CellSize)
	}
	if c.MeanFrequency <= 0 {
		return fmt.Errorf("climatology: mean_frequency must be positive, got %g", c.MeanFrequency)
	}

	var weightSum float64
	for i, w := range c.MonthlyWeights {
		if w < 0 {
			return fmt.Errorf("climatology: monthly_weights[%d] is negative", i)
		}
		weightSum += w
	}
	if weightSum <= 0 {
		return fmt.Errorf("climatology: monthly_weights must contain positive weight")
	}

	for _, fv := range []struct {
		name  string
		field Field
	}{{"genesis", c.Genesis}, {"mslp", c.MSLP}, {"land_mask", c.LandMask}} {
		if err := fv.field.validate(fv.name); err != nil {
			return err
		}
	}

	var genesisSum float64
	for i, w := range c.Genesis.Values {
		if w < 0 {
			return fmt.Errorf("climatology: genesis.values[%d] is negative", i)
		}
		genesisSum += w
	}
	if genesisSum <= 0 {
		return fmt.Errorf("climatology: genesis.values must contain positive weight")
	}

	cells := d.CellCount()
	for _, sv := range []struct {
		name  string
		stats VariableStats
	}{
		{"speed", c.Speed}, {"bearing", c.Bearing}, {"pressure", c.Pressure},
		{"pressure_rate", c.PressureRate}, {"size_rate", c.SizeRate},
	} {
		if err := sv.stats.validate(sv.name, cells); err != nil {
			return err
		}
	}

	for _, cv := range []struct {
		name string
		cdfs []CDF
	}{
		{"init_bearing", c.InitBearing}, {"init_speed", c.InitSpeed},
		{"init_pressure", c.InitPressure}, {"init_size", c.InitSize},
	} {
		if len(cv.cdfs) != cells {
			return fmt.Errorf("climatology: %s has %d cells, want %d", cv.name, len(cv.cdfs), cells)
		}
		for i, cdf := range cv.cdfs {
			if err := cdf.validate(); err != nil {
				return fmt.Errorf("climatology: %s[%d]: %w", cv.name, i, err)
			}
		}
	}

	return nil
}

// OnLand reports whether the point is over land according to the mask.
func (c *Climatology) OnLand(lon, lat float64) bool {
	return c.LandMask.Sample(lon, lat) >= 0.5
}

// SampleMSLP returns the environment pressure at a point in hPa.
func (c *Climatology) SampleMSLP(lon, lat float64) float64 {
	return c.MSLP.Sample(lon, lat)
}

// SampleMonth draws a genesis month from the monthly weights.
func (c *Climatology) SampleMonth(u float64) time.Month {
	var total float64
	for _, w := range c.MonthlyWeights {
		total += w
	}
	target := u * total
	var cum float64
	for i, w := range c.MonthlyWeights {
		cum += w
		if target < cum {
			return time.Month(i + 1)
		}
	}
	return time.December
}
