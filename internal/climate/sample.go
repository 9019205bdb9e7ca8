package climate

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Fallback lognormal size model, applied when a cell carries no empirical
// size distribution. Radii are truncated at maxSizeKm.
const (
	fallbackSizeMeanKm = 57.0
	fallbackSizeSigma  = 0.6
	maxSizeKm          = 120.0
)

// CDF is an empirical distribution stored as a quantile table: sorted values
// with their cumulative probabilities.
type CDF struct {
	Values []float64 `json:"values"`
	Probs  []float64 `json:"probs"`
}

// NewCDF builds an empirical CDF from raw observations.
func NewCDF(observations []float64) CDF {
	values := append([]float64(nil), observations...)
	sort.Float64s(values)
	probs := make([]float64, len(values))
	n := float64(len(values))
	for i := range probs {
		probs[i] = float64(i+1) / n
	}
	return CDF{Values: values, Probs: probs}
}

// Empty reports whether the table has no entries.
func (c CDF) Empty() bool {
	return len(c.Values) == 0
}

// PPF returns the quantile for probability p: the smallest tabulated value
// whose cumulative probability reaches p.
func (c CDF) PPF(p float64) float64 {
	i := sort.SearchFloat64s(c.Probs, p)
	if i >= len(c.Values) {
		i = len(c.Values) - 1
	}
	return c.Values[i]
}

// probBelow returns the cumulative probability of the largest tabulated value
// strictly below limit, for truncated draws.
func (c CDF) probBelow(limit float64) float64 {
	i := sort.SearchFloat64s(c.Values, limit)
	if i == 0 {
		return 0
	}
	return c.Probs[i-1]
}

func (c CDF) validate() error {
	if len(c.Values) != len(c.Probs) {
		return fmt.Errorf("values and probs lengths differ (%d vs %d)", len(c.Values), len(c.Probs))
	}
	for i := 1; i < len(c.Values); i++ {
		if c.Values[i] < c.Values[i-1] {
			return fmt.Errorf("values not sorted at index %d", i)
		}
		if c.Probs[i] < c.Probs[i-1] {
			return fmt.Errorf("probs not monotone at index %d", i)
		}
	}
	for i, p := range c.Probs {
		if p < 0 || p > 1 {
			return fmt.Errorf("probs[%d] = %g outside [0, 1]", i, p)
		}
	}
	return nil
}

// SampleBearing draws an initial compass bearing (degrees) for a cell.
func (c *Climatology) SampleBearing(rng *rand.Rand, cell int) float64 {
	return c.InitBearing[cell].PPF(rng.Float64())
}

// SampleSpeed draws an initial forward speed (km/h) for a cell.
func (c *Climatology) SampleSpeed(rng *rand.Rand, cell int) float64 {
	return c.InitSpeed[cell].PPF(rng.Float64())
}

// SamplePressure draws an initial central pressure (hPa) for a cell, truncated
// below the environment pressure so the deficit starts positive. Returns the
// environment pressure itself when the whole table sits above it; callers
// treat that degenerate draw as a rejection.
func (c *Climatology) SamplePressure(rng *rand.Rand, cell int, envPressure float64) float64 {
	cdf := c.InitPressure[cell]
	upper := cdf.probBelow(envPressure)
	if upper <= 0 {
		return envPressure
	}
	return cdf.PPF(rng.Float64() * upper)
}

// SampleSize draws an initial radius of maximum winds (km) for a cell, using
// the cell's empirical distribution when calibrated and the truncated
// lognormal fallback otherwise.
func (c *Climatology) SampleSize(rng *rand.Rand, cell int) float64 {
	if !c.InitSize[cell].Empty() {
		return c.InitSize[cell].PPF(rng.Float64())
	}
	dist := distuv.LogNormal{Mu: math.Log(fallbackSizeMeanKm), Sigma: fallbackSizeSigma}
	return dist.Quantile(rng.Float64() * dist.CDF(maxSizeKm))
}

// HasSizeDistribution reports whether any cell carries an empirical size
// table. When none do, sizes stay on the fallback model and the size-rate
// process is still applied during stepping.
func (c *Climatology) HasSizeDistribution() bool {
	for _, cdf := range c.InitSize {
		if !cdf.Empty() {
			return true
		}
	}
	return false
}

// originSampler draws genesis points from the gridded genesis field by 2-D
// inverse CDF: a marginal over columns, then a conditional over rows, with
// linear interpolation inside the chosen cell.
type originSampler struct {
	field   Field
	colCDF  []float64
	rowCDFs [][]float64
}

func newOriginSampler(f Field) *originSampler {
	s := &originSampler{
		field:   f,
		colCDF:  make([]float64, f.Cols),
		rowCDFs: make([][]float64, f.Cols),
	}

	var total float64
	for col := 0; col < f.Cols; col++ {
		rows := make([]float64, f.Rows)
		var colSum float64
		for row := 0; row < f.Rows; row++ {
			colSum += f.Values[row*f.Cols+col]
			rows[row] = colSum
		}
		for row := range rows {
			if colSum > 0 {
				rows[row] /= colSum
			}
		}
		s.rowCDFs[col] = rows
		total += colSum
		s.colCDF[col] = total
	}
	for col := range s.colCDF {
		s.colCDF[col] /= total
	}
	return s
}

func (s *originSampler) sample(u1, u2 float64) (float64, float64) {
	col, colFrac := invertCDF(s.colCDF, u1)
	row, rowFrac := invertCDF(s.rowCDFs[col], u2)

	lon := s.field.MinLon + (float64(col)+colFrac)*s.field.Resolution
	lat := s.field.MinLat + (float64(row)+rowFrac)*s.field.Resolution
	return lon, lat
}

// invertCDF locates u in a cumulative table and returns the bin index plus
// the fractional position inside the bin.
func invertCDF(cdf []float64, u float64) (int, float64) {
	i := sort.SearchFloat64s(cdf, u)
	if i >= len(cdf) {
		i = len(cdf) - 1
	}
	lo := 0.0
	if i > 0 {
		lo = cdf[i-1]
	}
	width := cdf[i] - lo
	if width <= 0 {
		return i, 0.5
	}
	return i, (u - lo) / width
}

// SampleOrigin draws a genesis point from the genesis probability field.
func (c *Climatology) SampleOrigin(rng *rand.Rand) (float64, float64) {
	c.originOnce.Do(func() {
		c.origin = newOriginSampler(c.Genesis)
	})
	return c.origin.sample(rng.Float64(), rng.Float64())
}
