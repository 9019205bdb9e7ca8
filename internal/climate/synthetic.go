package climate

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// SyntheticSpec configures the synthetic climatology generator.
type SyntheticSpec struct {
	Domain          Domain
	MeanFrequency   float64
	FieldResolution float64 // raster resolution of the gridded fields, degrees
}

// Synthetic builds a smooth, plausible climatology from noise fields. It is
// the input for demos and end-to-end tests: statistically reasonable rather
// than calibrated, with genesis concentrated offshore in the tropical band
// and a seasonal cycle matching the domain's hemisphere.
func Synthetic(spec SyntheticSpec, seed int64) *Climatology {
	if spec.FieldResolution <= 0 {
		spec.FieldResolution = 0.25
	}

	landNoise := opensimplex.NewNormalized(seed)
	genesisNoise := opensimplex.NewNormalized(seed + 1)
	mslpNoise := opensimplex.NewNormalized(seed + 2)
	statsNoise := opensimplex.NewNormalized(seed + 3)

	d := spec.Domain
	c := &Climatology{
		Domain:         d,
		MeanFrequency:  spec.MeanFrequency,
		MonthlyWeights: seasonalWeights(d),
	}

	c.LandMask = rasterize(d, spec.FieldResolution, func(lon, lat float64) float64 {
		// Sparse continents: most of the domain stays open water.
		if landNoise.Eval2(lon/8, lat/8) > 0.72 {
			return 1
		}
		return 0
	})
	c.MSLP = rasterize(d, spec.FieldResolution, func(lon, lat float64) float64 {
		return 1008.0 + 4.0*mslpNoise.Eval2(lon/15, lat/15) + 0.05*math.Abs(lat)
	})
	c.Genesis = rasterize(d, spec.FieldResolution, func(lon, lat float64) float64 {
		if c.LandMask.Sample(lon, lat) >= 0.5 {
			return 0
		}
		band := math.Exp(-sq((math.Abs(lat) - 15.0) / 6.0))
		w := genesisNoise.Eval2(lon/5, lat/5)
		return band * w * w
	})

	cells := d.CellCount()
	c.Speed = syntheticStats(d, statsNoise, 0, speedParams)
	c.Bearing = syntheticStats(d, statsNoise, 40, bearingParams(d))
	c.Pressure = syntheticStats(d, statsNoise, 80, pressureParams)
	c.PressureRate = syntheticStats(d, statsNoise, 120, pressureRateParams)
	c.SizeRate = syntheticStats(d, statsNoise, 160, sizeRateParams)

	c.InitBearing = make([]CDF, cells)
	c.InitSpeed = make([]CDF, cells)
	c.InitPressure = make([]CDF, cells)
	c.InitSize = make([]CDF, cells)
	for cell := 0; cell < cells; cell++ {
		lon, lat := cellCenter(d, cell)
		n := statsNoise.Eval2(lon/7+200, lat/7+200)

		heading := 200.0 + 50.0*n
		if d.MinLat+d.MaxLat > 0 {
			heading = 290.0 + 50.0*n // recurving poleward in the northern hemisphere
		}
		c.InitBearing[cell] = uniformCDF(heading-45, heading+45, 15)
		c.InitSpeed[cell] = uniformCDF(8.0+6.0*n, 26.0+6.0*n, 15)
		c.InitPressure[cell] = uniformCDF(975.0-10.0*n, 1002.0, 15)
		c.InitSize[cell] = uniformCDF(18.0+10.0*n, 55.0+15.0*n, 15)
	}

	return c
}

type statsParams struct {
	mu, muSpread float64
	sigma        float64
	alpha        float64
	min          float64
	landMuShift  float64
}

var (
	speedParams        = statsParams{mu: 18.0, muSpread: 6.0, sigma: 2.5, alpha: 0.92, min: 2.0, landMuShift: 1.0}
	pressureParams     = statsParams{mu: 992.0, muSpread: 6.0, sigma: 9.0, alpha: 0.95, min: 935.0, landMuShift: 4.0}
	pressureRateParams = statsParams{mu: -0.04, muSpread: 0.04, sigma: 0.55, alpha: 0.90, min: -4.0, landMuShift: 0.30}
	sizeRateParams     = statsParams{mu: 0.0, muSpread: 0.05, sigma: 0.35, alpha: 0.75, min: -3.0, landMuShift: 0.05}
)

// bearingParams aims the mean heading west-southwest in the southern
// hemisphere and west-northwest in the northern, in radians.
func bearingParams(d Domain) statsParams {
	heading := 220.0
	if d.MinLat+d.MaxLat > 0 {
		heading = 300.0
	}
	return statsParams{mu: heading * math.Pi / 180, muSpread: 0.3, sigma: 0.35, alpha: 0.85, min: 0.0}
}

func syntheticStats(d Domain, noise opensimplex.Noise, offset float64, p statsParams) VariableStats {
	cells := d.CellCount()
	v := VariableStats{
		Sea:  make([]Coefficients, cells),
		Land: make([]Coefficients, cells),
	}
	for cell := 0; cell < cells; cell++ {
		lon, lat := cellCenter(d, cell)
		n := noise.Eval2(lon/6+offset, lat/6+offset) // [0, 1]

		mu := p.mu + p.muSpread*(2*n-1)
		alpha := p.alpha - 0.05*n
		v.Sea[cell] = Coefficients{
			Mu:    mu,
			Sigma: p.sigma * (0.8 + 0.4*n),
			Alpha: alpha,
			Phi:   math.Sqrt(1 - alpha*alpha),
			Min:   p.min,
		}

		landAlpha := alpha * 0.9
		v.Land[cell] = Coefficients{
			Mu:    mu + p.landMuShift,
			Sigma: p.sigma * (0.9 + 0.4*n),
			Alpha: landAlpha,
			Phi:   math.Sqrt(1 - landAlpha*landAlpha),
			Min:   p.min,
		}
	}
	return v
}

// seasonalWeights peaks November through April south of the equator and June
// through November north of it.
func seasonalWeights(d Domain) [12]float64 {
	southern := d.MinLat+d.MaxLat < 0
	var w [12]float64
	for m := 0; m < 12; m++ {
		phase := float64(m) // 0 = January
		if southern {
			// peak around January-February
			w[m] = 0.05 + sq(math.Cos((phase-0.5)*math.Pi/12))
		} else {
			// peak around August-September
			w[m] = 0.05 + sq(math.Cos((phase-7.5)*math.Pi/12))
		}
	}
	return w
}

func rasterize(d Domain, res float64, f func(lon, lat float64) float64) Field {
	cols := int(math.Round((d.MaxLon - d.MinLon) / res))
	rows := int(math.Round((d.MaxLat - d.MinLat) / res))
	field := Field{
		MinLon:     d.MinLon,
		MinLat:     d.MinLat,
		Resolution: res,
		Cols:       cols,
		Rows:       rows,
		Values:     make([]float64, cols*rows),
	}
	for row := 0; row < rows; row++ {
		lat := d.MinLat + (float64(row)+0.5)*res
		for col := 0; col < cols; col++ {
			lon := d.MinLon + (float64(col)+0.5)*res
			field.Values[row*cols+col] = f(lon, lat)
		}
	}
	return field
}

func cellCenter(d Domain, cell int) (float64, float64) {
	cols := d.Cols()
	row := cell / cols
	col := cell % cols
	lon := d.MinLon + (float64(col)+0.5)*d.CellSize
	lat := d.MaxLat - (float64(row)+0.5)*d.CellSize
	return lon, lat
}

// uniformCDF tabulates n evenly spaced quantiles of a uniform distribution.
func uniformCDF(lo, hi float64, n int) CDF {
	values := make([]float64, n)
	for i := range values {
		values[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return NewCDF(values)
}

func sq(x float64) float64 { return x * x }
