package evd

import (
	"errors"
	"fmt"
	"math"
)

// Missing marks parameters and speeds for which no estimate is available.
const Missing = -9999.0

// ErrNoConvergence reports that the shape refinement did not settle within
// its iteration budget.
var ErrNoConvergence = errors.New("evd: shape estimate did not converge")

// Coefficients and tolerances from Hosking's PELGEV routine.
const (
	pelA0, pelA1, pelA2 = 0.28377530, -1.21096399, -2.50728214
	pelA3, pelA4        = -1.13455566, -0.07138022
	pelB1, pelB2, pelB3 = 2.06189696, 1.31912239, 0.25077104
	pelC1, pelC2, pelC3 = 1.59921491, -0.48832213, 0.01573152
	pelD1, pelD2        = -0.64363929, 0.08985247

	// gumbelShape is the |shape| below which the fit collapses to Gumbel.
	gumbelShape = 1e-5

	shapeTolerance     = 1e-6
	maxShapeIterations = 20

	eulerGamma = 0.577215664901532861
	ln3        = 1.0986122886681096913952452369225257
)

// Fit holds GEV parameters in the convention where a positive shape bounds
// the distribution above.
type Fit struct {
	Location float64
	Scale    float64
	Shape    float64
}

// FitGEV estimates GEV parameters from sample L-moments: the mean l1, the
// second moment l2, and the shape ratio t3. It uses Hosking's
// rational-function approximations, falling back to a pure Gumbel fit for a
// near-zero shape and to Newton-Raphson refinement for t3 below -0.8.
func FitGEV(l1, l2, t3 float64) (Fit, error) {
	if l2 <= 0 || math.Abs(t3) >= 1 {
		return Fit{}, fmt.Errorf("evd: l-moments out of range (l2=%g, t3=%g)", l2, t3)
	}

	var g float64
	if t3 > 0 {
		z := 1 - t3
		g = (-1 + z*(pelC1+z*(pelC2+z*pelC3))) / (1 + z*(pelD1+z*pelD2))
		if math.Abs(g) < gumbelShape {
			scale := l2 / math.Ln2
			return Fit{Location: l1 - eulerGamma*scale, Scale: scale}, nil
		}
	} else {
		g = (pelA0 + t3*(pelA1+t3*(pelA2+t3*(pelA3+t3*pelA4)))) / (1 + t3*(pelB1+t3*(pelB2+t3*pelB3)))
		if t3 < -0.8 {
			var err error
			g, err = refineShape(g, t3)
			if err != nil {
				return Fit{}, err
			}
		}
	}

	gam := math.Gamma(1 + g)
	scale := l2 * g / (gam * (1 - math.Pow(2, -g)))
	loc := l1 - scale*(1-gam)/g
	if math.IsNaN(loc) || math.IsInf(loc, 0) || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return Fit{}, fmt.Errorf("evd: estimate diverged (l1=%g, l2=%g, t3=%g)", l1, l2, t3)
	}
	return Fit{Location: loc, Scale: scale, Shape: g}, nil
}

// refineShape iterates Newton-Raphson on the L-skewness relation, where the
// rational approximation alone is inaccurate.
func refineShape(g, t3 float64) (float64, error) {
	if t3 <= -0.97 {
		g = 1 - math.Log(1+t3)/math.Ln2
	}
	target := (t3 + 3) / 2
	for i := 0; i < maxShapeIterations; i++ {
		x2 := math.Pow(2, -g)
		x3 := math.Pow(3, -g)
		t := (1 - x3) / (1 - x2)
		deriv := ((1-x2)*x3*ln3 - (1-x3)*x2*math.Ln2) / ((1 - x2) * (1 - x2))
		old := g
		g -= (t - target) / deriv
		if math.Abs(g-old) <= shapeTolerance*g {
			return g, nil
		}
	}
	return 0, ErrNoConvergence
}

// Quantiles derives the wind speed expected once per return period on
// average. yearsPerSample is the span of synthetic record behind each sample
// of the fitted series. Periods not exceeding yearsPerSample, non-positive
// shapes, and non-finite results all yield Missing.
func Quantiles(fit Fit, returnPeriods []float64, yearsPerSample float64) []float64 {
	speeds := make([]float64, len(returnPeriods))
	for i := range speeds {
		speeds[i] = Missing
	}
	if fit.Shape <= 0 || math.IsNaN(fit.Shape) || math.IsInf(fit.Shape, 0) {
		return speeds
	}
	for i, period := range returnPeriods {
		if period <= yearsPerSample {
			continue
		}
		w := fit.Location + fit.Scale/fit.Shape*(1-math.Pow(-math.Log(1-yearsPerSample/period), fit.Shape))
		if math.IsNaN(w) || math.IsInf(w, 0) {
			continue
		}
		speeds[i] = w
	}
	return speeds
}
