package evd

import (
	"math"
	"sort"
)

// Outcome classifies the result of fitting one grid cell.
type Outcome string

const (
	// OutcomeFitted marks a cell with a full set of GEV parameters.
	OutcomeFitted Outcome = "fitted"
	// OutcomeNoWind marks a cell no synthetic storm ever reached.
	OutcomeNoWind Outcome = "no_wind"
	// OutcomeInsufficient marks a cell with too few positive maxima to fit.
	OutcomeInsufficient Outcome = "insufficient_sample"
	// OutcomeNoConvergence marks a cell whose series defeats the estimator.
	OutcomeNoConvergence Outcome = "no_convergence"
)

// CellFit is the hazard estimate for one grid cell. Parameters and speeds
// hold Missing unless Outcome is OutcomeFitted.
type CellFit struct {
	Outcome  Outcome
	Location float64
	Scale    float64
	Shape    float64

	// Speeds holds one wind speed per requested return period.
	Speeds []float64
}

// EstimateCell fits a GEV to one cell's per-unit gust maxima and derives
// return-period wind speeds. Zero maxima mean the cell saw no storm that
// unit; they are excluded from the moments. minRecords is the number of
// positive maxima required before a fit is attempted.
func EstimateCell(series, returnPeriods []float64, yearsPerSample float64, minRecords int) CellFit {
	fit := CellFit{
		Location: Missing,
		Scale:    Missing,
		Shape:    Missing,
		Speeds:   missingSpeeds(len(returnPeriods)),
	}

	peak := math.Inf(-1)
	positive := make([]float64, 0, len(series))
	for _, v := range series {
		if v > peak {
			peak = v
		}
		if v > 0 {
			positive = append(positive, v)
		}
	}
	if len(series) == 0 || peak <= 0 {
		fit.Outcome = OutcomeNoWind
		return fit
	}
	if len(positive) < minRecords {
		fit.Outcome = OutcomeInsufficient
		return fit
	}

	sort.Float64s(positive)
	if positive[0] == positive[len(positive)-1] {
		fit.Outcome = OutcomeNoConvergence
		return fit
	}

	l1, l2, l3, err := SampleLMoments(positive)
	if err != nil {
		fit.Outcome = OutcomeInsufficient
		return fit
	}

	// The fitter takes the third moment scaled by l2 squared rather than the
	// usual L-skewness; the hazard levels are calibrated to this ratio.
	t3 := l3 / (l2 * l2)
	if l2 <= 0 || math.Abs(t3) >= 1 {
		fit.Outcome = OutcomeNoConvergence
		return fit
	}

	est, err := FitGEV(l1, l2, t3)
	if err != nil {
		fit.Outcome = OutcomeNoConvergence
		return fit
	}

	fit.Outcome = OutcomeFitted
	fit.Location = est.Location
	fit.Scale = est.Scale
	fit.Shape = est.Shape
	fit.Speeds = Quantiles(est, returnPeriods, yearsPerSample)
	return fit
}

func missingSpeeds(n int) []float64 {
	speeds := make([]float64, n)
	for i := range speeds {
		speeds[i] = Missing
	}
	return speeds
}
