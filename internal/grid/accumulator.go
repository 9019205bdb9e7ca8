package grid

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// ErrDuplicateSample reports an attempt to merge a sample row that the
// accumulator already holds. It indicates a dispatch bug, never a data
// problem, and aborts the run.
var ErrDuplicateSample = errors.New("sample already merged")

// Local is one simulation unit's private accumulation state: the maximum
// gust and minimum pressure seen per cell across the unit's tracks. A Local
// is built without synchronization and handed to Accumulator.Merge exactly
// once.
type Local struct {
	sample   int
	gust     []float64
	pressure []float64
}

// NewLocal creates an empty local accumulator for one sample row.
func NewLocal(a *Analysis, sample int) *Local {
	l := &Local{
		sample:   sample,
		gust:     make([]float64, a.CellCount()),
		pressure: make([]float64, a.CellCount()),
	}
	for i := range l.pressure {
		l.pressure[i] = math.Inf(1)
	}
	return l
}

// Sample returns the sample row this local belongs to.
func (l *Local) Sample() int { return l.sample }

// Observe folds one windfield evaluation into the cell: the gust maximum and
// pressure minimum are kept.
func (l *Local) Observe(cell int, gust, pressure float64) {
	if gust > l.gust[cell] {
		l.gust[cell] = gust
	}
	if pressure < l.pressure[cell] {
		l.pressure[cell] = pressure
	}
}

// Merge folds another local of the same sample into this one, element-wise.
// Track contributions within a unit combine through it in any order.
func (l *Local) Merge(other *Local) error {
	if other.sample != l.sample {
		return fmt.Errorf("grid: cannot merge local of sample %d into sample %d", other.sample, l.sample)
	}
	if len(other.gust) != len(l.gust) {
		return fmt.Errorf("grid: cannot merge local with %d cells into %d cells", len(other.gust), len(l.gust))
	}
	for i, g := range other.gust {
		if g > l.gust[i] {
			l.gust[i] = g
		}
		if other.pressure[i] < l.pressure[i] {
			l.pressure[i] = other.pressure[i]
		}
	}
	return nil
}

// MaxGust returns the strongest gust observed in a cell so far.
func (l *Local) MaxGust(cell int) float64 { return l.gust[cell] }

// Accumulator collects the per-cell gust maxima of every simulation unit:
// one row per sample, plus the overall per-cell pressure minimum. Rows are
// disjoint across units, so merge order never affects the completed series.
// Merge is safe for concurrent use; in practice a single collector goroutine
// performs all merges. Once every surviving unit has reported, Seal ends the
// accumulation phase and unlocks the series accessors.
type Accumulator struct {
	mu          sync.Mutex
	samples     int
	cells       int
	gust        []float64 // cell-major: gust[cell*samples+sample]
	pressure    []float64
	merged      []bool
	mergedCount int
	sealed      bool
}

// NewAccumulator creates an accumulator expecting one row per sample.
func NewAccumulator(a *Analysis, samples int) (*Accumulator, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("grid: sample count must be positive, got %d", samples)
	}
	cells := a.CellCount()
	acc := &Accumulator{
		samples:  samples,
		cells:    cells,
		gust:     make([]float64, cells*samples),
		pressure: make([]float64, cells),
		merged:   make([]bool, samples),
	}
	for i := range acc.pressure {
		acc.pressure[i] = math.Inf(1)
	}
	return acc, nil
}

// Samples returns the number of expected sample rows.
func (acc *Accumulator) Samples() int { return acc.samples }

// Merge places a unit's local into its sample row, all or nothing. A row can
// be merged once; a second attempt returns ErrDuplicateSample and leaves the
// accumulator unchanged.
func (acc *Accumulator) Merge(l *Local) error {
	acc.mu.Lock()
	defer acc.mu.Unlock()

	if acc.sealed {
		return fmt.Errorf("grid: sample %d merged after seal", l.sample)
	}
	if len(l.gust) != acc.cells {
		return fmt.Errorf("grid: local has %d cells, accumulator has %d", len(l.gust), acc.cells)
	}
	if l.sample < 0 || l.sample >= acc.samples {
		return fmt.Errorf("grid: sample %d outside [0, %d)", l.sample, acc.samples)
	}
	if acc.merged[l.sample] {
		return fmt.Errorf("grid: sample %d: %w", l.sample, ErrDuplicateSample)
	}

	for cell, g := range l.gust {
		acc.gust[cell*acc.samples+l.sample] = g
		if l.pressure[cell] < acc.pressure[cell] {
			acc.pressure[cell] = l.pressure[cell]
		}
	}
	acc.merged[l.sample] = true
	acc.mergedCount++
	return nil
}

// Merged returns how many sample rows have been merged.
func (acc *Accumulator) Merged() int {
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.mergedCount
}

// Complete reports whether every expected sample row has been merged.
func (acc *Accumulator) Complete() bool {
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.mergedCount == acc.samples
}

// Seal ends the accumulation phase: failed units will never deliver their
// rows, so the merged set is final. Merges after Seal are rejected.
func (acc *Accumulator) Seal() {
	acc.mu.Lock()
	defer acc.mu.Unlock()
	acc.sealed = true
}

// CellSeries returns a copy of the cell's gust maxima over the sample rows
// actually merged, in sample order. It refuses to expose in-progress state:
// the accumulator must be sealed first. With every sample merged the series
// covers all of them.
func (acc *Accumulator) CellSeries(cell int) ([]float64, error) {
	acc.mu.Lock()
	defer acc.mu.Unlock()

	if !acc.sealed {
		return nil, fmt.Errorf("grid: series requested before seal, %d of %d samples merged", acc.mergedCount, acc.samples)
	}
	series := make([]float64, 0, acc.mergedCount)
	row := acc.gust[cell*acc.samples : (cell+1)*acc.samples]
	for sample, ok := range acc.merged {
		if ok {
			series = append(series, row[sample])
		}
	}
	return series, nil
}

// MaxGust returns the strongest gust merged into a cell so far. It is
// monotonically non-decreasing as rows accumulate.
func (acc *Accumulator) MaxGust(cell int) float64 {
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return floats.Max(acc.gust[cell*acc.samples : (cell+1)*acc.samples])
}

// MinPressure returns the lowest pressure merged into a cell, +Inf when no
// track has reached it.
func (acc *Accumulator) MinPressure(cell int) float64 {
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.pressure[cell]
}
