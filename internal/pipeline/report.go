package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/cyclone-hazard/internal/config"
	"github.com/couchcryptid/cyclone-hazard/internal/evd"
	"github.com/couchcryptid/cyclone-hazard/internal/grid"
)

// RunInfo identifies one hazard run in events and persisted metadata.
type RunInfo struct {
	ID          string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	Seed        int64     `json:"seed"`
	Simulations int       `json:"simulations"`
	YearsPerSim int       `json:"years_per_sim"`
	Profile     string    `json:"profile"`
	Boundary    string    `json:"boundary"`
}

// UnitFailure records one failed simulation unit for the run report.
type UnitFailure struct {
	Unit   int    `json:"unit"`
	Reason string `json:"reason"`
}

// Report summarizes a completed hazard run.
type Report struct {
	RunID              string         `json:"run_id"`
	Units              int            `json:"units"`
	UnitsCompleted     int            `json:"units_completed"`
	UnitsFailed        int            `json:"units_failed"`
	FailedUnits        []UnitFailure  `json:"failed_units,omitempty"`
	Storms             int            `json:"storms"`
	TracksKept         int            `json:"tracks_kept"`
	TracksDropped      map[string]int `json:"tracks_dropped,omitempty"`
	CellsFitted        int            `json:"cells_fitted"`
	CellsNoWind        int            `json:"cells_no_wind"`
	CellsInsufficient  int            `json:"cells_insufficient"`
	CellsNoConvergence int            `json:"cells_no_convergence"`
	Duration           time.Duration  `json:"duration_ns"`
}

// CellHazard is the final hazard estimate for one analysis grid cell.
type CellHazard struct {
	Cell        int
	Lon         float64
	Lat         float64
	MaxGust     float64 // strongest gust across all merged units, m/s
	MinPressure float64 // lowest central pressure, hPa; +Inf if never reached
	Fit         evd.CellFit
}

// Result is everything a completed run hands to the result store.
type Result struct {
	RunID     string
	StartedAt time.Time
	Config    *config.Config
	Report    Report
	Cells     []CellHazard
}

// fitCells runs the extreme value fitter over every cell of the sealed
// accumulator, spread across the configured parallelism. Workers write
// disjoint slice elements, so no locking is needed on the result.
func (p *Pipeline) fitCells(ctx context.Context, acc *grid.Accumulator) ([]CellHazard, map[evd.Outcome]int, error) {
	cells := p.analysis.CellCount()
	hazards := make([]CellHazard, cells)

	indexes := make(chan int)
	errCh := make(chan error, 1)

	var wg sync.WaitGroup
	for w := 0; w < p.cfg.Parallelism; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cell := range indexes {
				series, err := acc.CellSeries(cell)
				if err != nil {
					// Keep draining so the feeder can finish; the first
					// error wins and the partial results are discarded.
					select {
					case errCh <- err:
					default:
					}
					continue
				}
				fit := evd.EstimateCell(series, p.cfg.ReturnPeriods, float64(p.cfg.YearsPerSim), p.cfg.MinRecords)
				lon, lat := p.analysis.CellCenter(cell)
				hazards[cell] = CellHazard{
					Cell:        cell,
					Lon:         lon,
					Lat:         lat,
					MaxGust:     acc.MaxGust(cell),
					MinPressure: acc.MinPressure(cell),
					Fit:         fit,
				}
				p.metrics.CellsFitted.WithLabelValues(string(fit.Outcome)).Inc()
			}
		}()
	}

	go func() {
		defer close(indexes)
		for cell := 0; cell < cells; cell++ {
			select {
			case indexes <- cell:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()

	select {
	case err := <-errCh:
		return nil, nil, fmt.Errorf("pipeline: %w", err)
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("pipeline: %w", err)
	}

	outcomes := make(map[evd.Outcome]int, 4)
	for _, h := range hazards {
		outcomes[h.Fit.Outcome]++
	}
	return hazards, outcomes, nil
}
