// Package pipeline orchestrates a hazard run: it dispatches simulation units
// over a worker pool, folds their windfields into the shared grid
// accumulator, fits the extreme value model per cell, and hands the result to
// the configured store and event sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/cyclone-hazard/internal/climate"
	"github.com/couchcryptid/cyclone-hazard/internal/config"
	"github.com/couchcryptid/cyclone-hazard/internal/domain"
	"github.com/couchcryptid/cyclone-hazard/internal/evd"
	"github.com/couchcryptid/cyclone-hazard/internal/grid"
	"github.com/couchcryptid/cyclone-hazard/internal/observability"
	"github.com/couchcryptid/cyclone-hazard/internal/trackgen"
	"github.com/couchcryptid/cyclone-hazard/internal/windfield"
)

// TrackSource synthesizes the storm set for one simulation unit.
type TrackSource interface {
	GenerateUnit(ctx context.Context, unit int) (trackgen.Unit, error)
}

// WindEvaluator folds one track's surface windfield into a unit-local grid.
type WindEvaluator interface {
	Evaluate(ctx context.Context, track domain.Track, local *grid.Local) error
}

// ResultStore persists a completed run and its hazard surfaces.
type ResultStore interface {
	SaveRun(ctx context.Context, result *Result) error
}

// EventSink publishes run lifecycle events.
type EventSink interface {
	PublishRunStarted(ctx context.Context, info RunInfo) error
	PublishRunCompleted(ctx context.Context, info RunInfo, report Report) error
}

// FatalAggregationError reports that unit failures exceeded the configured
// tolerance and the run was abandoned.
type FatalAggregationError struct {
	Failed    int
	Total     int
	Tolerance float64
}

func (e *FatalAggregationError) Error() string {
	return fmt.Sprintf("pipeline: %d of %d simulation units failed, tolerance %g exceeded",
		e.Failed, e.Total, e.Tolerance)
}

// Pipeline runs the simulate-aggregate-fit sequence for one hazard run.
type Pipeline struct {
	clim    *climate.Climatology
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	store   ResultStore
	sink    EventSink

	// Stages are built from the configuration on first run unless already set.
	source    TrackSource
	evaluator WindEvaluator
	analysis  *grid.Analysis

	ready atomic.Bool
	prog  progress
}

// New creates a Pipeline over a loaded climatology. store and sink are
// optional; pass nil to disable persistence and event publishing.
func New(clim *climate.Climatology, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, store ResultStore, sink EventSink) *Pipeline {
	return &Pipeline{
		clim:    clim,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		store:   store,
		sink:    sink,
	}
}

// CheckReadiness returns nil once at least one simulation unit has merged
// into the hazard grid, or an error describing why the service is not ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no simulation unit has completed yet")
	}
	return nil
}

// Run executes one hazard run to completion. Configuration problems are
// reported before any simulation starts; unit failures beyond the tolerance
// surface as a FatalAggregationError.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.prepare(); err != nil {
		return err
	}

	n := p.cfg.NumSimulations()
	info := RunInfo{
		ID:          uuid.NewString(),
		StartedAt:   domain.Now(),
		Seed:        p.cfg.Seed,
		Simulations: n,
		YearsPerSim: p.cfg.YearsPerSim,
		Profile:     p.cfg.WindProfile,
		Boundary:    p.cfg.BoundaryLayer,
	}

	p.prog.reset(n)
	defer p.prog.finish()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	p.logger.Info("hazard run started",
		"run", info.ID,
		"simulations", n,
		"years_per_sim", p.cfg.YearsPerSim,
		"parallelism", p.cfg.Parallelism,
		"profile", p.cfg.WindProfile,
		"boundary", p.cfg.BoundaryLayer,
		"cells", p.analysis.CellCount(),
	)

	if p.sink != nil {
		if err := p.sink.PublishRunStarted(ctx, info); err != nil {
			p.logger.Warn("run started event not published", "error", err)
		}
	}

	start := time.Now()
	acc, stats, err := p.simulate(ctx)
	if err != nil {
		return err
	}

	cells, outcomes, err := p.fitCells(ctx, acc)
	if err != nil {
		return err
	}

	report := Report{
		RunID:              info.ID,
		Units:              n,
		UnitsCompleted:     stats.completed,
		UnitsFailed:        len(stats.failures),
		FailedUnits:        stats.failures,
		Storms:             stats.storms,
		TracksKept:         stats.tracks,
		TracksDropped:      stats.dropped,
		CellsFitted:        outcomes[evd.OutcomeFitted],
		CellsNoWind:        outcomes[evd.OutcomeNoWind],
		CellsInsufficient:  outcomes[evd.OutcomeInsufficient],
		CellsNoConvergence: outcomes[evd.OutcomeNoConvergence],
		Duration:           time.Since(start),
	}

	result := &Result{
		RunID:     info.ID,
		StartedAt: info.StartedAt,
		Config:    p.cfg,
		Report:    report,
		Cells:     cells,
	}

	if p.store != nil {
		if err := p.store.SaveRun(ctx, result); err != nil {
			return fmt.Errorf("pipeline: persist run: %w", err)
		}
	}
	if p.sink != nil {
		if err := p.sink.PublishRunCompleted(ctx, info, report); err != nil {
			p.logger.Warn("run completed event not published", "error", err)
		}
	}

	p.logger.Info("hazard run completed",
		"run", info.ID,
		"units_completed", report.UnitsCompleted,
		"units_failed", report.UnitsFailed,
		"tracks", report.TracksKept,
		"cells_fitted", report.CellsFitted,
		"duration", report.Duration,
	)
	return nil
}

// prepare validates the run configuration and builds any stage not already
// in place: the analysis grid, the wind model, and the track generator.
func (p *Pipeline) prepare() error {
	if p.cfg.FailureTolerance < 0 || p.cfg.FailureTolerance > 1 {
		return fmt.Errorf("pipeline: failure tolerance %g outside [0, 1]", p.cfg.FailureTolerance)
	}
	if p.cfg.NumSimulations() < 1 {
		return fmt.Errorf("pipeline: %d total years cover no full %d-year simulation",
			p.cfg.NumSimYears, p.cfg.YearsPerSim)
	}
	for _, rp := range p.cfg.ReturnPeriods {
		if rp <= float64(p.cfg.YearsPerSim) {
			return fmt.Errorf("pipeline: return period %g does not exceed the %d-year sample interval",
				rp, p.cfg.YearsPerSim)
		}
	}

	profile, err := windfield.ParseProfile(p.cfg.WindProfile)
	if err != nil {
		return err
	}
	boundary, err := windfield.ParseBoundary(p.cfg.BoundaryLayer)
	if err != nil {
		return err
	}

	if p.analysis == nil {
		analysis, err := grid.NewAnalysis(p.cfg.GridMinLon, p.cfg.GridMaxLon,
			p.cfg.GridMinLat, p.cfg.GridMaxLat, p.cfg.GridResolution)
		if err != nil {
			return err
		}
		p.analysis = analysis
	}
	if p.evaluator == nil {
		evaluator, err := windfield.NewEvaluator(p.analysis, windfield.Params{
			Profile:    profile,
			Boundary:   boundary,
			Beta:       p.cfg.WindBeta,
			ThetaMax:   p.cfg.ThetaMax,
			Margin:     p.cfg.WindMargin,
			GustFactor: p.cfg.GustFactor,
		})
		if err != nil {
			return err
		}
		p.evaluator = evaluator
	}
	if p.source == nil {
		params := trackgen.DefaultParams()
		params.Seed = p.cfg.Seed
		params.YearsPerSim = p.cfg.YearsPerSim
		if p.cfg.Inner != nil {
			params.Inner = &climate.Bounds{
				MinLon: p.cfg.Inner.MinLon,
				MaxLon: p.cfg.Inner.MaxLon,
				MinLat: p.cfg.Inner.MinLat,
				MaxLat: p.cfg.Inner.MaxLat,
			}
		}
		gen, err := trackgen.New(p.clim, params, p.logger)
		if err != nil {
			return err
		}
		p.source = gen
	}
	return nil
}

type unitOutcome struct {
	unit     int
	local    *grid.Local
	storms   int
	tracks   int
	dropped  map[trackgen.DropReason]int
	duration time.Duration
	err      error
}

type runStats struct {
	completed int
	storms    int
	tracks    int
	dropped   map[string]int
	failures  []UnitFailure
}

// simulate dispatches every simulation unit over the worker pool and merges
// successful units into a fresh accumulator. A single collector performs all
// merges, so a unit that fails or is cancelled never corrupts shared state.
func (p *Pipeline) simulate(ctx context.Context) (*grid.Accumulator, runStats, error) {
	n := p.cfg.NumSimulations()
	stats := runStats{dropped: make(map[string]int)}

	acc, err := grid.NewAccumulator(p.analysis, n)
	if err != nil {
		return nil, stats, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	units := make(chan int)
	outcomes := make(chan unitOutcome)

	var wg sync.WaitGroup
	for w := 0; w < p.cfg.Parallelism; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range units {
				outcomes <- p.runUnit(runCtx, unit)
			}
		}()
	}

	go func() {
		defer close(units)
		for unit := 0; unit < n; unit++ {
			select {
			case units <- unit:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	maxFailures := int(p.cfg.FailureTolerance * float64(n))
	var fatal error
	for out := range outcomes {
		if out.err != nil {
			if errors.Is(out.err, context.Canceled) {
				// Shutdown or post-failure drain, not a unit defect.
				p.logger.Debug("simulation unit abandoned", "unit", out.unit)
				continue
			}
			p.metrics.SimulationsFailed.Inc()
			p.prog.failed.Add(1)
			stats.failures = append(stats.failures, UnitFailure{Unit: out.unit, Reason: out.err.Error()})
			p.logger.Error("simulation unit failed",
				"unit", out.unit, "error", out.err, "duration", out.duration)
			if len(stats.failures) > maxFailures && fatal == nil {
				fatal = &FatalAggregationError{
					Failed:    len(stats.failures),
					Total:     n,
					Tolerance: p.cfg.FailureTolerance,
				}
				cancel()
			}
			continue
		}
		if fatal != nil {
			// The run is already lost; drop successes arriving in the drain.
			continue
		}
		if err := acc.Merge(out.local); err != nil {
			fatal = fmt.Errorf("pipeline: unit %d: %w", out.unit, err)
			cancel()
			continue
		}

		stats.completed++
		stats.storms += out.storms
		stats.tracks += out.tracks
		for reason, count := range out.dropped {
			stats.dropped[string(reason)] += count
			p.metrics.TracksDropped.WithLabelValues(string(reason)).Add(float64(count))
		}
		p.metrics.SimulationsCompleted.Inc()
		p.metrics.TracksGenerated.Add(float64(out.tracks))
		p.metrics.TracksPerUnit.Observe(float64(out.tracks))
		p.metrics.UnitDuration.Observe(out.duration.Seconds())
		p.prog.completed.Add(1)
		p.prog.tracks.Add(int64(out.tracks))
		p.ready.Store(true)
	}

	if fatal != nil {
		return nil, stats, fatal
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, fmt.Errorf("pipeline: %w", err)
	}

	acc.Seal()
	return acc, stats, nil
}

// runUnit executes one simulation unit: synthesize the unit's storm set and
// fold every track's windfield into a private grid row.
func (p *Pipeline) runUnit(ctx context.Context, unit int) unitOutcome {
	start := time.Now()
	out := p.executeUnit(ctx, unit)
	out.duration = time.Since(start)
	return out
}

func (p *Pipeline) executeUnit(ctx context.Context, unit int) unitOutcome {
	out := unitOutcome{unit: unit}

	// A zero timeout means the unit runs unbounded.
	unitCtx := ctx
	cancel := context.CancelFunc(func() {})
	if p.cfg.UnitTimeout > 0 {
		unitCtx, cancel = context.WithTimeout(ctx, p.cfg.UnitTimeout)
	}
	defer cancel()

	u, err := p.source.GenerateUnit(unitCtx, unit)
	if err != nil {
		out.err = err
		return out
	}

	local := grid.NewLocal(p.analysis, unit)
	for _, track := range u.Tracks {
		if err := p.evaluator.Evaluate(unitCtx, track, local); err != nil {
			out.err = err
			return out
		}
	}

	out.local = local
	out.storms = u.Storms
	out.tracks = len(u.Tracks)
	out.dropped = u.Dropped
	return out
}

// progress tracks run counters for the status endpoint without locking.
type progress struct {
	units     atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	tracks    atomic.Int64
	startNano atomic.Int64
	endNano   atomic.Int64
}

func (pr *progress) reset(units int) {
	pr.units.Store(int64(units))
	pr.completed.Store(0)
	pr.failed.Store(0)
	pr.tracks.Store(0)
	pr.startNano.Store(time.Now().UnixNano())
	pr.endNano.Store(0)
}

func (pr *progress) finish() {
	pr.endNano.Store(time.Now().UnixNano())
}

// Progress is a point-in-time snapshot of the run for the status endpoint.
type Progress struct {
	Units          int     `json:"units"`
	UnitsCompleted int     `json:"units_completed"`
	UnitsFailed    int     `json:"units_failed"`
	TracksKept     int     `json:"tracks_kept"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// Progress reports how far the current (or last) run has come. Safe to call
// concurrently with Run.
func (p *Pipeline) Progress() Progress {
	var elapsed time.Duration
	if start := p.prog.startNano.Load(); start > 0 {
		end := p.prog.endNano.Load()
		if end == 0 {
			end = time.Now().UnixNano()
		}
		elapsed = time.Duration(end - start)
	}
	return Progress{
		Units:          int(p.prog.units.Load()),
		UnitsCompleted: int(p.prog.completed.Load()),
		UnitsFailed:    int(p.prog.failed.Load()),
		TracksKept:     int(p.prog.tracks.Load()),
		ElapsedSeconds: elapsed.Seconds(),
	}
}
