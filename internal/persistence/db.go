// Package persistence stores completed hazard runs and their per-cell
// surfaces in SQLite.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/cyclone-hazard/internal/evd"
	"github.com/couchcryptid/cyclone-hazard/internal/pipeline"
)

// DB wraps a SQLite connection holding hazard run results.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", path, err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("persistence: migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		seed INTEGER NOT NULL,
		num_sim_years INTEGER NOT NULL,
		years_per_sim INTEGER NOT NULL,
		units INTEGER NOT NULL,
		units_completed INTEGER NOT NULL,
		units_failed INTEGER NOT NULL,
		profile TEXT NOT NULL,
		boundary TEXT NOT NULL,
		min_lon REAL NOT NULL,
		max_lon REAL NOT NULL,
		min_lat REAL NOT NULL,
		max_lat REAL NOT NULL,
		resolution REAL NOT NULL,
		return_periods_json TEXT NOT NULL,
		storms INTEGER NOT NULL,
		tracks_kept INTEGER NOT NULL,
		tracks_dropped_json TEXT NOT NULL,
		cells_fitted INTEGER NOT NULL,
		cells_no_wind INTEGER NOT NULL,
		cells_insufficient INTEGER NOT NULL,
		cells_no_convergence INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS hazard_cells (
		run_id TEXT NOT NULL,
		cell INTEGER NOT NULL,
		lon REAL NOT NULL,
		lat REAL NOT NULL,
		max_gust REAL NOT NULL,
		min_pressure REAL NOT NULL,
		outcome TEXT NOT NULL,
		location REAL NOT NULL,
		scale REAL NOT NULL,
		shape REAL NOT NULL,
		PRIMARY KEY (run_id, cell)
	);

	CREATE TABLE IF NOT EXISTS hazard_wind (
		run_id TEXT NOT NULL,
		cell INTEGER NOT NULL,
		return_period REAL NOT NULL,
		wind_speed REAL NOT NULL,
		PRIMARY KEY (run_id, cell, return_period)
	);

	CREATE INDEX IF NOT EXISTS idx_cells_outcome ON hazard_cells(run_id, outcome);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun writes one completed run: the run row, every cell's surface, and
// the return-period wind speeds of fitted cells, in a single transaction.
// A cell no storm ever reached stores the missing-value sentinel in place of
// its infinite minimum pressure.
func (db *DB) SaveRun(ctx context.Context, result *pipeline.Result) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persistence: begin: %w", err)
	}
	defer tx.Rollback()

	cfg := result.Config
	report := result.Report
	returnPeriods, _ := json.Marshal(cfg.ReturnPeriods)
	dropped, _ := json.Marshal(report.TracksDropped)

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(run_id, started_at, seed, num_sim_years, years_per_sim, units,
		 units_completed, units_failed, profile, boundary,
		 min_lon, max_lon, min_lat, max_lat, resolution, return_periods_json,
		 storms, tracks_kept, tracks_dropped_json,
		 cells_fitted, cells_no_wind, cells_insufficient, cells_no_convergence,
		 duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.StartedAt.UTC().Format(time.RFC3339Nano), cfg.Seed,
		cfg.NumSimYears, cfg.YearsPerSim, report.Units,
		report.UnitsCompleted, report.UnitsFailed, cfg.WindProfile, cfg.BoundaryLayer,
		cfg.GridMinLon, cfg.GridMaxLon, cfg.GridMinLat, cfg.GridMaxLat,
		cfg.GridResolution, string(returnPeriods),
		report.Storms, report.TracksKept, string(dropped),
		report.CellsFitted, report.CellsNoWind, report.CellsInsufficient,
		report.CellsNoConvergence, report.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("persistence: insert run %s: %w", result.RunID, err)
	}

	cellStmt, err := tx.PreparexContext(ctx, `INSERT INTO hazard_cells
		(run_id, cell, lon, lat, max_gust, min_pressure, outcome, location, scale, shape)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("persistence: prepare cells: %w", err)
	}
	defer cellStmt.Close()

	windStmt, err := tx.PreparexContext(ctx, `INSERT INTO hazard_wind
		(run_id, cell, return_period, wind_speed)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("persistence: prepare winds: %w", err)
	}
	defer windStmt.Close()

	for _, c := range result.Cells {
		minPressure := c.MinPressure
		if math.IsInf(minPressure, 1) {
			minPressure = evd.Missing
		}
		_, err := cellStmt.ExecContext(ctx,
			result.RunID, c.Cell, c.Lon, c.Lat, c.MaxGust, minPressure,
			string(c.Fit.Outcome), c.Fit.Location, c.Fit.Scale, c.Fit.Shape,
		)
		if err != nil {
			return fmt.Errorf("persistence: insert cell %d: %w", c.Cell, err)
		}

		if c.Fit.Outcome != evd.OutcomeFitted {
			continue
		}
		for i, rp := range cfg.ReturnPeriods {
			_, err := windStmt.ExecContext(ctx, result.RunID, c.Cell, rp, c.Fit.Speeds[i])
			if err != nil {
				return fmt.Errorf("persistence: insert wind for cell %d: %w", c.Cell, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persistence: commit run %s: %w", result.RunID, err)
	}
	return nil
}

const runColumns = `run_id, started_at, seed, num_sim_years, years_per_sim, units,
	units_completed, units_failed, profile, boundary,
	min_lon, max_lon, min_lat, max_lat, resolution, return_periods_json,
	storms, tracks_kept, tracks_dropped_json,
	cells_fitted, cells_no_wind, cells_insufficient, cells_no_convergence, duration_ms`

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID              string  `db:"run_id"`
	StartedAt          string  `db:"started_at"`
	Seed               int64   `db:"seed"`
	NumSimYears        int     `db:"num_sim_years"`
	YearsPerSim        int     `db:"years_per_sim"`
	Units              int     `db:"units"`
	UnitsCompleted     int     `db:"units_completed"`
	UnitsFailed        int     `db:"units_failed"`
	Profile            string  `db:"profile"`
	Boundary           string  `db:"boundary"`
	MinLon             float64 `db:"min_lon"`
	MaxLon             float64 `db:"max_lon"`
	MinLat             float64 `db:"min_lat"`
	MaxLat             float64 `db:"max_lat"`
	Resolution         float64 `db:"resolution"`
	ReturnPeriodsJSON  string  `db:"return_periods_json"`
	Storms             int     `db:"storms"`
	TracksKept         int     `db:"tracks_kept"`
	TracksDroppedJSON  string  `db:"tracks_dropped_json"`
	CellsFitted        int     `db:"cells_fitted"`
	CellsNoWind        int     `db:"cells_no_wind"`
	CellsInsufficient  int     `db:"cells_insufficient"`
	CellsNoConvergence int     `db:"cells_no_convergence"`
	DurationMS         int64   `db:"duration_ms"`
}

// ReturnPeriods decodes the run's requested return periods.
func (r RunRecord) ReturnPeriods() ([]float64, error) {
	var periods []float64
	if err := json.Unmarshal([]byte(r.ReturnPeriodsJSON), &periods); err != nil {
		return nil, fmt.Errorf("persistence: run %s return periods: %w", r.RunID, err)
	}
	return periods, nil
}

// CellRecord is one row of the hazard_cells table.
type CellRecord struct {
	Cell        int     `db:"cell"`
	Lon         float64 `db:"lon"`
	Lat         float64 `db:"lat"`
	MaxGust     float64 `db:"max_gust"`
	MinPressure float64 `db:"min_pressure"`
	Outcome     string  `db:"outcome"`
	Location    float64 `db:"location"`
	Scale       float64 `db:"scale"`
	Shape       float64 `db:"shape"`
}

// WindRecord is one row of the hazard_wind table.
type WindRecord struct {
	Cell         int     `db:"cell"`
	ReturnPeriod float64 `db:"return_period"`
	WindSpeed    float64 `db:"wind_speed"`
}

// LatestRun returns the most recently saved run.
func (db *DB) LatestRun(ctx context.Context) (RunRecord, error) {
	var run RunRecord
	err := db.conn.GetContext(ctx, &run,
		"SELECT "+runColumns+" FROM runs ORDER BY rowid DESC LIMIT 1")
	if err != nil {
		return RunRecord{}, fmt.Errorf("persistence: latest run: %w", err)
	}
	return run, nil
}

// Run returns the run with the given ID.
func (db *DB) Run(ctx context.Context, id string) (RunRecord, error) {
	var run RunRecord
	err := db.conn.GetContext(ctx, &run,
		"SELECT "+runColumns+" FROM runs WHERE run_id = ?", id)
	if err != nil {
		return RunRecord{}, fmt.Errorf("persistence: run %s: %w", id, err)
	}
	return run, nil
}

// RunCells returns every cell of a run in cell order.
func (db *DB) RunCells(ctx context.Context, runID string) ([]CellRecord, error) {
	var cells []CellRecord
	err := db.conn.SelectContext(ctx, &cells,
		`SELECT cell, lon, lat, max_gust, min_pressure, outcome, location, scale, shape
		 FROM hazard_cells WHERE run_id = ? ORDER BY cell`, runID)
	if err != nil {
		return nil, fmt.Errorf("persistence: cells of run %s: %w", runID, err)
	}
	return cells, nil
}

// CellWinds returns a run's return-period wind speeds ordered by cell and
// return period. Only fitted cells have rows.
func (db *DB) CellWinds(ctx context.Context, runID string) ([]WindRecord, error) {
	var winds []WindRecord
	err := db.conn.SelectContext(ctx, &winds,
		`SELECT cell, return_period, wind_speed
		 FROM hazard_wind WHERE run_id = ? ORDER BY cell, return_period`, runID)
	if err != nil {
		return nil, fmt.Errorf("persistence: winds of run %s: %w", runID, err)
	}
	return winds, nil
}
