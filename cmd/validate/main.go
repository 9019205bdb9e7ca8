// Command validate checks a hazard results database for internal
// consistency: run counters against stored cell outcomes, hazard surfaces
// against the sentinel rules, wind speeds against return-period monotonicity,
// and cell coordinates against the run's grid definition.
//
// Usage:
//
//	go run ./cmd/validate -db hazard.db
//	go run ./cmd/validate -db hazard.db -run 6d1f...
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/couchcryptid/cyclone-hazard/internal/evd"
	"github.com/couchcryptid/cyclone-hazard/internal/grid"
	"github.com/couchcryptid/cyclone-hazard/internal/persistence"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dbPath := flag.String("db", "", "path to the hazard results SQLite database")
	runID := flag.String("run", "", "run ID to validate (default: the latest run)")
	flag.Parse()

	if *dbPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dbPath, *runID); code != 0 {
		os.Exit(code)
	}
}

func run(dbPath, runID string) int {
	ctx := context.Background()

	db, err := persistence.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open results database: %v\n", err)
		return 1
	}
	defer db.Close()

	var runRow persistence.RunRecord
	if runID == "" {
		runRow, err = db.LatestRun(ctx)
	} else {
		runRow, err = db.Run(ctx, runID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load run: %v\n", err)
		return 1
	}

	cells, err := db.RunCells(ctx, runRow.RunID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load cells: %v\n", err)
		return 1
	}
	winds, err := db.CellWinds(ctx, runRow.RunID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load winds: %v\n", err)
		return 1
	}

	fmt.Println("=== Hazard Results Integrity Validation ===")
	fmt.Println()
	printSummary(runRow, len(cells))

	phases := []*phase{
		validateRunCounts(runRow, cells),
		validateCellSurfaces(runRow, cells),
		validateWindMonotonicity(runRow, cells, winds),
		validateGridAlignment(runRow, cells),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func printSummary(r persistence.RunRecord, cellCount int) {
	fmt.Printf("Run %s\n", r.RunID)
	if startedAt, err := time.Parse(time.RFC3339Nano, r.StartedAt); err == nil {
		fmt.Printf("  started %s (%s)\n", startedAt.Format(time.RFC3339), humanize.Time(startedAt))
	}
	fmt.Printf("  %s simulation units of %d years, seed %d, %s/%s\n",
		humanize.Comma(int64(r.Units)), r.YearsPerSim, r.Seed, r.Profile, r.Boundary)
	fmt.Printf("  %s storms, %s tracks kept, %s grid cells\n",
		humanize.Comma(int64(r.Storms)), humanize.Comma(int64(r.TracksKept)),
		humanize.Comma(int64(cellCount)))
	fmt.Printf("  completed in %s\n", time.Duration(r.DurationMS)*time.Millisecond)
}

// validateRunCounts cross-checks the run row's counters against the stored
// cells.
func validateRunCounts(r persistence.RunRecord, cells []persistence.CellRecord) *phase {
	p := &phase{name: "run counters vs stored cells"}

	if r.Units != r.UnitsCompleted+r.UnitsFailed {
		p.errorf("units %d != completed %d + failed %d", r.Units, r.UnitsCompleted, r.UnitsFailed)
	}

	outcomes := map[string]int{}
	for _, c := range cells {
		outcomes[c.Outcome]++
	}
	checks := []struct {
		outcome string
		want    int
	}{
		{string(evd.OutcomeFitted), r.CellsFitted},
		{string(evd.OutcomeNoWind), r.CellsNoWind},
		{string(evd.OutcomeInsufficient), r.CellsInsufficient},
		{string(evd.OutcomeNoConvergence), r.CellsNoConvergence},
	}
	total := 0
	for _, c := range checks {
		if outcomes[c.outcome] != c.want {
			p.errorf("%s cells: run row says %d, hazard_cells holds %d", c.outcome, c.want, outcomes[c.outcome])
		}
		total += c.want
	}
	if total != len(cells) {
		p.errorf("outcome counts sum to %d but %d cells are stored", total, len(cells))
	}
	for outcome := range outcomes {
		switch outcome {
		case string(evd.OutcomeFitted), string(evd.OutcomeNoWind),
			string(evd.OutcomeInsufficient), string(evd.OutcomeNoConvergence):
		default:
			p.errorf("unknown outcome %q in hazard_cells", outcome)
		}
	}
	return p
}

// validateCellSurfaces checks that parameters and extremes respect the
// outcome: fitted cells carry a real fit, unfitted cells carry the sentinel.
func validateCellSurfaces(r persistence.RunRecord, cells []persistence.CellRecord) *phase {
	p := &phase{name: "hazard surfaces and sentinels"}

	for _, c := range cells {
		if c.Lon < r.MinLon || c.Lon > r.MaxLon || c.Lat < r.MinLat || c.Lat > r.MaxLat {
			p.errorf("cell %d: center (%g, %g) outside grid extent", c.Cell, c.Lon, c.Lat)
		}
		if c.MaxGust < 0 {
			p.errorf("cell %d: negative max gust %g", c.Cell, c.MaxGust)
		}
		if c.MinPressure != evd.Missing && (c.MinPressure < 800 || c.MinPressure > 1100) {
			p.errorf("cell %d: min pressure %g hPa is not physical", c.Cell, c.MinPressure)
		}

		switch c.Outcome {
		case string(evd.OutcomeFitted):
			if c.Location == evd.Missing || c.Scale == evd.Missing || c.Shape == evd.Missing {
				p.errorf("cell %d: fitted with missing parameters", c.Cell)
			}
			if c.Scale <= 0 {
				p.errorf("cell %d: fitted with non-positive scale %g", c.Cell, c.Scale)
			}
			if c.MaxGust <= 0 {
				p.errorf("cell %d: fitted but max gust is %g", c.Cell, c.MaxGust)
			}
		case string(evd.OutcomeNoWind):
			if c.MaxGust != 0 {
				p.errorf("cell %d: no wind recorded but max gust is %g", c.Cell, c.MaxGust)
			}
			fallthrough
		default:
			if c.Location != evd.Missing || c.Scale != evd.Missing || c.Shape != evd.Missing {
				p.errorf("cell %d: %s cell carries fit parameters", c.Cell, c.Outcome)
			}
		}
	}
	return p
}

// validateWindMonotonicity checks that every fitted cell has one speed per
// return period and that speeds never decrease as the return period grows.
func validateWindMonotonicity(r persistence.RunRecord, cells []persistence.CellRecord, winds []persistence.WindRecord) *phase {
	p := &phase{name: "return-period wind monotonicity"}

	periods, err := r.ReturnPeriods()
	if err != nil {
		p.errorf("%v", err)
		return p
	}

	fitted := map[int]bool{}
	for _, c := range cells {
		if c.Outcome == string(evd.OutcomeFitted) {
			fitted[c.Cell] = true
		}
	}
	if want := len(fitted) * len(periods); len(winds) != want {
		p.errorf("wind rows: got %d, want %d (%d fitted cells x %d periods)",
			len(winds), want, len(fitted), len(periods))
	}

	perCell := map[int][]persistence.WindRecord{}
	for _, w := range winds {
		perCell[w.Cell] = append(perCell[w.Cell], w)
	}
	for cell, rows := range perCell {
		if !fitted[cell] {
			p.errorf("cell %d: wind rows without a fitted outcome", cell)
			continue
		}
		if len(rows) != len(periods) {
			p.errorf("cell %d: %d wind rows, want %d", cell, len(rows), len(periods))
			continue
		}
		for i, w := range rows {
			if w.ReturnPeriod != periods[i] {
				p.errorf("cell %d: return period %g at position %d, want %g", cell, w.ReturnPeriod, i, periods[i])
			}
			if w.WindSpeed <= 0 || w.WindSpeed == evd.Missing {
				p.errorf("cell %d: %g-year wind speed %g is not positive", cell, w.ReturnPeriod, w.WindSpeed)
			}
			if i > 0 && w.WindSpeed < rows[i-1].WindSpeed {
				p.errorf("cell %d: wind speed decreases from %g-year (%g) to %g-year (%g)",
					cell, rows[i-1].ReturnPeriod, rows[i-1].WindSpeed, w.ReturnPeriod, w.WindSpeed)
			}
		}
	}
	return p
}

// validateGridAlignment rebuilds the run's analysis grid and checks every
// stored cell index and center against it.
func validateGridAlignment(r persistence.RunRecord, cells []persistence.CellRecord) *phase {
	p := &phase{name: "cell centers vs grid definition"}

	analysis, err := grid.NewAnalysis(r.MinLon, r.MaxLon, r.MinLat, r.MaxLat, r.Resolution)
	if err != nil {
		p.errorf("grid definition unusable: %v", err)
		return p
	}
	if analysis.CellCount() != len(cells) {
		p.errorf("grid defines %d cells, %d stored", analysis.CellCount(), len(cells))
	}
	for _, c := range cells {
		if c.Cell < 0 || c.Cell >= analysis.CellCount() {
			p.errorf("cell index %d outside [0, %d)", c.Cell, analysis.CellCount())
			continue
		}
		lon, lat := analysis.CellCenter(c.Cell)
		if math.Abs(lon-c.Lon) > 1e-9 || math.Abs(lat-c.Lat) > 1e-9 {
			p.errorf("cell %d: stored center (%g, %g), grid says (%g, %g)", c.Cell, c.Lon, c.Lat, lon, lat)
		}
	}
	return p
}
