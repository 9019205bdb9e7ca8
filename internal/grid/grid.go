// Package grid holds the analysis grid and the wind-maxima accumulator. The
// grid is the fixed output discretization of a run; the accumulator collects
// one row of per-cell gust maxima per simulation unit and exposes the
// completed per-cell series to the extreme-value fitter.
package grid

import (
	"fmt"
	"math"
)

// Analysis is the output grid: a rectangular lon/lat extent divided into
// square cells, numbered row-major from the southwest corner. Values are
// computed at cell centers.
type Analysis struct {
	MinLon, MaxLon float64
	MinLat, MaxLat float64
	Resolution     float64

	cols, rows int
}

// NewAnalysis validates the extent and resolution and builds the grid.
func NewAnalysis(minLon, maxLon, minLat, maxLat, resolution float64) (*Analysis, error) {
	if maxLon <= minLon || maxLat <= minLat {
		return nil, fmt.Errorf("grid: extent [%g, %g] x [%g, %g] is empty", minLon, maxLon, minLat, maxLat)
	}
	if resolution <= 0 {
		return nil, fmt.Errorf("grid: resolution must be positive, got %g", resolution)
	}
	cols := int(math.Round((maxLon - minLon) / resolution))
	rows := int(math.Round((maxLat - minLat) / resolution))
	if cols < 1 || rows < 1 {
		return nil, fmt.Errorf("grid: extent smaller than one %g-degree cell", resolution)
	}
	return &Analysis{
		MinLon: minLon, MaxLon: maxLon,
		MinLat: minLat, MaxLat: maxLat,
		Resolution: resolution,
		cols:       cols, rows: rows,
	}, nil
}

// Cols returns the number of cells along a row.
func (a *Analysis) Cols() int { return a.cols }

// Rows returns the number of cell rows.
func (a *Analysis) Rows() int { return a.rows }

// CellCount returns the total number of cells.
func (a *Analysis) CellCount() int { return a.cols * a.rows }

// CellCenter returns the center coordinates of a cell.
func (a *Analysis) CellCenter(cell int) (lon, lat float64) {
	col := cell % a.cols
	row := cell / a.cols
	return a.MinLon + (float64(col)+0.5)*a.Resolution,
		a.MinLat + (float64(row)+0.5)*a.Resolution
}

// CellAt returns the cell containing the point, or false when the point lies
// outside the grid extent.
func (a *Analysis) CellAt(lon, lat float64) (int, bool) {
	col := int(math.Floor((lon - a.MinLon) / a.Resolution))
	row := int(math.Floor((lat - a.MinLat) / a.Resolution))
	if col < 0 || col >= a.cols || row < 0 || row >= a.rows {
		return 0, false
	}
	return row*a.cols + col, true
}

// EachWithin visits every cell whose center could lie within margin degrees
// of the point, calling fn with the cell index and its center coordinates.
// The window clamps to the grid extent; a point far outside the grid visits
// nothing.
func (a *Analysis) EachWithin(lon, lat, margin float64, fn func(cell int, cellLon, cellLat float64)) {
	if margin < 0 {
		return
	}
	colLo := int(math.Floor((lon - margin - a.MinLon) / a.Resolution))
	colHi := int(math.Floor((lon + margin - a.MinLon) / a.Resolution))
	rowLo := int(math.Floor((lat - margin - a.MinLat) / a.Resolution))
	rowHi := int(math.Floor((lat + margin - a.MinLat) / a.Resolution))
	if colHi < 0 || colLo >= a.cols || rowHi < 0 || rowLo >= a.rows {
		return
	}
	colLo, colHi = clamp(colLo, a.cols), clamp(colHi, a.cols)
	rowLo, rowHi = clamp(rowLo, a.rows), clamp(rowHi, a.rows)

	for row := rowLo; row <= rowHi; row++ {
		cellLat := a.MinLat + (float64(row)+0.5)*a.Resolution
		for col := colLo; col <= colHi; col++ {
			cellLon := a.MinLon + (float64(col)+0.5)*a.Resolution
			fn(row*a.cols+col, cellLon, cellLat)
		}
	}
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
