// Command genmock writes a synthetic climatology JSON file for demos and
// test fixtures. The output loads directly into the hazard binary via
// CLIMATOLOGY_PATH. The default domain is a Coral Sea box with a handful of
// statistics cells, small enough for fast runs.
//
// Usage:
//
//	go run ./cmd/genmock -out climatology.json -seed 42
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/couchcryptid/cyclone-hazard/internal/climate"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the climatology JSON")
	seed := flag.Int64("seed", 42, "noise seed")
	minLon := flag.Float64("min-lon", 145, "western domain bound, degrees east")
	maxLon := flag.Float64("max-lon", 160, "eastern domain bound, degrees east")
	minLat := flag.Float64("min-lat", -25, "southern domain bound, degrees north")
	maxLat := flag.Float64("max-lat", -10, "northern domain bound, degrees north")
	cellSize := flag.Float64("cell-size", 5, "statistics cell size, degrees")
	frequency := flag.Float64("frequency", 8, "mean annual genesis count")
	resolution := flag.Float64("field-resolution", 0.25, "raster resolution of the gridded fields, degrees")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	c := climate.Synthetic(climate.SyntheticSpec{
		Domain: climate.Domain{
			MinLon: *minLon, MaxLon: *maxLon,
			MinLat: *minLat, MaxLat: *maxLat,
			CellSize: *cellSize,
		},
		MeanFrequency:   *frequency,
		FieldResolution: *resolution,
	}, *seed)
	if err := c.Validate(); err != nil {
		return err
	}

	if err := writeJSON(*out, c); err != nil {
		return fmt.Errorf("writing climatology: %w", err)
	}

	log.Printf("wrote %s", *out)
	log.Printf("domain: [%g, %g] x [%g, %g], %d statistics cells",
		*minLon, *maxLon, *minLat, *maxLat, c.Domain.CellCount())
	log.Printf("mean annual genesis count: %g", c.MeanFrequency)
	log.Printf("land fraction: %.1f%%", 100*landFraction(c))
	return nil
}

// landFraction reports the share of raster points the land mask marks as land.
func landFraction(c *climate.Climatology) float64 {
	if len(c.LandMask.Values) == 0 {
		return 0
	}
	var land int
	for _, v := range c.LandMask.Values {
		if v >= 0.5 {
			land++
		}
	}
	return float64(land) / float64(len(c.LandMask.Values))
}

func writeJSON(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
