package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/cyclone-hazard/internal/windfield"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Simulation controls.
	NumSimYears      int
	YearsPerSim      int
	ReturnPeriods    []float64
	WindProfile      string
	BoundaryLayer    string
	Parallelism      int
	Seed             int64
	FailureTolerance float64
	UnitTimeout      time.Duration
	MinRecords       int
	ClimatologyPath  string

	// Analysis grid extent and resolution, in degrees.
	GridMinLon     float64
	GridMaxLon     float64
	GridMinLat     float64
	GridMaxLat     float64
	GridResolution float64

	// Inner is an optional track filter: synthesized tracks that wander
	// outside it are dropped. Nil unless all four INNER_* variables are set.
	Inner *Bounds

	// Windfield knobs.
	WindBeta   float64
	ThetaMax   float64
	WindMargin float64
	GustFactor float64

	// ResultsPath enables the sqlite results store when non-empty.
	ResultsPath string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Run lifecycle event publishing.
	EventsEnabled bool
	KafkaBrokers  []string
	KafkaTopic    string
}

// Bounds is a lon/lat box in degrees.
type Bounds struct {
	MinLon float64
	MaxLon float64
	MinLat float64
	MaxLat float64
}

// NumSimulations is the number of independent simulation units a run
// dispatches. Each unit covers YearsPerSim synthetic years, so the total
// synthetic record is floored to a whole number of units.
func (c *Config) NumSimulations() int {
	return c.NumSimYears / c.YearsPerSim
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	numSimYears, err := parseIntVar("NUM_SIM_YEARS", 5000)
	if err != nil {
		return nil, err
	}
	yearsPerSim, err := parseIntVar("YEARS_PER_SIM", 10)
	if err != nil {
		return nil, err
	}
	returnPeriods, err := parseFloatList("RETURN_PERIODS", "20,50,100,200,500")
	if err != nil {
		return nil, err
	}
	parallelism, err := parseIntVar("PARALLELISM", runtime.GOMAXPROCS(0))
	if err != nil {
		return nil, err
	}
	seed, err := parseInt64Var("SEED", 1)
	if err != nil {
		return nil, err
	}
	failureTolerance, err := parseFloatVar("FAILURE_TOLERANCE", 0.05)
	if err != nil {
		return nil, err
	}
	unitTimeout, err := parseDurationVar("UNIT_TIMEOUT", "2m")
	if err != nil {
		return nil, err
	}
	minRecords, err := parseIntVar("MIN_RECORDS", 50)
	if err != nil {
		return nil, err
	}

	gridMinLon, err := parseFloatVar("GRID_MIN_LON", 145)
	if err != nil {
		return nil, err
	}
	gridMaxLon, err := parseFloatVar("GRID_MAX_LON", 160)
	if err != nil {
		return nil, err
	}
	gridMinLat, err := parseFloatVar("GRID_MIN_LAT", -25)
	if err != nil {
		return nil, err
	}
	gridMaxLat, err := parseFloatVar("GRID_MAX_LAT", -10)
	if err != nil {
		return nil, err
	}
	gridResolution, err := parseFloatVar("GRID_RESOLUTION", 0.25)
	if err != nil {
		return nil, err
	}
	inner, err := parseInnerBounds()
	if err != nil {
		return nil, err
	}

	windBeta, err := parseFloatVar("WIND_BETA", windfield.DefaultBeta)
	if err != nil {
		return nil, err
	}
	thetaMax, err := parseFloatVar("THETA_MAX", windfield.DefaultThetaMax)
	if err != nil {
		return nil, err
	}
	windMargin, err := parseFloatVar("WIND_MARGIN", windfield.DefaultMargin)
	if err != nil {
		return nil, err
	}
	gustFactor, err := parseFloatVar("GUST_FACTOR", windfield.DefaultGustFactor)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := parseDurationVar("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		NumSimYears:      numSimYears,
		YearsPerSim:      yearsPerSim,
		ReturnPeriods:    returnPeriods,
		WindProfile:      envOrDefault("WIND_PROFILE", string(windfield.DefaultProfile)),
		BoundaryLayer:    envOrDefault("BOUNDARY_LAYER", string(windfield.DefaultBoundary)),
		Parallelism:      parallelism,
		Seed:             seed,
		FailureTolerance: failureTolerance,
		UnitTimeout:      unitTimeout,
		MinRecords:       minRecords,
		ClimatologyPath:  envOrDefault("CLIMATOLOGY_PATH", "climatology.json"),

		GridMinLon:     gridMinLon,
		GridMaxLon:     gridMaxLon,
		GridMinLat:     gridMinLat,
		GridMaxLat:     gridMaxLat,
		GridResolution: gridResolution,
		Inner:          inner,

		WindBeta:   windBeta,
		ThetaMax:   thetaMax,
		WindMargin: windMargin,
		GustFactor: gustFactor,

		ResultsPath: os.Getenv("RESULTS_PATH"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		EventsEnabled: os.Getenv("EVENTS_ENABLED") == "true",
		KafkaBrokers:  parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:    envOrDefault("KAFKA_TOPIC", "cyclone-hazard-runs"),
	}

	if cfg.YearsPerSim < 1 {
		return nil, errors.New("YEARS_PER_SIM must be at least 1")
	}
	if cfg.NumSimYears < cfg.YearsPerSim {
		return nil, errors.New("NUM_SIM_YEARS must cover at least one simulation of YEARS_PER_SIM years")
	}
	if len(cfg.ReturnPeriods) == 0 {
		return nil, errors.New("RETURN_PERIODS is required")
	}
	for i, p := range cfg.ReturnPeriods {
		if p <= 0 {
			return nil, errors.New("RETURN_PERIODS must be positive")
		}
		if i > 0 && p <= cfg.ReturnPeriods[i-1] {
			return nil, errors.New("RETURN_PERIODS must be strictly increasing")
		}
	}
	if cfg.Parallelism < 1 {
		return nil, errors.New("PARALLELISM must be at least 1")
	}
	if cfg.FailureTolerance < 0 || cfg.FailureTolerance > 1 {
		return nil, errors.New("FAILURE_TOLERANCE must be between 0 and 1")
	}
	if cfg.MinRecords < 1 {
		return nil, errors.New("MIN_RECORDS must be at least 1")
	}
	if cfg.ClimatologyPath == "" {
		return nil, errors.New("CLIMATOLOGY_PATH is required")
	}
	if cfg.EventsEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when EVENTS_ENABLED is true")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_TOPIC is required when EVENTS_ENABLED is true")
		}
	}

	return cfg, nil
}

// The inner domain is all-or-nothing: a partial set of INNER_* variables is
// a configuration mistake, not a request for defaults.
func parseInnerBounds() (*Bounds, error) {
	keys := [4]string{"INNER_MIN_LON", "INNER_MAX_LON", "INNER_MIN_LAT", "INNER_MAX_LAT"}
	var vals [4]float64
	set := 0
	for i, key := range keys {
		s := os.Getenv(key)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s", key)
		}
		vals[i] = v
		set++
	}
	if set == 0 {
		return nil, nil
	}
	if set != len(keys) {
		return nil, errors.New("INNER_MIN_LON, INNER_MAX_LON, INNER_MIN_LAT and INNER_MAX_LAT must be set together")
	}
	b := &Bounds{MinLon: vals[0], MaxLon: vals[1], MinLat: vals[2], MaxLat: vals[3]}
	if b.MinLon >= b.MaxLon || b.MinLat >= b.MaxLat {
		return nil, errors.New("inner domain bounds are inverted")
	}
	return b, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseIntVar(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseInt64Var(key string, def int64) (int64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloatVar(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseDurationVar(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloatList(key, def string) ([]float64, error) {
	var vals []float64
	for _, f := range strings.Split(envOrDefault(key, def), ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s", key)
		}
		vals = append(vals, v)
	}
	return vals, nil
}
