package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.NumSimYears)
	assert.Equal(t, 10, cfg.YearsPerSim)
	assert.Equal(t, 500, cfg.NumSimulations())
	assert.Equal(t, []float64{20, 50, 100, 200, 500}, cfg.ReturnPeriods)
	assert.Equal(t, "powell", cfg.WindProfile)
	assert.Equal(t, "kepert", cfg.BoundaryLayer)
	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.Parallelism)
	assert.Equal(t, int64(1), cfg.Seed)
	assert.Equal(t, 0.05, cfg.FailureTolerance)
	assert.Equal(t, 2*time.Minute, cfg.UnitTimeout)
	assert.Equal(t, 50, cfg.MinRecords)
	assert.Equal(t, "climatology.json", cfg.ClimatologyPath)

	assert.Equal(t, 145.0, cfg.GridMinLon)
	assert.Equal(t, 160.0, cfg.GridMaxLon)
	assert.Equal(t, -25.0, cfg.GridMinLat)
	assert.Equal(t, -10.0, cfg.GridMaxLat)
	assert.Equal(t, 0.25, cfg.GridResolution)
	assert.Nil(t, cfg.Inner)

	assert.Equal(t, 1.5, cfg.WindBeta)
	assert.Equal(t, 70.0, cfg.ThetaMax)
	assert.Equal(t, 2.0, cfg.WindMargin)
	assert.Equal(t, 1.23, cfg.GustFactor)

	assert.Empty(t, cfg.ResultsPath)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)

	assert.False(t, cfg.EventsEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "cyclone-hazard-runs", cfg.KafkaTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("NUM_SIM_YEARS", "1000")
	t.Setenv("YEARS_PER_SIM", "5")
	t.Setenv("RETURN_PERIODS", "25, 50, 250")
	t.Setenv("WIND_PROFILE", "holland")
	t.Setenv("BOUNDARY_LAYER", "hubbert")
	t.Setenv("PARALLELISM", "4")
	t.Setenv("SEED", "20250815")
	t.Setenv("FAILURE_TOLERANCE", "0.1")
	t.Setenv("UNIT_TIMEOUT", "30s")
	t.Setenv("MIN_RECORDS", "30")
	t.Setenv("CLIMATOLOGY_PATH", "/data/coral-sea.json")
	t.Setenv("GRID_MIN_LON", "150")
	t.Setenv("GRID_MAX_LON", "155")
	t.Setenv("GRID_MIN_LAT", "-22")
	t.Setenv("GRID_MAX_LAT", "-16")
	t.Setenv("GRID_RESOLUTION", "0.5")
	t.Setenv("INNER_MIN_LON", "151")
	t.Setenv("INNER_MAX_LON", "154")
	t.Setenv("INNER_MIN_LAT", "-21")
	t.Setenv("INNER_MAX_LAT", "-17")
	t.Setenv("WIND_BETA", "1.9")
	t.Setenv("THETA_MAX", "65")
	t.Setenv("WIND_MARGIN", "3")
	t.Setenv("GUST_FACTOR", "1.38")
	t.Setenv("RESULTS_PATH", "/data/hazard.db")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("EVENTS_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "hazard-events")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.NumSimYears)
	assert.Equal(t, 5, cfg.YearsPerSim)
	assert.Equal(t, 200, cfg.NumSimulations())
	assert.Equal(t, []float64{25, 50, 250}, cfg.ReturnPeriods)
	assert.Equal(t, "holland", cfg.WindProfile)
	assert.Equal(t, "hubbert", cfg.BoundaryLayer)
	assert.Equal(t, 4, cfg.Parallelism)
	assert.Equal(t, int64(20250815), cfg.Seed)
	assert.Equal(t, 0.1, cfg.FailureTolerance)
	assert.Equal(t, 30*time.Second, cfg.UnitTimeout)
	assert.Equal(t, 30, cfg.MinRecords)
	assert.Equal(t, "/data/coral-sea.json", cfg.ClimatologyPath)
	assert.Equal(t, 150.0, cfg.GridMinLon)
	assert.Equal(t, 155.0, cfg.GridMaxLon)
	assert.Equal(t, -22.0, cfg.GridMinLat)
	assert.Equal(t, -16.0, cfg.GridMaxLat)
	assert.Equal(t, 0.5, cfg.GridResolution)
	require.NotNil(t, cfg.Inner)
	assert.Equal(t, Bounds{MinLon: 151, MaxLon: 154, MinLat: -21, MaxLat: -17}, *cfg.Inner)
	assert.Equal(t, 1.9, cfg.WindBeta)
	assert.Equal(t, 65.0, cfg.ThetaMax)
	assert.Equal(t, 3.0, cfg.WindMargin)
	assert.Equal(t, 1.38, cfg.GustFactor)
	assert.Equal(t, "/data/hazard.db", cfg.ResultsPath)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.EventsEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "hazard-events", cfg.KafkaTopic)
}

func TestLoad_NumSimulationsFloors(t *testing.T) {
	t.Setenv("NUM_SIM_YEARS", "25")
	t.Setenv("YEARS_PER_SIM", "10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.NumSimulations())
}

func TestLoad_InvalidNumSimYears(t *testing.T) {
	t.Setenv("NUM_SIM_YEARS", "many")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NUM_SIM_YEARS")
}

func TestLoad_TotalYearsBelowOneSimulation(t *testing.T) {
	t.Setenv("NUM_SIM_YEARS", "5")
	t.Setenv("YEARS_PER_SIM", "10")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NUM_SIM_YEARS")
}

func TestLoad_InvalidReturnPeriods(t *testing.T) {
	t.Setenv("RETURN_PERIODS", "20,fifty,100")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RETURN_PERIODS")
}

func TestLoad_NonPositiveReturnPeriod(t *testing.T) {
	t.Setenv("RETURN_PERIODS", "20,-50")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RETURN_PERIODS")
}

func TestLoad_UnorderedReturnPeriods(t *testing.T) {
	t.Setenv("RETURN_PERIODS", "100,50,20")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strictly increasing")
}

func TestLoad_InvalidParallelism(t *testing.T) {
	t.Setenv("PARALLELISM", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PARALLELISM")
}

func TestLoad_InvalidSeed(t *testing.T) {
	t.Setenv("SEED", "12.5")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SEED")
}

func TestLoad_FailureToleranceOutOfRange(t *testing.T) {
	t.Setenv("FAILURE_TOLERANCE", "1.5")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FAILURE_TOLERANCE")
}

func TestLoad_InvalidUnitTimeout(t *testing.T) {
	t.Setenv("UNIT_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIT_TIMEOUT")
}

func TestLoad_InvalidMinRecords(t *testing.T) {
	t.Setenv("MIN_RECORDS", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MIN_RECORDS")
}

func TestLoad_InvalidGridResolution(t *testing.T) {
	t.Setenv("GRID_RESOLUTION", "coarse")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRID_RESOLUTION")
}

func TestLoad_PartialInnerBounds(t *testing.T) {
	t.Setenv("INNER_MIN_LON", "151")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set together")
}

func TestLoad_InvertedInnerBounds(t *testing.T) {
	t.Setenv("INNER_MIN_LON", "154")
	t.Setenv("INNER_MAX_LON", "151")
	t.Setenv("INNER_MIN_LAT", "-21")
	t.Setenv("INNER_MAX_LAT", "-17")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inverted")
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_EventsEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("EVENTS_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", " , ")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}
