//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cyclone-hazard/internal/adapter/kafka"
	"github.com/couchcryptid/cyclone-hazard/internal/climate"
	"github.com/couchcryptid/cyclone-hazard/internal/config"
	"github.com/couchcryptid/cyclone-hazard/internal/observability"
	"github.com/couchcryptid/cyclone-hazard/internal/pipeline"
)

const testEventsTopic = "hazard-run-events"

// runEvent mirrors the wire form published by the Kafka sink.
type runEvent struct {
	Event       string           `json:"event"`
	RunID       string           `json:"run_id"`
	Seed        int64            `json:"seed"`
	Simulations int              `json:"simulations"`
	Profile     string           `json:"profile"`
	Boundary    string           `json:"boundary"`
	Report      *pipeline.Report `json:"report"`
}

func readEvent(ctx context.Context, t *testing.T, consumer *kafkago.Reader) (runEvent, kafkago.Message) {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from events topic")

	var event runEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal run event")
	return event, msg
}

func headerMap(msg kafkago.Message) map[string]string {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return headers
}

func testHazardConfig(broker string) *config.Config {
	return &config.Config{
		NumSimYears:      10,
		YearsPerSim:      1,
		ReturnPeriods:    []float64{20, 50},
		WindProfile:      "powell",
		BoundaryLayer:    "kepert",
		Parallelism:      4,
		Seed:             7,
		FailureTolerance: 0,
		UnitTimeout:      time.Minute,
		MinRecords:       5,
		GridMinLon:       150,
		GridMaxLon:       152,
		GridMinLat:       -20,
		GridMaxLat:       -19,
		GridResolution:   1,
		WindBeta:         1.5,
		ThetaMax:         70,
		WindMargin:       2,
		GustFactor:       1.23,
		EventsEnabled:    true,
		KafkaBrokers:     []string{broker},
		KafkaTopic:       testEventsTopic,
	}
}

func testClimatology(t *testing.T) *climate.Climatology {
	t.Helper()
	c := climate.Synthetic(climate.SyntheticSpec{
		Domain:        climate.Domain{MinLon: 145, MaxLon: 160, MinLat: -25, MaxLat: -10, CellSize: 5},
		MeanFrequency: 8,
	}, 42)
	require.NoError(t, c.Validate())
	return c
}

// TestRunLifecycleEventsOnKafka runs a full hazard run against a real broker
// and verifies both lifecycle events arrive in order on one partition.
func TestRunLifecycleEventsOnKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testEventsTopic)

	cfg := testHazardConfig(broker)
	sink := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = sink.Close() })

	p := pipeline.New(testClimatology(t), cfg, discardLogger(),
		observability.NewMetricsForTesting(), nil, sink)
	require.NoError(t, p.Run(ctx))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testEventsTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	started, startedMsg := readEvent(ctx, t, consumer)
	assert.Equal(t, "run_started", started.Event)
	assert.NotEmpty(t, started.RunID)
	assert.Equal(t, int64(7), started.Seed)
	assert.Equal(t, 10, started.Simulations)
	assert.Equal(t, "powell", started.Profile)
	assert.Equal(t, "kepert", started.Boundary)
	assert.Nil(t, started.Report)
	assert.Equal(t, started.RunID, string(startedMsg.Key))

	completed, completedMsg := readEvent(ctx, t, consumer)
	assert.Equal(t, "run_completed", completed.Event)
	assert.Equal(t, started.RunID, completed.RunID)
	assert.Equal(t, string(startedMsg.Key), string(completedMsg.Key),
		"both events must share the run key")

	require.NotNil(t, completed.Report)
	assert.Equal(t, 10, completed.Report.UnitsCompleted)
	assert.Zero(t, completed.Report.UnitsFailed)
	outcomes := completed.Report.CellsFitted + completed.Report.CellsNoWind +
		completed.Report.CellsInsufficient + completed.Report.CellsNoConvergence
	assert.Equal(t, 2, outcomes, "every grid cell reports exactly one outcome")

	headers := headerMap(completedMsg)
	assert.Equal(t, "run_completed", headers["event_type"])
	_, err := time.Parse(time.RFC3339, headers["produced_at"])
	assert.NoError(t, err, "produced_at should be valid RFC3339")
}

// TestRunSurvivesUnreachableBroker verifies that event publishing is advisory:
// a run with a dead sink still completes.
func TestRunSurvivesUnreachableBroker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg := testHazardConfig("localhost:1")
	sink := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = sink.Close() })

	p := pipeline.New(testClimatology(t), cfg, discardLogger(),
		observability.NewMetricsForTesting(), nil, sink)
	require.NoError(t, p.Run(ctx))
	assert.NoError(t, p.CheckReadiness(ctx))
}
