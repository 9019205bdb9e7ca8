package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the hazard pipeline.
type Metrics struct {
	SimulationsCompleted prometheus.Counter
	SimulationsFailed    prometheus.Counter
	PipelineRunning      prometheus.Gauge

	// Track synthesis metrics.
	TracksGenerated prometheus.Counter
	TracksDropped   *prometheus.CounterVec // labels: reason={empty,died_early,filled,left_inner_domain}
	TracksPerUnit   prometheus.Histogram
	UnitDuration    prometheus.Histogram

	// Extreme value fitting metrics.
	CellsFitted *prometheus.CounterVec // labels: outcome={fitted,no_wind,insufficient_sample,no_convergence}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		SimulationsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cyclone_hazard",
			Name:      "simulations_completed_total",
			Help:      "Total simulation units merged into the hazard grid.",
		}),
		SimulationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cyclone_hazard",
			Name:      "simulations_failed_total",
			Help:      "Total simulation units that failed or timed out.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cyclone_hazard",
			Name:      "pipeline_running",
			Help:      "1 while a hazard run is active, 0 otherwise.",
		}),
		TracksGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cyclone_hazard",
			Name:      "tracks_generated_total",
			Help:      "Total synthetic tracks kept after filtering.",
		}),
		TracksDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cyclone_hazard",
			Name:      "tracks_dropped_total",
			Help:      "Synthetic tracks dropped by the track filters, by reason.",
		}, []string{"reason"}),
		TracksPerUnit: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cyclone_hazard",
			Name:      "tracks_per_unit",
			Help:      "Number of kept tracks per simulation unit.",
			Buckets:   []float64{1, 5, 10, 25, 50, 75, 100, 150, 250},
		}),
		UnitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cyclone_hazard",
			Name:      "unit_duration_seconds",
			Help:      "Duration of one simulation unit: track synthesis plus windfield evaluation.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		CellsFitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cyclone_hazard",
			Name:      "cells_fitted_total",
			Help:      "Grid cells processed by the extreme value fitter, by outcome.",
		}, []string{"outcome"}),
	}

	prometheus.MustRegister(
		m.SimulationsCompleted,
		m.SimulationsFailed,
		m.PipelineRunning,
		m.TracksGenerated,
		m.TracksDropped,
		m.TracksPerUnit,
		m.UnitDuration,
		m.CellsFitted,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		SimulationsCompleted: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cyclone_hazard", Name: "simulations_completed_total"}),
		SimulationsFailed:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cyclone_hazard", Name: "simulations_failed_total"}),
		PipelineRunning:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "cyclone_hazard", Name: "pipeline_running"}),
		TracksGenerated:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cyclone_hazard", Name: "tracks_generated_total"}),
		TracksDropped:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "cyclone_hazard", Name: "tracks_dropped_total"}, []string{"reason"}),
		TracksPerUnit:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "cyclone_hazard", Name: "tracks_per_unit"}),
		UnitDuration:         prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "cyclone_hazard", Name: "unit_duration_seconds"}),
		CellsFitted:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "cyclone_hazard", Name: "cells_fitted_total"}, []string{"outcome"}),
	}
}
