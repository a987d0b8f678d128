package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	configsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logregbench_configs_total",
		Help: "Solver configurations processed, by outcome (ran, skipped, failed).",
	}, []string{"outcome"})

	tracePointsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logregbench_trace_points_total",
		Help: "Convergence points evaluated across all runs.",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logregbench_runs_total",
		Help: "Benchmark runs by final state.",
	}, []string{"state"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "logregbench_run_duration_seconds",
		Help:    "Wall time of benchmark runs.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})

	runsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "logregbench_runs_active",
		Help: "Benchmark runs currently executing.",
	})
)
