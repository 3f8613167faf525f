package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smarty_engine_cycles_total",
		Help: "Completed scheduler cycles.",
	})
	cycleOverruns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smarty_engine_cycle_overruns_total",
		Help: "Cycles that exceeded the target cycle time.",
	})
	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "smarty_engine_cycle_duration_seconds",
		Help:    "Wall time of one full P1/P2/P3 cycle.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})
	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smarty_engine_phase_duration_seconds",
		Help:    "Wall time per scheduler phase.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5},
	}, []string{"phase"})
	pointsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smarty_engine_points_processed_total",
		Help: "Points resolved during refresh phases.",
	})
	programRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smarty_engine_program_runs_total",
		Help: "FBD and script program executions.",
	}, []string{"kind", "status"})
	alarmsRaised = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smarty_engine_alarms_raised_total",
		Help: "Alarms newly raised by the refresh phase.",
	})
	storeRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smarty_engine_store_retries_total",
		Help: "Persistence operations that needed a retry.",
	})
)
