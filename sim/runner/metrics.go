package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the Prometheus instrumentation of a Registry.
type Metrics struct {
	RunsSubmitted   prometheus.Counter
	RunsCompleted   prometheus.Counter
	RunsFailed      prometheus.Counter
	RunsActive      prometheus.Gauge
	EventsProcessed prometheus.Counter
	TradesTotal     prometheus.Counter
	VolumeTotal     prometheus.Counter
	RunWallSeconds  prometheus.Histogram
}

// NewMetrics registers the runner collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "lobsim_runs_submitted_total",
			Help: "Total simulation runs submitted",
		}),
		RunsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "lobsim_runs_completed_total",
			Help: "Simulation runs that finished successfully",
		}),
		RunsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "lobsim_runs_failed_total",
			Help: "Simulation runs that failed or were cancelled before starting",
		}),
		RunsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "lobsim_runs_active",
			Help: "Simulation runs currently executing",
		}),
		EventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "lobsim_events_processed_total",
			Help: "Agent intents processed across completed runs",
		}),
		TradesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "lobsim_trades_total",
			Help: "Trades executed across completed runs",
		}),
		VolumeTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "lobsim_volume_total",
			Help: "Traded quantity across completed runs",
		}),
		RunWallSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lobsim_run_wall_seconds",
			Help:    "Wall-clock duration of completed runs",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}
