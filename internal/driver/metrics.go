package driver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks simulation work done by drivers.
type Metrics struct {
	simCalls       *prometheus.CounterVec
	tilesSimulated *prometheus.CounterVec
	batchDuration  *prometheus.HistogramVec
	activeRuns     prometheus.Gauge
}

// NewMetrics builds driver metrics and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		simCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imprint_sim_batch_calls_total",
				Help: "Total number of sim_batch calls by operation",
			},
			[]string{"operation"},
		),
		tilesSimulated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imprint_tiles_simulated_total",
				Help: "Total number of tiles simulated by operation",
			},
			[]string{"operation"},
		),
		batchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "imprint_sim_batch_duration_seconds",
				Help:    "Duration of one simulated sub-batch including reduction",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "imprint_active_runs",
				Help: "Number of driver calls in progress",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.simCalls, m.tilesSimulated, m.batchDuration, m.activeRuns)
	}
	return m
}

func (m *Metrics) observeBatch(operation string, tiles int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.simCalls.WithLabelValues(operation).Inc()
	m.tilesSimulated.WithLabelValues(operation).Add(float64(tiles))
	m.batchDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) runStarted() func() {
	if m == nil {
		return func() {}
	}
	m.activeRuns.Inc()
	return m.activeRuns.Dec
}
