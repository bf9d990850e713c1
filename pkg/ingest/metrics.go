package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	records        *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	deactivated    *prometheus.CounterVec
	lastRun        prometheus.Gauge
	runDuration    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evscope",
			Name:      "records_total",
			Help:      "Candidates reconciled, by source and outcome.",
		}, []string{"source", "outcome"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evscope",
			Name:      "source_failures_total",
			Help:      "Adapter fetches that failed.",
		}, []string{"source"}),
		deactivated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evscope",
			Name:      "deactivated_total",
			Help:      "Records deactivated by the sweeper, by reason.",
		}, []string{"reason"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "evscope",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "evscope",
			Name:      "run_duration_seconds",
			Help:      "Wall time of ingestion runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.records, m.sourceFailures, m.deactivated, m.lastRun, m.runDuration)
	}
	return m
}

func (m *Metrics) observeRecord(source string, o outcome) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(source, string(o)).Inc()
}

func (m *Metrics) observeSourceFailure(source string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) observeDeactivated(reason string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.deactivated.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) observeRun(finished time.Time, took time.Duration) {
	if m == nil {
		return
	}
	m.lastRun.Set(float64(finished.Unix()))
	m.runDuration.Observe(took.Seconds())
}
