package lib

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what a run did. A nil *Metrics records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	filesTotal    *prometheus.CounterVec
	mismatches    *prometheus.CounterVec
	schemaMatches *prometheus.CounterVec
	runDuration   prometheus.Gauge
	lastRun       prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		filesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carbon_resize_files_total",
			Help: "Whisper files processed, by result",
		}, []string{"result"}),
		mismatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carbon_resize_mismatches_total",
			Help: "Files whose configuration differs from the schemas, by first differing field",
		}, []string{"field"}),
		schemaMatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carbon_resize_schema_matches_total",
			Help: "Metrics resolved to a schema",
		}, []string{"registry", "schema"}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "carbon_resize_run_duration_seconds",
			Help: "Duration of the last run",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "carbon_resize_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

func (m *Metrics) ObserveOutcome(o Outcome) {
	if m == nil {
		return
	}
	m.filesTotal.WithLabelValues(string(o.Status)).Inc()
	if o.Mismatch != nil {
		m.mismatches.WithLabelValues(o.Mismatch.Field).Inc()
	}
	if o.Effective.StorageSchema != "" {
		m.schemaMatches.WithLabelValues("storage", o.Effective.StorageSchema).Inc()
	}
	if o.Effective.AggregationSchema != "" {
		m.schemaMatches.WithLabelValues("aggregation", o.Effective.AggregationSchema).Inc()
	}
}

func (m *Metrics) ObserveRun(took time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.runDuration.Set(took.Seconds())
	m.lastRun.Set(float64(finished.Unix()))
}

// WriteTextfile writes the metrics in the format read by node_exporter's
// textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
