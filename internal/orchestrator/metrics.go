package orchestrator

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes ingest-session counters/gauges for scraping. It is
// optional: an Orchestrator with a nil *Metrics simply skips
// recording, so callers that don't run a Prometheus exporter pay
// nothing. Field names mirror the RecordOperation/RecordDuration shape
// observed in the teacher's metrics recorder test suite
// (observability/metrics), backed here by real prometheus vectors
// rather than the teacher's in-memory test double.
type Metrics struct {
	stateTransitions *prometheus.CounterVec
	qualityBuckets   *prometheus.CounterVec
	filesDone        prometheus.Gauge
	filesTotal       prometheus.Gauge
}

// NewMetrics registers a Metrics set against reg. Pass
// prometheus.DefaultRegisterer for process-wide scraping, or a fresh
// prometheus.NewRegistry() in tests to avoid collisions between runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wkmp",
			Subsystem: "ingest",
			Name:      "state_transitions_total",
			Help:      "Count of workflow session state transitions by resulting state.",
		}, []string{"state"}),
		qualityBuckets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wkmp",
			Subsystem: "ingest",
			Name:      "passage_quality_bucket_total",
			Help:      "Count of completed passages by quality bucket.",
		}, []string{"bucket"}),
		filesDone: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wkmp",
			Subsystem: "ingest",
			Name:      "files_done",
			Help:      "Files completed in the current session.",
		}),
		filesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wkmp",
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Files discovered in the current session.",
		}),
	}
	reg.MustRegister(m.stateTransitions, m.qualityBuckets, m.filesDone, m.filesTotal)
	return m
}

func (m *Metrics) observeState(st State) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(string(st)).Inc()
}

func (m *Metrics) observeBucket(bucket string) {
	if m == nil {
		return
	}
	m.qualityBuckets.WithLabelValues(bucket).Inc()
}

func (m *Metrics) observeProgress(done, total int) {
	if m == nil {
		return
	}
	m.filesDone.Set(float64(done))
	m.filesTotal.Set(float64(total))
}
