package orchestrator

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordStateAndBucketCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.observeState(StateSegmenting)
	m.observeState(StateSegmenting)
	m.observeBucket("high")

	families, err := reg.Gather()
	require.NoError(t, err)

	var stateCount, bucketCount float64
	for _, fam := range families {
		switch fam.GetName() {
		case "wkmp_ingest_state_transitions_total":
			stateCount = sumCounter(fam)
		case "wkmp_ingest_passage_quality_bucket_total":
			bucketCount = sumCounter(fam)
		}
	}
	require.Equal(t, float64(2), stateCount)
	require.Equal(t, float64(1), bucketCount)
}

func TestNilMetricsIsANoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.observeState(StateSegmenting)
		m.observeBucket("high")
		m.observeProgress(1, 2)
	})
}

func sumCounter(fam *dto.MetricFamily) float64 {
	var total float64
	for _, metric := range fam.GetMetric() {
		total += metric.GetCounter().GetValue()
	}
	return total
}
