package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matches(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matches(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.GetLabel()) != len(labels) {
		return false
	}
	for _, pair := range metric.GetLabel() {
		if labels[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}

func TestMetrics_Record(t *testing.T) {
	m := New("test")

	m.Lookup("organisation", LookupFetched, 3)
	m.Lookup("organisation", LookupFetched, 2)
	m.Lookup("organisation", LookupFailed, 0)
	m.CacheResult(true)
	m.CacheResult(false)
	m.CacheResult(false)
	m.RunFinished("completed", time.Second, 10)
	m.ObserveStage("Add geo data", StageSkipped, time.Millisecond)

	assert.Equal(t, 5.0, counterValue(t, m, "test_lookups_total", map[string]string{"category": "organisation", "outcome": "fetched"}))
	assert.Equal(t, 0.0, counterValue(t, m, "test_lookups_total", map[string]string{"category": "organisation", "outcome": "failed"}))
	assert.Equal(t, 1.0, counterValue(t, m, "test_dataset_cache_requests_total", map[string]string{"result": "hit"}))
	assert.Equal(t, 2.0, counterValue(t, m, "test_dataset_cache_requests_total", map[string]string{"result": "miss"}))
	assert.Equal(t, 1.0, counterValue(t, m, "test_runs_total", map[string]string{"outcome": "completed"}))
	assert.Equal(t, 10.0, counterValue(t, m, "test_rows_enriched_total", map[string]string{}))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Lookup("postcode", LookupCached, 1)
		m.CacheResult(true)
		m.RunFinished("failed", 0, 0)
		m.ObserveStage("x", StageOK, time.Second)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New("")
	m.CacheResult(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `grant_insights_dataset_cache_requests_total{result="hit"} 1`)
}
