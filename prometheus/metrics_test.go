package prometheus

import (
	"net/http/httptest"
	"testing"

	"github.com/fwojciec/simpledocs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsMirrorSnapshot(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.Observe(simpledocs.ProgressSnapshot{
		Status:             simpledocs.StatusEmbedding,
		URLsDiscovered:     12,
		URLsCrawled:        10,
		URLsFullyProcessed: 4,
		ChunksProcessed:    30,
		ChunksTotal:        50,
		URLsNew:            3,
		URLsUnchanged:      1,
	})

	assert.InDelta(t, 12.0, testutil.ToFloat64(m.urls.WithLabelValues("discovered")), 1e-9)
	assert.InDelta(t, 10.0, testutil.ToFloat64(m.urls.WithLabelValues("crawled")), 1e-9)
	assert.InDelta(t, 4.0, testutil.ToFloat64(m.urls.WithLabelValues("fully_processed")), 1e-9)
	assert.InDelta(t, 30.0, testutil.ToFloat64(m.chunks.WithLabelValues("processed")), 1e-9)
	assert.InDelta(t, 50.0, testutil.ToFloat64(m.chunks.WithLabelValues("total")), 1e-9)
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.pages.WithLabelValues("new")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.pages.WithLabelValues("unchanged")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.status.WithLabelValues("embedding")), 1e-9)
	assert.InDelta(t, 0.0, testutil.ToFloat64(m.status.WithLabelValues("crawling")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.updates), 1e-9)
}

func TestMetricsCountFinishedRunsOnce(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	for _, s := range []simpledocs.Status{
		simpledocs.StatusCrawling,
		simpledocs.StatusComplete,
		simpledocs.StatusComplete,
		simpledocs.StatusCrawling,
		simpledocs.StatusCancelled,
		simpledocs.StatusIdle,
	} {
		m.Observe(simpledocs.ProgressSnapshot{Status: s})
	}

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("complete")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("cancelled")), 1e-9)
}

func TestNewMetricsRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestHandlerServesMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	m.Observe(simpledocs.ProgressSnapshot{Status: simpledocs.StatusScraping, URLsCrawled: 2})

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `simpledocs_crawl_urls{stage="crawled"} 2`)
}
