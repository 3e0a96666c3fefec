// Package prometheus exports crawl progress as Prometheus metrics.
package prometheus

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/fwojciec/simpledocs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var statuses = []simpledocs.Status{
	simpledocs.StatusIdle,
	simpledocs.StatusCrawling,
	simpledocs.StatusScraping,
	simpledocs.StatusEmbedding,
	simpledocs.StatusComplete,
	simpledocs.StatusCancelled,
	simpledocs.StatusError,
}

// Metrics mirrors the latest progress snapshot into gauges and counts
// finished runs. Register Observe with a ProgressService.
type Metrics struct {
	urls    *prometheus.GaugeVec
	chunks  *prometheus.GaugeVec
	pages   *prometheus.GaugeVec
	status  *prometheus.GaugeVec
	runs    *prometheus.CounterVec
	updates prometheus.Counter

	mu   sync.Mutex
	last simpledocs.Status
}

// NewMetrics registers the collectors against reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		urls: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "simpledocs_crawl_urls",
			Help: "URLs of the current run partitioned by stage.",
		}, []string{"stage"}),
		chunks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "simpledocs_crawl_chunks",
			Help: "Document chunks of the current run partitioned by stage.",
		}, []string{"stage"}),
		pages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "simpledocs_crawl_pages",
			Help: "Stored pages of the current run partitioned by change result.",
		}, []string{"result"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "simpledocs_crawl_status",
			Help: "1 for the current crawl status, 0 otherwise.",
		}, []string{"status"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simpledocs_crawl_runs_total",
			Help: "Finished crawl runs partitioned by final status.",
		}, []string{"status"}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simpledocs_progress_updates_total",
			Help: "Progress snapshots published.",
		}),
		last: simpledocs.StatusIdle,
	}
	for _, collector := range []prometheus.Collector{m.urls, m.chunks, m.pages, m.status, m.runs, m.updates} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return m, nil
}

// Observe records a snapshot. A run is counted once, on the first
// snapshot that reaches a terminal status.
func (m *Metrics) Observe(snap simpledocs.ProgressSnapshot) {
	m.updates.Inc()

	m.urls.WithLabelValues("discovered").Set(float64(snap.URLsDiscovered))
	m.urls.WithLabelValues("crawled").Set(float64(snap.URLsCrawled))
	m.urls.WithLabelValues("fully_processed").Set(float64(snap.URLsFullyProcessed))
	m.chunks.WithLabelValues("processed").Set(float64(snap.ChunksProcessed))
	m.chunks.WithLabelValues("total").Set(float64(snap.ChunksTotal))
	m.pages.WithLabelValues("new").Set(float64(snap.URLsNew))
	m.pages.WithLabelValues("updated").Set(float64(snap.URLsUpdated))
	m.pages.WithLabelValues("unchanged").Set(float64(snap.URLsUnchanged))

	for _, s := range statuses {
		v := 0.0
		if s == snap.Status {
			v = 1
		}
		m.status.WithLabelValues(string(s)).Set(v)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.Status.Terminal() && !m.last.Terminal() {
		m.runs.WithLabelValues(string(snap.Status)).Inc()
	}
	m.last = snap.Status
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
