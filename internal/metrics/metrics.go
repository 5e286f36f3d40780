// Package metrics provides Prometheus metrics for the downloader.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the downloader.
type Metrics struct {
	// Download metrics
	FilesDownloaded *prometheus.CounterVec
	FilesPresent    *prometheus.CounterVec
	FilesFailed     *prometheus.CounterVec

	// Listing metrics
	ListPages  *prometheus.CounterVec
	ListErrors *prometheus.CounterVec

	// Cycle metrics
	CheckpointAdvances *prometheus.CounterVec
	CycleDuration      *prometheus.HistogramVec
	NodesScanned       *prometheus.CounterVec
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // e.g. ":9090"
}

var defaultMetrics *Metrics

// Init initializes the metrics package with global metrics.
// Call this once at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mirror_downloader"
	}

	m := &Metrics{
		FilesDownloaded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_downloaded_total",
				Help:      "Total number of stream files freshly downloaded",
			},
			[]string{"stream", "node"},
		),
		FilesPresent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_already_present_total",
				Help:      "Total number of stream files skipped because they already existed locally",
			},
			[]string{"stream", "node"},
		),
		FilesFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_failed_total",
				Help:      "Total number of stream files that failed to download",
			},
			[]string{"stream", "node"},
		),
		ListPages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "list_pages_total",
				Help:      "Total number of listing pages fetched",
			},
			[]string{"stream"},
		),
		ListErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "list_errors_total",
				Help:      "Total number of listing calls that failed",
			},
			[]string{"stream"},
		),
		CheckpointAdvances: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkpoint_advances_total",
				Help:      "Total number of checkpoint advances persisted",
			},
			[]string{"stream"},
		),
		CycleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of one full download cycle",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"stream"},
		),
		NodesScanned: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_scanned_total",
				Help:      "Total number of per-node scans completed",
			},
			[]string{"stream"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// StartServer starts an HTTP server for Prometheus metrics scraping.
// Blocks until the server exits.
func StartServer(address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(address, mux)
}

// IncDownloaded increments the fresh-download counter.
func (m *Metrics) IncDownloaded(stream, node string) {
	m.FilesDownloaded.WithLabelValues(stream, node).Inc()
}

// IncPresent increments the already-present counter.
func (m *Metrics) IncPresent(stream, node string) {
	m.FilesPresent.WithLabelValues(stream, node).Inc()
}

// IncFailed increments the failed-download counter.
func (m *Metrics) IncFailed(stream, node string) {
	m.FilesFailed.WithLabelValues(stream, node).Inc()
}

// IncListPages increments the listing page counter.
func (m *Metrics) IncListPages(stream string) {
	m.ListPages.WithLabelValues(stream).Inc()
}

// IncListErrors increments the listing error counter.
func (m *Metrics) IncListErrors(stream string) {
	m.ListErrors.WithLabelValues(stream).Inc()
}

// IncCheckpointAdvances increments the checkpoint advance counter.
func (m *Metrics) IncCheckpointAdvances(stream string) {
	m.CheckpointAdvances.WithLabelValues(stream).Inc()
}

// ObserveCycleDuration records the duration of one cycle.
func (m *Metrics) ObserveCycleDuration(stream string, seconds float64) {
	m.CycleDuration.WithLabelValues(stream).Observe(seconds)
}

// IncNodesScanned increments the per-node scan counter.
func (m *Metrics) IncNodesScanned(stream string) {
	m.NodesScanned.WithLabelValues(stream).Inc()
}
