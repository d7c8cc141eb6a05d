package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the downloader service.
type Metrics struct {
	registry         *prometheus.Registry
	requestsTotal    prometheus.Counter
	downloadsTotal   prometheus.Counter
	conversionsTotal prometheus.Counter
	filesServedTotal prometheus.Counter
	filesSweptTotal  prometheus.Counter
	storedFiles      prometheus.Gauge
	errorsTotal      prometheus.Counter
}

// New creates and registers Prometheus metrics for the downloader.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ytfetch_requests_total",
		Help: "Total number of HTTP requests received",
	})
	downloadsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ytfetch_downloads_total",
		Help: "Total number of completed downloads",
	})
	conversionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ytfetch_conversions_total",
		Help: "Total number of completed audio conversions",
	})
	filesServedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ytfetch_files_served_total",
		Help: "Total number of stored files served to clients",
	})
	filesSweptTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ytfetch_files_swept_total",
		Help: "Total number of expired files removed by the sweeper",
	})
	storedFiles := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ytfetch_stored_files",
		Help: "Number of files currently in the storage directory",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ytfetch_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		requestsTotal,
		downloadsTotal,
		conversionsTotal,
		filesServedTotal,
		filesSweptTotal,
		storedFiles,
		errorsTotal,
	)

	return &Metrics{
		registry:         registry,
		requestsTotal:    requestsTotal,
		downloadsTotal:   downloadsTotal,
		conversionsTotal: conversionsTotal,
		filesServedTotal: filesServedTotal,
		filesSweptTotal:  filesSweptTotal,
		storedFiles:      storedFiles,
		errorsTotal:      errorsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncDownloads increments the completed downloads counter.
func (m *Metrics) IncDownloads() {
	m.downloadsTotal.Inc()
}

// IncConversions increments the completed conversions counter.
func (m *Metrics) IncConversions() {
	m.conversionsTotal.Inc()
}

// IncFilesServed increments the served files counter.
func (m *Metrics) IncFilesServed() {
	m.filesServedTotal.Inc()
}

// AddFilesSwept adds n to the swept files counter.
func (m *Metrics) AddFilesSwept(n int) {
	m.filesSweptTotal.Add(float64(n))
}

// SetStoredFiles sets the stored files gauge.
func (m *Metrics) SetStoredFiles(n int) {
	m.storedFiles.Set(float64(n))
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. stored files).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
