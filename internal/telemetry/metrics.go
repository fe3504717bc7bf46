// Package telemetry provides application-level observability for the registry.
//
// All metrics are registered against the default Prometheus registry and served
// on the side-channel HTTP port started by main.go (default 9090, configured via
// FORGE_TELEMETRY_METRICS_PROMETHEUS_PORT). The endpoint is not part of the Gin
// router and is therefore never subject to rate limiting or auth middleware.
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/mods/:slug)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments such as mod slugs or version strings.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts processed requests by method, route template, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration is a latency histogram by method and route template.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

var (
	// ModUploadsTotal counts ingestion outcomes, labelled by result
	// ("created", "validation", "conflict", "internal").
	ModUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mod_uploads_total",
			Help: "Total number of mod package uploads, by outcome.",
		},
		[]string{"result"},
	)

	// ModDownloadsTotal counts CDN artifact downloads, labelled by download type
	// ("package", "dll").
	ModDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mod_downloads_total",
			Help: "Total number of mod artifact downloads served by the CDN endpoint.",
		},
		[]string{"type"},
	)

	// SearchSyncTotal counts search-index document upserts by the outbox drain
	// job, labelled by result ("ok", "error").
	SearchSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_sync_documents_total",
			Help: "Total number of search-index document upserts attempted by the sync job.",
		},
		[]string{"result"},
	)

	// SearchOutboxPending gauges the number of outbox rows awaiting indexing.
	SearchOutboxPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "search_outbox_pending",
			Help: "Number of search outbox rows currently awaiting indexing.",
		},
	)
)

// DBOpenConnections gauges open connections in the database/sql pool.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Number of open connections in the database pool.",
	},
)

// StartDBStatsCollector polls database pool statistics every 30 seconds and
// exports them as gauges. The goroutine runs for the life of the process.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			slog.Debug("db pool stats", "open", stats.OpenConnections, "in_use", stats.InUse, "idle", stats.Idle)
		}
	}()
}
