package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics (daemon mode only)
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgdb_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imgdb_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgdb_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgdb_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imgdb_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imgdb_db_transaction_duration_seconds",
			Help:    "Duration of catalog transactions from begin to commit or rollback",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 1800},
		},
		[]string{"outcome"},
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imgdb_db_rows_affected",
			Help:    "Rows affected by bulk catalog statements",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"operation"},
	)
)

// Pipeline stage metrics. The stage label is one of scan, hash, dhash,
// palette, ocr, dedup.
var (
	StageRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgdb_stage_runs_total",
			Help: "Total number of pipeline stage runs by outcome",
		},
		[]string{"stage", "outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imgdb_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"stage"},
	)

	StageLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "imgdb_stage_last_run_timestamp",
			Help: "Unix timestamp of the last completed run of each stage",
		},
		[]string{"stage"},
	)

	StageRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgdb_pipeline_running",
			Help: "Whether a pipeline run is in progress (1 = running, 0 = idle)",
		},
	)
)

// Scan and reconcile metrics
var (
	ScanFilesSeen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imgdb_scan_files_seen_total",
			Help: "Total number of files recorded into scan snapshots",
		},
	)

	ScanSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgdb_scan_skipped_total",
			Help: "Paths skipped during scans by reason",
		},
		[]string{"reason"},
	)

	ReconcileChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgdb_reconcile_changes_total",
			Help: "Catalog changes applied by reconciliation",
		},
		[]string{"kind"}, // "new", "changed", "deleted"
	)
)

// Hash and feature builder metrics
var (
	HashBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imgdb_hash_bytes_total",
			Help: "Total number of bytes streamed through the content digest",
		},
	)

	FeatureCandidates = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "imgdb_feature_candidates",
			Help: "Candidates selected by the most recent run of each builder",
		},
		[]string{"feature"},
	)

	FeatureResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgdb_feature_results_total",
			Help: "Feature computations by feature and status",
		},
		[]string{"feature", "status"}, // status: "built", "failed"
	)

	FeatureComputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imgdb_feature_compute_duration_seconds",
			Help:    "Per-image feature computation duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"feature"},
	)

	WorkerPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgdb_worker_pool_size",
			Help: "Number of workers in the most recently started pool",
		},
	)

	DedupDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgdb_dedup_deleted_total",
			Help: "Duplicate feature rows removed by the dedup pass",
		},
		[]string{"table"},
	)
)

// Catalog size gauges, refreshed by the Collector.
var (
	CatalogRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "imgdb_catalog_rows",
			Help: "Number of rows per catalog table",
		},
		[]string{"table"},
	)

	CatalogUnhashedFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgdb_catalog_unhashed_files",
			Help: "Number of files still waiting for a content hash",
		},
	)
)

// Memory backpressure metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgdb_memory_usage_ratio",
			Help: "Heap allocation as a ratio of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgdb_memory_paused",
			Help: "Whether image workers are paused for memory pressure (1 = paused)",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgdb_filesystem_retry_attempts_total",
			Help: "Total number of filesystem operation retry attempts",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgdb_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgdb_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgdb_filesystem_stale_errors_total",
			Help: "Stale file handle (ESTALE) errors observed",
		},
		[]string{"operation"},
	)
)

// InitializeMetrics pre-populates the expected label combinations so that
// every series is exported from the first scrape.
func InitializeMetrics() {
	for _, stage := range []string{"scan", "hash", "dhash", "palette", "ocr", "dedup"} {
		for _, outcome := range []string{"success", "error", "interrupted"} {
			StageRunsTotal.WithLabelValues(stage, outcome)
		}
		StageDuration.WithLabelValues(stage)
	}
	for _, kind := range []string{"new", "changed", "deleted"} {
		ReconcileChanges.WithLabelValues(kind)
	}
	for _, feature := range []string{"dhash", "palette", "ocr"} {
		FeatureResultsTotal.WithLabelValues(feature, "built")
		FeatureResultsTotal.WithLabelValues(feature, "failed")
		FeatureComputeDuration.WithLabelValues(feature)
	}
	for _, table := range []string{"files", "dhashes", "palettes", "ocr"} {
		CatalogRows.WithLabelValues(table)
	}
	for _, op := range []string{"stat", "open", "readdir"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}
}
