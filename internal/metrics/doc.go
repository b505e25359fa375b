// Package metrics provides Prometheus instrumentation for imgdb.
//
// All metrics are prefixed with "imgdb_" and registered on the default
// registry through promauto. They are exposed over HTTP only when the
// pipeline runs in daemon mode (imgdb serve); one-shot commands still update
// them so that the code paths are identical.
//
// # Metric Categories
//
// Pipeline stages:
//   - StageRunsTotal, StageDuration, StageLastRunTimestamp by stage
//   - StageRunning while a pipeline run is in progress
//
// Scan and reconciliation:
//   - ScanFilesSeen, ScanSkipped by reason
//   - ReconcileChanges by kind (new, changed, deleted)
//
// Feature builders:
//   - FeatureCandidates, FeatureResultsTotal, FeatureComputeDuration by feature
//   - WorkerPoolSize, HashBytesTotal, DedupDeleted by table
//
// Catalog:
//   - CatalogRows by table and CatalogUnhashedFiles, refreshed by [Collector]
//
// Database and filesystem:
//   - DBQueryTotal, DBQueryDuration, DBTransactionDuration, DBRowsAffected
//   - FilesystemRetry* and FilesystemStaleErrors for ESTALE retries
//
// Call [InitializeMetrics] once at startup so every series exists before the
// first scrape.
package metrics
