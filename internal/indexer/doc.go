// Package indexer runs the incremental image indexing pipeline.
//
// A pipeline run consists of these stages, each one transaction against the
// catalog Store:
//   - Scan: walk the roots into the scan snapshot and reconcile the catalog
//     (new files inserted unhashed, changed files reset, deleted files removed)
//   - BuildHashes: SHA-256 content hash for every unhashed file
//   - BuildDHashes, BuildPalettes, BuildOcr: per-content-hash features
//     computed on a bounded worker pool
//   - Dedup: on demand, removes feature rows duplicated per content hash
//
// Features are keyed by content hash, so moving or copying a file never
// causes recomputation. Builders skip candidates that fail and keep going;
// when the context is cancelled they commit the results already received
// and return ErrInterrupted. An interrupted scan rolls back instead, since a
// partial snapshot would report files as deleted.
//
// Run executes stages in order with a single-flight guard; Start and Stop
// run the full pipeline periodically for daemon mode.
package indexer
