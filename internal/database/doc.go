// Package database provides the SQLite catalog behind imgdb.
//
// It stores:
//   - files: every cataloged image with size, ctime, mtime and content hash
//   - scanfiles: the transient snapshot of the most recent filesystem walk
//   - dhashes, palettes, ocr: features keyed by content hash
//
// All pipeline writes go through a Batch, one transaction per stage
// invocation, ended exactly once with Batch.End. The database uses WAL mode
// and is guarded by a process-level file lock so only one writer runs at a
// time.
package database
