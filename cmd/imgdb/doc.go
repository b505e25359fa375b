// Package main provides the imgdb command line.
//
// imgdb catalogs the image files below a set of roots in a SQLite database.
// Each command runs one pass of the pipeline:
//
//	imgdb scan              reconcile the catalog with the filesystem
//	imgdb hash              SHA-256 content hash of new and changed files
//	imgdb dhash             perceptual difference hash per content hash
//	imgdb palette           color palette signature per content hash
//	imgdb ocr [--lang L]    recognized text per content hash and language
//	imgdb dedup             drop duplicate feature rows
//	imgdb run [--stages]    several passes in order
//
// Passes only touch rows that are missing, so running a command twice does
// nothing the second time. Ctrl+C stops a pass after the work already done
// has been committed; the command exits with status 130 and the next run
// resumes where it stopped.
//
// The serve command runs the full pipeline on an interval and exposes
// /healthz, /livez, /readyz, /version, /metrics, /api/stats and /api/run.
//
// Configuration is read from imgdbcfg.json (see package startup). Build
// information is injected with:
//
//	go build -ldflags "-X imgdb/internal/startup.Version=1.0.0 -X imgdb/internal/startup.Commit=$(git rev-parse HEAD)"
package main
