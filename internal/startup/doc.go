// Package startup handles configuration loading and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] reads a JSON or YAML file (default imgdbcfg.json) with viper.
// A missing file is created with the defaults. Supported keys:
//
//   - paths: Image roots to scan (default: [img])
//   - storeLocation: Catalog database file (default: imgdb.db)
//   - textEngineCommand: Text recognition command (default: [tesseract])
//   - excludedPaths: Directory prefixes or glob patterns to skip
//   - extensions: Image file extensions to catalog
//   - ocrLanguage: Default OCR language (default: eng)
//   - workers: Feature builder pool size, 0 for one per CPU
//   - listen: Address of the serve command (default: :8080)
//   - runInterval: Pipeline interval of the serve command (default: 30m)
//
// Every key can be overridden by an environment variable with the IMGDB_
// prefix, e.g. IMGDB_STORELOCATION. The legacy keys dbpath, tesscmd and
// excludePaths are still read when their current names are absent.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogConfig]: Banner, system information and effective configuration
//   - [LogDatabaseInit]: Catalog open timing
//   - [LogTextEngineInit]: Text engine availability
//   - [LogIndexerInit]: Pipeline interval and worker count
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
package startup
