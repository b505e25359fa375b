// Package logging provides a simple leveled logging interface for imgdb.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions, including skipped files
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the process
//
// The initial level comes from the LOG_LEVEL (or DEBUG) environment variable
// and can be overridden with [SetLevel], which the command line uses for its
// --log-level flag.
package logging
