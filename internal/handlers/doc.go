// Package handlers provides the HTTP endpoints of the imgdb daemon.
//
// It includes handlers for:
//   - Health, liveness and readiness probes
//   - Build information and Prometheus metrics
//   - Catalog statistics and triggering a pipeline run
package handlers
