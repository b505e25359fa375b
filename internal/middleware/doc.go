// Package middleware provides HTTP middleware for the imgdb daemon: W3C
// access logging and Prometheus request metrics.
package middleware
