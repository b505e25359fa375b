// Package memory keeps image decoding within the container's memory budget.
//
// [ConfigureFromEnv] derives GOMEMLIMIT from IMGDB_MEMORY_LIMIT (bytes, for
// example from the Kubernetes Downward API) and IMGDB_MEMORY_RATIO, leaving
// headroom for libvips and the text engine, which allocate outside the Go
// heap. An explicit GOMEMLIMIT always wins.
//
// A [Monitor] samples the heap and pauses the feature builder workers while
// usage sits above the critical water mark, resuming once it drops below
// the high water mark. Workers call [Monitor.Wait] before decoding each
// image.
package memory
