package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"imgdb/internal/logging"
)

const (
	// EnvLimit is the container memory limit in bytes.
	EnvLimit = "IMGDB_MEMORY_LIMIT"

	// EnvRatio is the share of EnvLimit given to the Go heap.
	EnvRatio = "IMGDB_MEMORY_RATIO"

	// DefaultMemoryRatio leaves room for libvips and the text engine, which
	// allocate outside the Go heap.
	DefaultMemoryRatio = 0.85
)

// ConfigResult holds the result of memory configuration
type ConfigResult struct {
	// Configured indicates whether a Go memory limit is in effect
	Configured bool

	// Source is "GOMEMLIMIT", EnvLimit or "none"
	Source string

	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureFromEnv sets the Go memory limit from the environment. Call it
// early in main, before images are decoded.
//
// GOMEMLIMIT takes precedence. Otherwise IMGDB_MEMORY_LIMIT (bytes) times
// IMGDB_MEMORY_RATIO (default 0.85) becomes the limit.
func ConfigureFromEnv() ConfigResult {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		result := ConfigResult{Source: "GOMEMLIMIT"}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return result
	}

	limitStr := os.Getenv(EnvLimit)
	if limitStr == "" {
		logging.Debug("%s not set, Go memory limit not configured", EnvLimit)
		return ConfigResult{Source: "none"}
	}

	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 {
		logging.Warn("Invalid %s %q, Go memory limit not configured", EnvLimit, limitStr)
		return ConfigResult{Source: "none"}
	}

	ratio := DefaultMemoryRatio
	if ratioStr := os.Getenv(EnvRatio); ratioStr != "" {
		parsed, err := strconv.ParseFloat(ratioStr, 64)
		switch {
		case err != nil:
			logging.Warn("Failed to parse %s %q: %v, using default %.2f", EnvRatio, ratioStr, err, DefaultMemoryRatio)
		case parsed <= 0 || parsed > 1:
			logging.Warn("%s %q out of range (0.0-1.0), using default %.2f", EnvRatio, ratioStr, DefaultMemoryRatio)
		default:
			ratio = parsed
		}
	}

	goMemLimit := int64(float64(limit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		FormatBytes(goMemLimit), ratio*100, FormatBytes(limit))

	return ConfigResult{
		Configured:     true,
		Source:         EnvLimit,
		ContainerLimit: limit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}

// FormatBytes formats b with binary units.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
