package metrics

import (
	"context"
	"time"

	"imgdb/internal/logging"
)

// Stats holds catalog row counts.
type Stats struct {
	Files    int64
	Unhashed int64
	DHashes  int64
	Palettes int64
	Ocr      int64
}

// StatsFunc reads the current catalog counts.
type StatsFunc func(ctx context.Context) (Stats, error)

// Collector periodically collects catalog counts into gauges
type Collector struct {
	stats    StatsFunc
	interval time.Duration
	stopChan chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(stats StatsFunc, interval time.Duration) *Collector {
	return &Collector{
		stats:    stats,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.Collect(context.Background())

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Collect(context.Background())
		case <-c.stopChan:
			return
		}
	}
}

// Collect refreshes the catalog gauges once.
func (c *Collector) Collect(ctx context.Context) {
	if c.stats == nil {
		return
	}

	stats, err := c.stats(ctx)
	if err != nil {
		logging.Warn("Failed to collect catalog stats: %v", err)
		return
	}

	CatalogRows.WithLabelValues("files").Set(float64(stats.Files))
	CatalogRows.WithLabelValues("dhashes").Set(float64(stats.DHashes))
	CatalogRows.WithLabelValues("palettes").Set(float64(stats.Palettes))
	CatalogRows.WithLabelValues("ocr").Set(float64(stats.Ocr))
	CatalogUnhashedFiles.Set(float64(stats.Unhashed))

	logging.Debug("Metrics collected: files=%d, unhashed=%d, dhashes=%d, palettes=%d, ocr=%d",
		stats.Files, stats.Unhashed, stats.DHashes, stats.Palettes, stats.Ocr)
}
