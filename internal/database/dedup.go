package database

import (
	"context"

	"imgdb/internal/metrics"
)

// DedupDHashes keeps the lowest-id dhash row per content hash and deletes the rest.
func (b *Batch) DedupDHashes(ctx context.Context) (int64, error) {
	return b.dedup(ctx, "dhashes", `
		DELETE FROM dhashes
		WHERE id NOT IN (SELECT MIN(id) FROM dhashes GROUP BY hash)
	`)
}

// DedupPalettes keeps the lowest-id palette row per content hash and deletes the rest.
func (b *Batch) DedupPalettes(ctx context.Context) (int64, error) {
	return b.dedup(ctx, "palettes", `
		DELETE FROM palettes
		WHERE id NOT IN (SELECT MIN(id) FROM palettes GROUP BY hash)
	`)
}

// DedupOcr keeps the lowest-id OCR row per (hash, lang) and deletes the rest.
func (b *Batch) DedupOcr(ctx context.Context) (int64, error) {
	return b.dedup(ctx, "ocr", `
		DELETE FROM ocr
		WHERE id NOT IN (SELECT MIN(id) FROM ocr GROUP BY hash, lang)
	`)
}

func (b *Batch) dedup(ctx context.Context, table, query string) (int64, error) {
	deleted, err := b.exec(ctx, "dedup_"+table, query)
	if err != nil {
		return 0, err
	}
	metrics.DedupDeleted.WithLabelValues(table).Add(float64(deleted))
	return deleted, nil
}
