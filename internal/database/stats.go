package database

import (
	"context"
	"fmt"
	"time"
)

// Stats returns the current catalog row counts.
func (d *Database) Stats(ctx context.Context) (Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("stats", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var s Stats
	err = d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM files),
			(SELECT COUNT(*) FROM files WHERE hash IS NULL),
			(SELECT COUNT(*) FROM dhashes),
			(SELECT COUNT(*) FROM palettes),
			(SELECT COUNT(*) FROM ocr)
	`).Scan(&s.Files, &s.Unhashed, &s.DHashes, &s.Palettes, &s.Ocr)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count catalog rows: %w", err)
	}
	return s, nil
}
