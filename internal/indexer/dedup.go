package indexer

import (
	"context"
	"fmt"
	"time"

	"imgdb/internal/logging"
)

// DedupReport holds the number of duplicate rows removed per feature table.
type DedupReport struct {
	DHashes  int64 `json:"dhashes"`
	Palettes int64 `json:"palettes"`
	Ocr      int64 `json:"ocr"`
}

// Dedup keeps one row per content hash in each feature table (per hash and
// language for OCR) and deletes the rest, in one transaction.
func (idx *Indexer) Dedup(ctx context.Context) (report DedupReport, err error) {
	defer idx.track(StageDedup, time.Now(), &err)

	batch, err := idx.store.Begin(ctx)
	if err != nil {
		return DedupReport{}, err
	}
	defer func() {
		err = batch.End(err)
	}()

	if report.DHashes, err = batch.DedupDHashes(ctx); err != nil {
		return DedupReport{}, fmt.Errorf("failed to dedup dhashes: %w", err)
	}
	if report.Palettes, err = batch.DedupPalettes(ctx); err != nil {
		return DedupReport{}, fmt.Errorf("failed to dedup palettes: %w", err)
	}
	if report.Ocr, err = batch.DedupOcr(ctx); err != nil {
		return DedupReport{}, fmt.Errorf("failed to dedup ocr: %w", err)
	}

	logging.Info("Dedup removed %d dhash, %d palette and %d ocr row(s)",
		report.DHashes, report.Palettes, report.Ocr)
	return report, nil
}

// KillDHashes deletes every dhash row so the next pass rebuilds them.
func (idx *Indexer) KillDHashes(ctx context.Context) (int64, error) {
	return idx.kill(ctx, "dhashes", func(batch Batch) (int64, error) {
		return batch.KillDHashes(ctx)
	})
}

// KillPalettes deletes every palette row.
func (idx *Indexer) KillPalettes(ctx context.Context) (int64, error) {
	return idx.kill(ctx, "palettes", func(batch Batch) (int64, error) {
		return batch.KillPalettes(ctx)
	})
}

// KillOcr deletes OCR rows for lang, or for every language when lang is
// empty.
func (idx *Indexer) KillOcr(ctx context.Context, lang string) (int64, error) {
	return idx.kill(ctx, "ocr", func(batch Batch) (int64, error) {
		return batch.KillOcr(ctx, lang)
	})
}

func (idx *Indexer) kill(ctx context.Context, table string, fn func(Batch) (int64, error)) (n int64, err error) {
	batch, err := idx.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = batch.End(err)
	}()

	n, err = fn(batch)
	if err != nil {
		return 0, fmt.Errorf("failed to clear %s: %w", table, err)
	}
	logging.Info("Removed %d row(s) from %s", n, table)
	return n, nil
}
