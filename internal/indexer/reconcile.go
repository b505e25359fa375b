package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"imgdb/internal/database"
	"imgdb/internal/logging"
	"imgdb/internal/metrics"
)

// ReconcileReport lists the catalog paths changed by one scan.
type ReconcileReport struct {
	New     []string `json:"new"`
	Changed []string `json:"changed"`
	Deleted []string `json:"deleted"`
}

// Empty reports whether the scan changed nothing.
func (r ReconcileReport) Empty() bool {
	return len(r.New) == 0 && len(r.Changed) == 0 && len(r.Deleted) == 0
}

// Scan walks the roots into the snapshot and reconciles the catalog against
// it. The walk, the reconciliation and the snapshot clears run in one
// transaction: an error or an interruption leaves the catalog as it was.
func (idx *Indexer) Scan(ctx context.Context) (report ReconcileReport, err error) {
	defer idx.track(StageScan, time.Now(), &err)

	// Writes run on a context that outlives an interrupt so the store is
	// never left mid-statement; cancellation is observed by the walk.
	dbCtx := context.WithoutCancel(ctx)

	batch, err := idx.store.Begin(dbCtx)
	if err != nil {
		return ReconcileReport{}, err
	}
	defer func() {
		err = batch.End(err)
	}()

	if err := batch.ClearSnapshot(dbCtx); err != nil {
		return ReconcileReport{}, fmt.Errorf("failed to clear scan snapshot: %w", err)
	}

	logging.Info("Scanning %d root(s) for %v", len(idx.opts.Roots), idx.opts.Extensions.List())

	seen := 0
	err = idx.scanner.Walk(ctx, func(f database.SnapshotFile) error {
		if err := batch.AddSnapshotFile(dbCtx, f); err != nil {
			return fmt.Errorf("failed to record %s: %w", f.Path, err)
		}
		seen++
		idx.progress(StageScan, seen, 0)
		return nil
	})
	if err != nil {
		return ReconcileReport{}, err
	}
	logging.Info("Scan found %d file(s)", seen)

	report, err = reconcile(dbCtx, batch)
	if err != nil {
		return ReconcileReport{}, err
	}

	if err := batch.ClearSnapshot(dbCtx); err != nil {
		return ReconcileReport{}, fmt.Errorf("failed to clear scan snapshot: %w", err)
	}

	metrics.ReconcileChanges.WithLabelValues("new").Add(float64(len(report.New)))
	metrics.ReconcileChanges.WithLabelValues("changed").Add(float64(len(report.Changed)))
	metrics.ReconcileChanges.WithLabelValues("deleted").Add(float64(len(report.Deleted)))

	logging.Info("Reconciled catalog: %d new, %d changed, %d deleted",
		len(report.New), len(report.Changed), len(report.Deleted))
	return report, nil
}

// reconcile applies the snapshot to the catalog: new paths are inserted
// unhashed, changed paths get fresh metadata and lose their hash, and
// paths no longer on disk are removed.
func reconcile(ctx context.Context, batch Batch) (ReconcileReport, error) {
	var report ReconcileReport

	added, err := batch.NewFiles(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list new files: %w", err)
	}
	for _, f := range added {
		logging.Debug("New file: %s", f.Path)
		if err := batch.InsertFile(ctx, f); err != nil {
			return report, fmt.Errorf("failed to insert %s: %w", f.Path, err)
		}
	}

	deleted, err := batch.DeletedFiles(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list deleted files: %w", err)
	}
	for _, f := range deleted {
		logging.Debug("Deleted file: %s", f.Path)
		if err := batch.DeleteFile(ctx, f.Path); err != nil {
			return report, fmt.Errorf("failed to delete %s: %w", f.Path, err)
		}
	}

	changed, err := batch.ChangedFiles(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list changed files: %w", err)
	}
	for _, f := range changed {
		logging.Debug("Changed file: %s", f.Path)
		if err := batch.UpdateFileMetadata(ctx, f); err != nil {
			return report, fmt.Errorf("failed to update %s: %w", f.Path, err)
		}
	}

	report.New = lo.Map(added, func(f database.SnapshotFile, _ int) string { return f.Path })
	report.Changed = lo.Map(changed, func(f database.SnapshotFile, _ int) string { return f.Path })
	report.Deleted = lo.Map(deleted, func(f database.File, _ int) string { return f.Path })
	return report, nil
}
