package indexer

import (
	"context"
	"errors"
	"fmt"

	"imgdb/internal/database"
)

// ErrInterrupted is returned when a stage stopped because its context was
// cancelled. Work completed before the interruption has been committed
// (except for scans, which leave the catalog untouched).
var ErrInterrupted = errors.New("operation interrupted")

// ErrBusy is returned by Run when another pipeline run is in progress.
var ErrBusy = errors.New("pipeline run already in progress")

// Batch is one catalog transaction. A stage performs all of its writes
// through a single Batch and ends it exactly once.
type Batch interface {
	ClearSnapshot(ctx context.Context) error
	AddSnapshotFile(ctx context.Context, f database.SnapshotFile) error
	NewFiles(ctx context.Context) ([]database.SnapshotFile, error)
	ChangedFiles(ctx context.Context) ([]database.SnapshotFile, error)
	DeletedFiles(ctx context.Context) ([]database.File, error)
	InsertFile(ctx context.Context, f database.SnapshotFile) error
	UpdateFileMetadata(ctx context.Context, f database.SnapshotFile) error
	DeleteFile(ctx context.Context, path string) error

	UnhashedFiles(ctx context.Context) ([]database.File, error)
	SetHash(ctx context.Context, path string, hash database.ContentHash) error

	DHashCandidates(ctx context.Context) ([]database.Candidate, error)
	PaletteCandidates(ctx context.Context) ([]database.Candidate, error)
	OcrCandidates(ctx context.Context, lang string) ([]database.Candidate, error)
	InsertDHash(ctx context.Context, f database.DHashFeature) error
	InsertPalette(ctx context.Context, f database.PaletteFeature) error
	InsertOcr(ctx context.Context, f database.OcrFeature) error

	KillDHashes(ctx context.Context) (int64, error)
	KillPalettes(ctx context.Context) (int64, error)
	KillOcr(ctx context.Context, lang string) (int64, error)
	DedupDHashes(ctx context.Context) (int64, error)
	DedupPalettes(ctx context.Context) (int64, error)
	DedupOcr(ctx context.Context) (int64, error)

	// End commits when err is nil and rolls back otherwise, returning err
	// (joined with any rollback failure).
	End(err error) error
}

// Store opens catalog transactions.
type Store interface {
	Begin(ctx context.Context) (Batch, error)
	Stats(ctx context.Context) (database.Stats, error)
}

type catalogStore struct {
	db *database.Database
}

// NewCatalogStore adapts the SQLite catalog to Store.
func NewCatalogStore(db *database.Database) Store {
	return catalogStore{db: db}
}

func (s catalogStore) Begin(ctx context.Context) (Batch, error) {
	batch, err := s.db.BeginBatch(ctx)
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (s catalogStore) Stats(ctx context.Context) (database.Stats, error) {
	return s.db.Stats(ctx)
}

// interrupted wraps the cancellation cause of ctx in ErrInterrupted.
func interrupted(ctx context.Context) error {
	return fmt.Errorf("%w: %v", ErrInterrupted, context.Cause(ctx))
}
