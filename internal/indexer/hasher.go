package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"imgdb/internal/database"
	"imgdb/internal/filesystem"
	"imgdb/internal/logging"
	"imgdb/internal/metrics"
)

// hashChunkSize is the read size used when streaming file contents.
const hashChunkSize = 10 << 20

// HashReport summarizes one hash pass.
type HashReport struct {
	Candidates  int  `json:"candidates"`
	Hashed      int  `json:"hashed"`
	Interrupted bool `json:"interrupted"`
}

// BuildHashes computes the content hash of every unhashed file. Files are
// processed sequentially and committed once. A read error rolls back the
// whole pass; an interruption commits the hashes computed so far and
// returns ErrInterrupted.
func (idx *Indexer) BuildHashes(ctx context.Context) (report HashReport, err error) {
	defer idx.track(StageHash, time.Now(), &err)

	dbCtx := context.WithoutCancel(ctx)

	batch, err := idx.store.Begin(dbCtx)
	if err != nil {
		return HashReport{}, err
	}

	// An interruption is reported to the caller but must still commit.
	var interruptErr error
	defer func() {
		err = batch.End(err)
		if err == nil && interruptErr != nil {
			err = interruptErr
		}
	}()

	files, err := batch.UnhashedFiles(dbCtx)
	if err != nil {
		return HashReport{}, fmt.Errorf("failed to list unhashed files: %w", err)
	}
	report.Candidates = len(files)
	logging.Info("Hashing %d file(s)", len(files))

	for i, f := range files {
		if ctx.Err() != nil {
			report.Interrupted = true
			interruptErr = interrupted(ctx)
			logging.Warn("Hashing interrupted after %d of %d file(s)", report.Hashed, len(files))
			return report, nil
		}

		digest, err := idx.hashFile(ctx, f.Path)
		if err != nil {
			if errors.Is(err, ErrInterrupted) {
				report.Interrupted = true
				interruptErr = err
				logging.Warn("Hashing interrupted after %d of %d file(s)", report.Hashed, len(files))
				return report, nil
			}
			return HashReport{}, fmt.Errorf("failed to hash %s: %w", f.Path, err)
		}

		if err := batch.SetHash(dbCtx, f.Path, database.Hashed(digest)); err != nil {
			return HashReport{}, err
		}
		report.Hashed++
		idx.progress(StageHash, i+1, len(files))
	}

	logging.Info("Hashed %d file(s)", report.Hashed)
	return report, nil
}

// hashFile streams path through SHA-256 and returns the hex digest. The
// context is checked between chunks.
func (idx *Indexer) hashFile(ctx context.Context, path string) (string, error) {
	file, err := filesystem.OpenWithRetry(path, idx.opts.Retry)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			logging.Warn("Failed to close %s: %v", path, cerr)
		}
	}()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	for {
		if ctx.Err() != nil {
			return "", interrupted(ctx)
		}

		n, err := file.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			metrics.HashBytesTotal.Add(float64(n))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
