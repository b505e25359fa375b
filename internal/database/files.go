package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ClearSnapshot empties the scan snapshot.
func (b *Batch) ClearSnapshot(ctx context.Context) error {
	_, err := b.exec(ctx, "clear_snapshot", "DELETE FROM scanfiles")
	return err
}

// AddSnapshotFile records a file observed by the walk. A path seen twice
// (overlapping roots) keeps the last observation.
func (b *Batch) AddSnapshotFile(ctx context.Context, f SnapshotFile) error {
	_, err := b.exec(ctx, "add_snapshot_file", `
		INSERT INTO scanfiles (path, size, ctime, mtime) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			ctime = excluded.ctime,
			mtime = excluded.mtime
	`, f.Path, f.Size, toUnixNano(f.CTime), toUnixNano(f.MTime))
	return err
}

// NewFiles returns snapshot entries whose path is not cataloged.
func (b *Batch) NewFiles(ctx context.Context) ([]SnapshotFile, error) {
	return b.querySnapshot(ctx, "new_files", `
		SELECT s.path, s.size, s.ctime, s.mtime
		FROM scanfiles s
		WHERE NOT EXISTS (SELECT 1 FROM files f WHERE f.path = s.path)
		ORDER BY s.path
	`)
}

// ChangedFiles returns snapshot entries whose cataloged size, ctime or mtime
// differ from what the walk observed.
func (b *Batch) ChangedFiles(ctx context.Context) ([]SnapshotFile, error) {
	return b.querySnapshot(ctx, "changed_files", `
		SELECT s.path, s.size, s.ctime, s.mtime
		FROM scanfiles s
		JOIN files f ON f.path = s.path
		WHERE f.size != s.size OR f.ctime != s.ctime OR f.mtime != s.mtime
		ORDER BY s.path
	`)
}

// DeletedFiles returns cataloged files absent from the snapshot.
func (b *Batch) DeletedFiles(ctx context.Context) ([]File, error) {
	return b.queryFiles(ctx, "deleted_files", `
		SELECT f.id, f.path, f.size, f.ctime, f.mtime, f.hash
		FROM files f
		WHERE NOT EXISTS (SELECT 1 FROM scanfiles s WHERE s.path = f.path)
		ORDER BY f.path
	`)
}

// InsertFile catalogs a new file as Unhashed.
func (b *Batch) InsertFile(ctx context.Context, f SnapshotFile) error {
	_, err := b.exec(ctx, "insert_file",
		"INSERT INTO files (path, size, ctime, mtime, hash) VALUES (?, ?, ?, ?, NULL)",
		f.Path, f.Size, toUnixNano(f.CTime), toUnixNano(f.MTime),
	)
	return err
}

// UpdateFileMetadata overwrites a file's metadata and resets it to Unhashed.
func (b *Batch) UpdateFileMetadata(ctx context.Context, f SnapshotFile) error {
	rows, err := b.exec(ctx, "update_file",
		"UPDATE files SET size = ?, ctime = ?, mtime = ?, hash = NULL WHERE path = ?",
		f.Size, toUnixNano(f.CTime), toUnixNano(f.MTime), f.Path,
	)
	if err == nil && rows == 0 {
		return fmt.Errorf("file not cataloged: %s", f.Path)
	}
	return err
}

// DeleteFile removes a file from the catalog. Feature rows keyed by its hash
// are left in place.
func (b *Batch) DeleteFile(ctx context.Context, path string) error {
	_, err := b.exec(ctx, "delete_file", "DELETE FROM files WHERE path = ?", path)
	return err
}

// UnhashedFiles returns every file without a content hash.
func (b *Batch) UnhashedFiles(ctx context.Context) ([]File, error) {
	return b.queryFiles(ctx, "unhashed_files", `
		SELECT id, path, size, ctime, mtime, hash
		FROM files
		WHERE hash IS NULL
		ORDER BY path
	`)
}

// SetHash records the content hash of a cataloged file.
func (b *Batch) SetHash(ctx context.Context, path string, hash ContentHash) error {
	rows, err := b.exec(ctx, "set_hash", "UPDATE files SET hash = ? WHERE path = ?", hash, path)
	if err == nil && rows == 0 {
		return fmt.Errorf("file not cataloged: %s", path)
	}
	return err
}

// Files returns every cataloged file ordered by path.
func (b *Batch) Files(ctx context.Context) ([]File, error) {
	return b.queryFiles(ctx, "list_files", `
		SELECT id, path, size, ctime, mtime, hash
		FROM files
		ORDER BY path
	`)
}

func (b *Batch) querySnapshot(ctx context.Context, operation, query string, args ...any) ([]SnapshotFile, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(operation, start, err) }()

	rows, err := b.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []SnapshotFile
	for rows.Next() {
		var f SnapshotFile
		var ctime, mtime int64
		if err = rows.Scan(&f.Path, &f.Size, &ctime, &mtime); err != nil {
			return nil, err
		}
		f.CTime = fromUnixNano(ctime)
		f.MTime = fromUnixNano(mtime)
		files = append(files, f)
	}
	err = rows.Err()
	return files, err
}

func (b *Batch) queryFiles(ctx context.Context, operation, query string, args ...any) ([]File, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(operation, start, err) }()

	rows, err := b.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files, err := scanFiles(rows)
	return files, err
}

func scanFiles(rows *sql.Rows) ([]File, error) {
	var files []File
	for rows.Next() {
		var f File
		var ctime, mtime int64
		if err := rows.Scan(&f.ID, &f.Path, &f.Size, &ctime, &mtime, &f.Hash); err != nil {
			return nil, err
		}
		f.CTime = fromUnixNano(ctime)
		f.MTime = fromUnixNano(mtime)
		files = append(files, f)
	}
	return files, rows.Err()
}
