package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"imgdb/internal/logging"
	"imgdb/internal/metrics"
)

// Default timeout for database operations outside a batch
const defaultTimeout = 5 * time.Second

// ErrLocked is returned by New when another process holds the catalog.
var ErrLocked = errors.New("catalog is locked by another process")

// Database is the SQLite catalog.
type Database struct {
	db     *sql.DB
	dbPath string
	lock   *flock.Flock
}

// New opens (creating if needed) the catalog at dbPath and takes the
// process-level lock <dbPath>.lock. It fails with ErrLocked when another
// process already holds the lock.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	lock := flock.New(dbPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire catalog lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock: %s)", ErrLocked, lock.Path())
	}

	// Diagnose potential permission issues
	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// Use WAL mode and other optimizations
	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
		lock:   lock,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := d.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	-- Catalog of files on disk. hash is NULL until the content digest is built.
	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		size INTEGER NOT NULL DEFAULT 0,
		ctime INTEGER NOT NULL,
		mtime INTEGER NOT NULL,
		hash TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_files_hash ON files(hash);

	-- Transient snapshot of the most recent walk; empty outside a scan.
	CREATE TABLE IF NOT EXISTS scanfiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		size INTEGER NOT NULL DEFAULT 0,
		ctime INTEGER NOT NULL,
		mtime INTEGER NOT NULL
	);

	-- Feature tables are keyed by content hash. Uniqueness is restored by
	-- the dedup pass rather than by a constraint.
	CREATE TABLE IF NOT EXISTS dhashes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hash TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		hash_size INTEGER NOT NULL,
		dhash TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dhashes_hash ON dhashes(hash);

	CREATE TABLE IF NOT EXISTS palettes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hash TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		palette TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_palettes_hash ON palettes(hash);

	CREATE TABLE IF NOT EXISTS ocr (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hash TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		lang TEXT NOT NULL,
		text TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ocr_hash_lang ON ocr(hash, lang);
	`

	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// Path returns the location of the catalog file.
func (d *Database) Path() string {
	return d.dbPath
}

// Close closes the database connection and releases the catalog lock.
func (d *Database) Close() error {
	err := d.db.Close()
	if d.lock != nil {
		if unlockErr := d.lock.Unlock(); unlockErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to release catalog lock: %w", unlockErr))
		}
	}
	return err
}

// Batch is one catalog transaction. Every pipeline stage performs all of its
// writes through a single Batch and ends it exactly once.
type Batch struct {
	tx    *sql.Tx
	start time.Time
}

// BeginBatch starts a transaction for batch operations.
// The caller is responsible for calling End when done.
func (d *Database) BeginBatch(_ context.Context) (*Batch, error) {
	// Use background context - transaction lifetime is managed by End, not by
	// the caller's context. An interrupted stage still commits what it has.
	tx, err := d.db.BeginTx(context.Background(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	return &Batch{tx: tx, start: time.Now()}, nil
}

// End commits the batch when err is nil and rolls it back otherwise.
// A rollback failure is joined with err.
func (b *Batch) End(err error) error {
	duration := time.Since(b.start).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		rbErr := b.tx.Rollback()
		if rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// exec runs a write statement inside the batch and records query metrics.
func (b *Batch) exec(ctx context.Context, operation, query string, args ...any) (int64, error) {
	start := time.Now()
	result, err := b.tx.ExecContext(ctx, query, args...)
	recordQuery(operation, start, err)
	if err != nil {
		return 0, err
	}

	rows, err := result.RowsAffected()
	if err == nil && rows > 0 {
		metrics.DBRowsAffected.WithLabelValues(operation).Observe(float64(rows))
	}
	return rows, err
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	// Check main database file
	if dbInfo, err := os.Stat(dbPath); err == nil {
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", dbPath, dbInfo.Mode(), dbInfo.Size())
		if dbInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file is read-only! Mode: %v", dbInfo.Mode())
		}
	}

	// WAL and SHM files must be writable too or every commit fails
	for _, suffix := range []string{"-wal", "-shm"} {
		sidecar := dbPath + suffix
		info, err := os.Stat(sidecar)
		if err != nil {
			continue
		}
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s is read-only! Mode: %v - this will cause write failures", sidecar, info.Mode())
			if chmodErr := os.Chmod(sidecar, 0o600); chmodErr != nil {
				logging.Error("Failed to fix %s permissions: %v", sidecar, chmodErr)
			} else {
				logging.Info("Fixed %s permissions", sidecar)
			}
		}
	}

	return nil
}
