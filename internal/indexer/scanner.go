package indexer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/samber/lo"

	"imgdb/internal/database"
	"imgdb/internal/filesystem"
	"imgdb/internal/logging"
	"imgdb/internal/mediatypes"
	"imgdb/internal/metrics"
)

// Scanner walks the configured roots and reports every cataloged file.
type Scanner struct {
	roots      []string
	excluded   []string
	patterns   []string
	extensions mediatypes.Extensions
	retry      filesystem.RetryConfig
}

// NewScanner creates a Scanner. Excluded entries containing glob
// metacharacters are matched as doublestar patterns against directory
// paths; all others exclude the directory and everything below it.
func NewScanner(roots, excluded []string, extensions mediatypes.Extensions, retry filesystem.RetryConfig) *Scanner {
	patterns, prefixes := lo.FilterReject(excluded, func(entry string, _ int) bool {
		return strings.ContainsAny(entry, "*?[{")
	})

	return &Scanner{
		roots: roots,
		excluded: lo.Map(prefixes, func(entry string, _ int) string {
			return filepath.Clean(entry)
		}),
		patterns:   patterns,
		extensions: extensions,
		retry:      retry,
	}
}

// IsExcluded reports whether dir lies under an excluded path. Prefixes are
// compared path component by path component.
func (s *Scanner) IsExcluded(dir string) bool {
	dir = filepath.Clean(dir)
	for _, prefix := range s.excluded {
		if dir == prefix || strings.HasPrefix(dir, prefix+string(filepath.Separator)) {
			return true
		}
	}

	for _, pattern := range s.patterns {
		if matched, err := doublestar.PathMatch(pattern, dir); err == nil && matched {
			return true
		}
	}
	return false
}

// Walk visits every root top-down and calls fn for each regular file with
// an allowed extension. Excluded directories are pruned before descending.
// Unreadable directories and files that vanish before they can be stat'ed
// are logged and skipped. Walk stops with ErrInterrupted when ctx is done,
// or with the first error returned by fn.
func (s *Scanner) Walk(ctx context.Context, fn func(database.SnapshotFile) error) error {
	for _, root := range s.roots {
		if err := s.walkDir(ctx, root, fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) walkDir(ctx context.Context, dir string, fn func(database.SnapshotFile) error) error {
	if ctx.Err() != nil {
		return interrupted(ctx)
	}

	if s.IsExcluded(dir) {
		logging.Debug("Skipping excluded directory: %s", dir)
		metrics.ScanSkipped.WithLabelValues("excluded").Inc()
		return nil
	}

	entries, err := filesystem.ReadDirWithRetry(dir, s.retry)
	if err != nil {
		logging.Warn("Error reading directory %s: %v", dir, err)
		metrics.ScanSkipped.WithLabelValues("unreadable").Inc()
		return nil
	}

	var subdirs []string
	for _, entry := range entries {
		if ctx.Err() != nil {
			return interrupted(ctx)
		}

		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			subdirs = append(subdirs, path)
			continue
		}
		if !s.extensions.Match(entry.Name()) {
			continue
		}

		file, ok := s.statFile(path)
		if !ok {
			continue
		}
		if err := fn(file); err != nil {
			return err
		}
		metrics.ScanFilesSeen.Inc()
	}

	for _, sub := range subdirs {
		if err := s.walkDir(ctx, sub, fn); err != nil {
			return err
		}
	}
	return nil
}

// statFile stats path, following symlinks. Non-regular files and files
// that disappeared since the directory was listed are skipped.
func (s *Scanner) statFile(path string) (database.SnapshotFile, bool) {
	info, err := filesystem.StatWithRetry(path, s.retry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Warn("File %s not found", path)
			metrics.ScanSkipped.WithLabelValues("vanished").Inc()
		} else {
			logging.Warn("Error getting info for %s: %v", path, err)
			metrics.ScanSkipped.WithLabelValues("stat_error").Inc()
		}
		return database.SnapshotFile{}, false
	}
	if !info.Mode().IsRegular() {
		return database.SnapshotFile{}, false
	}

	return snapshotOf(path, info), true
}

func snapshotOf(path string, info os.FileInfo) database.SnapshotFile {
	return database.SnapshotFile{
		Path:  path,
		Size:  info.Size(),
		CTime: filesystem.ChangeTime(info),
		MTime: info.ModTime(),
	}
}
