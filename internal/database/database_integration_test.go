package database

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Integration tests for catalog operations with a real SQLite database

func setupTestDB(t testing.TB) (db *Database, dbPath string) {
	t.Helper()

	dbPath = filepath.Join(t.TempDir(), "test.db")

	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db, dbPath
}

// withBatch runs fn inside a batch and commits it.
func withBatch(t *testing.T, db *Database, fn func(b *Batch) error) {
	t.Helper()

	b, err := db.BeginBatch(context.Background())
	if err != nil {
		t.Fatalf("BeginBatch() error = %v", err)
	}
	if err := b.End(fn(b)); err != nil {
		t.Fatalf("batch failed: %v", err)
	}
}

func snap(path string, size int64, mtime time.Time) SnapshotFile {
	return SnapshotFile{Path: path, Size: size, CTime: mtime, MTime: mtime}
}

func TestNewDatabase(t *testing.T) {
	db, dbPath := setupTestDB(t)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}

	stats, err := db.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats != (Stats{}) {
		t.Errorf("Stats() on empty catalog = %+v, want zero", stats)
	}
}

func TestNewDatabaseLocked(t *testing.T) {
	_, dbPath := setupTestDB(t)

	_, err := New(context.Background(), dbPath)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("second New() error = %v, want ErrLocked", err)
	}
}

func TestCloseReleasesLock(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	first, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("New() after Close() error = %v", err)
	}
	_ = second.Close()
}

func TestReconcileQueries(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	t0 := time.Unix(1700000000, 123456789)
	t1 := t0.Add(time.Second)

	// Catalog holds A, B, C.
	withBatch(t, db, func(b *Batch) error {
		for _, p := range []string{"img/a.png", "img/b.png", "img/c.png"} {
			if err := b.InsertFile(ctx, snap(p, 10, t0)); err != nil {
				return err
			}
		}
		return nil
	})

	// Walk observes B (unchanged), C (touched) and D (new).
	withBatch(t, db, func(b *Batch) error {
		if err := b.ClearSnapshot(ctx); err != nil {
			return err
		}
		for _, f := range []SnapshotFile{snap("img/b.png", 10, t0), snap("img/c.png", 10, t1), snap("img/d.png", 5, t0)} {
			if err := b.AddSnapshotFile(ctx, f); err != nil {
				return err
			}
		}

		newFiles, err := b.NewFiles(ctx)
		if err != nil {
			return err
		}
		if len(newFiles) != 1 || newFiles[0].Path != "img/d.png" {
			t.Errorf("NewFiles() = %+v, want [img/d.png]", newFiles)
		}

		changed, err := b.ChangedFiles(ctx)
		if err != nil {
			return err
		}
		if len(changed) != 1 || changed[0].Path != "img/c.png" || !changed[0].MTime.Equal(t1) {
			t.Errorf("ChangedFiles() = %+v, want [img/c.png @ %v]", changed, t1)
		}

		deleted, err := b.DeletedFiles(ctx)
		if err != nil {
			return err
		}
		if len(deleted) != 1 || deleted[0].Path != "img/a.png" {
			t.Errorf("DeletedFiles() = %+v, want [img/a.png]", deleted)
		}
		return nil
	})
}

func TestTimestampsRoundTripExactly(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	mtime := time.Unix(1700000000, 987654321)

	withBatch(t, db, func(b *Batch) error {
		if err := b.InsertFile(ctx, snap("img/a.png", 1, mtime)); err != nil {
			return err
		}
		if err := b.AddSnapshotFile(ctx, snap("img/a.png", 1, mtime)); err != nil {
			return err
		}
		changed, err := b.ChangedFiles(ctx)
		if err != nil {
			return err
		}
		if len(changed) != 0 {
			t.Errorf("ChangedFiles() = %+v, want none for identical timestamps", changed)
		}
		return nil
	})
}

func TestUpdateFileMetadataResetsHash(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0)

	withBatch(t, db, func(b *Batch) error {
		if err := b.InsertFile(ctx, snap("img/a.png", 1, t0)); err != nil {
			return err
		}
		if err := b.SetHash(ctx, "img/a.png", Hashed("abc")); err != nil {
			return err
		}
		return b.UpdateFileMetadata(ctx, snap("img/a.png", 2, t0.Add(time.Minute)))
	})

	withBatch(t, db, func(b *Batch) error {
		unhashed, err := b.UnhashedFiles(ctx)
		if err != nil {
			return err
		}
		if len(unhashed) != 1 || unhashed[0].Size != 2 || unhashed[0].Hash.IsHashed() {
			t.Errorf("UnhashedFiles() = %+v, want img/a.png size 2 unhashed", unhashed)
		}
		return nil
	})
}

func TestUpdateMissingFileFails(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	b, err := db.BeginBatch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	err = b.UpdateFileMetadata(ctx, snap("img/missing.png", 1, time.Now()))
	if err == nil {
		t.Error("UpdateFileMetadata() on missing path succeeded, want error")
	}
	if endErr := b.End(err); endErr == nil {
		t.Error("End(err) = nil, want the original error")
	}
}

func TestRollbackDiscardsWrites(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	b, err := db.BeginBatch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.InsertFile(ctx, snap("img/a.png", 1, time.Now())); err != nil {
		t.Fatal(err)
	}
	wantErr := errors.New("read failed")
	if err := b.End(wantErr); !errors.Is(err, wantErr) {
		t.Fatalf("End() = %v, want %v", err, wantErr)
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Files != 0 {
		t.Errorf("Files = %d after rollback, want 0", stats.Files)
	}
}

func TestCandidatesGroupedByHash(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0)

	withBatch(t, db, func(b *Batch) error {
		for _, p := range []string{"img/a.png", "img/b.png", "img/c.png", "img/u.png"} {
			if err := b.InsertFile(ctx, snap(p, 3, t0)); err != nil {
				return err
			}
		}
		// a and b are byte-identical; u stays unhashed.
		if err := b.SetHash(ctx, "img/a.png", Hashed("h1")); err != nil {
			return err
		}
		if err := b.SetHash(ctx, "img/b.png", Hashed("h1")); err != nil {
			return err
		}
		if err := b.SetHash(ctx, "img/c.png", Hashed("h2")); err != nil {
			return err
		}
		return b.InsertPalette(ctx, PaletteFeature{Hash: "h2", Size: 3, Signature: "K"})
	})

	withBatch(t, db, func(b *Batch) error {
		dh, err := b.DHashCandidates(ctx)
		if err != nil {
			return err
		}
		if len(dh) != 2 || dh[0].Hash != "h1" || dh[0].Path != "img/a.png" || dh[1].Hash != "h2" {
			t.Errorf("DHashCandidates() = %+v, want h1 (img/a.png), h2", dh)
		}

		pal, err := b.PaletteCandidates(ctx)
		if err != nil {
			return err
		}
		if len(pal) != 1 || pal[0].Hash != "h1" {
			t.Errorf("PaletteCandidates() = %+v, want only h1", pal)
		}
		return nil
	})
}

func TestOcrCandidatesPerLanguage(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	withBatch(t, db, func(b *Batch) error {
		if err := b.InsertFile(ctx, snap("img/a.png", 3, time.Unix(1, 0))); err != nil {
			return err
		}
		if err := b.SetHash(ctx, "img/a.png", Hashed("h1")); err != nil {
			return err
		}
		return b.InsertOcr(ctx, OcrFeature{Hash: "h1", Size: 3, Lang: "eng", Text: "hello"})
	})

	withBatch(t, db, func(b *Batch) error {
		eng, err := b.OcrCandidates(ctx, "eng")
		if err != nil {
			return err
		}
		if len(eng) != 0 {
			t.Errorf("OcrCandidates(eng) = %+v, want none", eng)
		}
		deu, err := b.OcrCandidates(ctx, "deu")
		if err != nil {
			return err
		}
		if len(deu) != 1 {
			t.Errorf("OcrCandidates(deu) = %+v, want one", deu)
		}
		return nil
	})
}

func TestDedupKeepsOneRowPerKey(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	withBatch(t, db, func(b *Batch) error {
		for i := 0; i < 3; i++ {
			if err := b.InsertDHash(ctx, DHashFeature{Hash: "h1", Size: 1, HashSize: 8, Value: "00"}); err != nil {
				return err
			}
			if err := b.InsertPalette(ctx, PaletteFeature{Hash: "h1", Size: 1, Signature: "K"}); err != nil {
				return err
			}
			if err := b.InsertOcr(ctx, OcrFeature{Hash: "h1", Size: 1, Lang: "eng"}); err != nil {
				return err
			}
		}
		if err := b.InsertDHash(ctx, DHashFeature{Hash: "h2", Size: 1, HashSize: 8, Value: "ff"}); err != nil {
			return err
		}
		return b.InsertOcr(ctx, OcrFeature{Hash: "h1", Size: 1, Lang: "deu"})
	})

	withBatch(t, db, func(b *Batch) error {
		tests := []struct {
			name string
			fn   func(context.Context) (int64, error)
			want int64
		}{
			{"dhashes", b.DedupDHashes, 2},
			{"palettes", b.DedupPalettes, 2},
			{"ocr", b.DedupOcr, 2},
		}
		for _, tt := range tests {
			got, err := tt.fn(ctx)
			if err != nil {
				return err
			}
			if got != tt.want {
				t.Errorf("dedup %s deleted %d, want %d", tt.name, got, tt.want)
			}
		}

		dh, err := b.DHashes(ctx)
		if err != nil {
			return err
		}
		if len(dh) != 2 || dh[0].ID != 1 {
			t.Errorf("DHashes() after dedup = %+v, want lowest ids kept", dh)
		}

		again, err := b.DedupOcr(ctx)
		if err != nil {
			return err
		}
		if again != 0 {
			t.Errorf("second DedupOcr() deleted %d, want 0", again)
		}
		return nil
	})
}

func TestKillOcrByLanguage(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	withBatch(t, db, func(b *Batch) error {
		for _, lang := range []string{"eng", "eng", "deu"} {
			if err := b.InsertOcr(ctx, OcrFeature{Hash: "h", Lang: lang}); err != nil {
				return err
			}
		}
		n, err := b.KillOcr(ctx, "eng")
		if err != nil {
			return err
		}
		if n != 2 {
			t.Errorf("KillOcr(eng) = %d, want 2", n)
		}
		n, err = b.KillOcr(ctx, "")
		if err != nil {
			return err
		}
		if n != 1 {
			t.Errorf("KillOcr(\"\") = %d, want 1", n)
		}
		return nil
	})
}

func TestExportImportDocument(t *testing.T) {
	src, _ := setupTestDB(t)
	ctx := context.Background()
	t0 := time.Unix(1700000000, 42)

	withBatch(t, src, func(b *Batch) error {
		if err := b.InsertFile(ctx, snap("img/a.png", 7, t0)); err != nil {
			return err
		}
		if err := b.InsertFile(ctx, snap("img/b.png", 8, t0)); err != nil {
			return err
		}
		if err := b.SetHash(ctx, "img/a.png", Hashed("h1")); err != nil {
			return err
		}
		if err := b.InsertPalette(ctx, PaletteFeature{Hash: "h1", Size: 7, Signature: "RK"}); err != nil {
			return err
		}
		return b.InsertOcr(ctx, OcrFeature{Hash: "h1", Size: 7, Lang: "eng", Text: "hi\n"})
	})

	doc, err := src.ExportDocument(ctx)
	if err != nil {
		t.Fatalf("ExportDocument() error = %v", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Document
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	dst, _ := setupTestDB(t)
	if err := dst.ImportDocument(ctx, &decoded); err != nil {
		t.Fatalf("ImportDocument() error = %v", err)
	}

	stats, err := dst.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{Files: 2, Unhashed: 1, Palettes: 1, Ocr: 1}
	if stats != want {
		t.Errorf("Stats() after import = %+v, want %+v", stats, want)
	}

	back, err := dst.ExportDocument(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !back.Files[0].CTime.Equal(t0) {
		t.Errorf("imported ctime = %v, want %v", back.Files[0].CTime, t0)
	}
	if back.Files[1].Hash.IsHashed() {
		t.Errorf("img/b.png hash = %v, want unhashed", back.Files[1].Hash)
	}
}

func TestImportEmptyDigestIsUnhashed(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	data := []byte(`{
		"files": [
			{"path": "img/a.png", "size": 1, "hash": ""},
			{"path": "img/b.png", "size": 2, "hash": ""}
		]
	}`)
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	// A document built in code may carry the empty digest explicitly.
	doc.Files = append(doc.Files, File{Path: "img/c.png", Size: 3, Hash: Hashed("")})

	if err := db.ImportDocument(ctx, &doc); err != nil {
		t.Fatalf("ImportDocument() error = %v", err)
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Files != 3 || stats.Unhashed != 3 {
		t.Errorf("Stats() = %+v, want 3 files, 3 unhashed", stats)
	}

	b, err := db.BeginBatch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = b.End(errors.New("read only")) }()

	candidates, err := b.PaletteCandidates(ctx)
	if err != nil {
		t.Fatalf("PaletteCandidates() error = %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("PaletteCandidates() = %+v, want none", candidates)
	}
	unhashed, err := b.UnhashedFiles(ctx)
	if err != nil {
		t.Fatalf("UnhashedFiles() error = %v", err)
	}
	if len(unhashed) != 3 {
		t.Errorf("UnhashedFiles() = %d files, want 3", len(unhashed))
	}
}

func TestImportRejectsInvalidRows(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
	}{
		{"file without path", Document{Files: []File{{Size: 1}}}},
		{"dhash without hash", Document{DHashes: []DHashFeature{{Size: 1, HashSize: 8, Value: "00"}}}},
		{"palette without hash", Document{Palettes: []PaletteFeature{{Size: 1, Signature: "R"}}}},
		{"ocr without hash", Document{Ocr: []OcrFeature{{Size: 1, Lang: "eng", Text: "x"}}}},
		{"ocr without language", Document{Ocr: []OcrFeature{{Hash: "h1", Size: 1, Text: "x"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _ := setupTestDB(t)
			ctx := context.Background()

			doc := tt.doc
			doc.Files = append(doc.Files, File{Path: "img/ok.png", Size: 1, Hash: Hashed("h1")})

			if err := db.ImportDocument(ctx, &doc); err == nil {
				t.Fatal("ImportDocument() succeeded, want error")
			}

			stats, err := db.Stats(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if stats != (Stats{}) {
				t.Errorf("Stats() after rejected import = %+v, want empty catalog", stats)
			}
		})
	}

	db, _ := setupTestDB(t)
	if err := db.ImportDocument(context.Background(), nil); err == nil {
		t.Error("ImportDocument(nil) succeeded, want error")
	}
}
