package database

import (
	"context"
	"errors"
	"fmt"

	"imgdb/internal/logging"
)

// ExportDocument reads the whole catalog into its interchange form. The
// scan snapshot is not exported.
func (d *Database) ExportDocument(ctx context.Context) (doc *Document, err error) {
	batch, err := d.BeginBatch(ctx)
	if err != nil {
		return nil, err
	}
	// Read-only: always roll back.
	defer func() {
		_ = batch.tx.Rollback()
	}()

	doc = &Document{}
	if doc.Files, err = batch.Files(ctx); err != nil {
		return nil, fmt.Errorf("failed to export files: %w", err)
	}
	if doc.DHashes, err = batch.DHashes(ctx); err != nil {
		return nil, fmt.Errorf("failed to export dhashes: %w", err)
	}
	if doc.Palettes, err = batch.Palettes(ctx); err != nil {
		return nil, fmt.Errorf("failed to export palettes: %w", err)
	}
	if doc.Ocr, err = batch.OcrRows(ctx); err != nil {
		return nil, fmt.Errorf("failed to export ocr: %w", err)
	}

	logging.Info("Exported %d files, %d dhashes, %d palettes, %d ocr rows",
		len(doc.Files), len(doc.DHashes), len(doc.Palettes), len(doc.Ocr))
	return doc, nil
}

// ImportDocument bulk-inserts every row of doc in one transaction. Files
// replace the cataloged entry with the same path; feature rows are appended
// and left for the dedup pass. Row ids in doc are ignored. A file with an
// empty digest is imported as Unhashed. Nothing is written when a row is
// invalid.
func (d *Database) ImportDocument(ctx context.Context, doc *Document) (err error) {
	if err := validateDocument(doc); err != nil {
		return fmt.Errorf("invalid document: %w", err)
	}

	batch, err := d.BeginBatch(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = batch.End(err)
	}()

	for _, f := range doc.Files {
		if digest, ok := f.Hash.Digest(); ok && digest == "" {
			f.Hash = Unhashed
		}
		if _, err = batch.exec(ctx, "import_file", `
			INSERT INTO files (path, size, ctime, mtime, hash) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				size = excluded.size,
				ctime = excluded.ctime,
				mtime = excluded.mtime,
				hash = excluded.hash
		`, f.Path, f.Size, toUnixNano(f.CTime), toUnixNano(f.MTime), f.Hash); err != nil {
			return fmt.Errorf("failed to import file %s: %w", f.Path, err)
		}
	}
	for _, f := range doc.DHashes {
		if err = batch.InsertDHash(ctx, f); err != nil {
			return fmt.Errorf("failed to import dhash %s: %w", f.Hash, err)
		}
	}
	for _, f := range doc.Palettes {
		if err = batch.InsertPalette(ctx, f); err != nil {
			return fmt.Errorf("failed to import palette %s: %w", f.Hash, err)
		}
	}
	for _, f := range doc.Ocr {
		if err = batch.InsertOcr(ctx, f); err != nil {
			return fmt.Errorf("failed to import ocr %s/%s: %w", f.Hash, f.Lang, err)
		}
	}

	logging.Info("Imported %d files, %d dhashes, %d palettes, %d ocr rows",
		len(doc.Files), len(doc.DHashes), len(doc.Palettes), len(doc.Ocr))
	return nil
}

// validateDocument rejects rows that would break content addressing: feature
// rows must carry a digest, OCR rows a language and files a path.
func validateDocument(doc *Document) error {
	if doc == nil {
		return errors.New("document is nil")
	}

	var errs []error
	for i, f := range doc.Files {
		if f.Path == "" {
			errs = append(errs, fmt.Errorf("files[%d]: empty path", i))
		}
	}
	for i, f := range doc.DHashes {
		if f.Hash == "" {
			errs = append(errs, fmt.Errorf("dhashes[%d]: empty hash", i))
		}
	}
	for i, f := range doc.Palettes {
		if f.Hash == "" {
			errs = append(errs, fmt.Errorf("palettes[%d]: empty hash", i))
		}
	}
	for i, f := range doc.Ocr {
		if f.Hash == "" {
			errs = append(errs, fmt.Errorf("ocr[%d]: empty hash", i))
		}
		if f.Lang == "" {
			errs = append(errs, fmt.Errorf("ocr[%d]: empty language", i))
		}
	}
	return errors.Join(errs...)
}
