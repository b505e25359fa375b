package database

import (
	"context"
	"time"
)

// Candidate queries select one representative file per content hash that has
// no feature row yet. Unhashed files are never candidates.
const (
	dhashCandidatesQuery = `
		SELECT f.hash, MIN(f.path), f.size
		FROM files f
		WHERE f.hash IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM dhashes d WHERE d.hash = f.hash)
		GROUP BY f.hash
		ORDER BY MIN(f.path)
	`

	paletteCandidatesQuery = `
		SELECT f.hash, MIN(f.path), f.size
		FROM files f
		WHERE f.hash IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM palettes p WHERE p.hash = f.hash)
		GROUP BY f.hash
		ORDER BY MIN(f.path)
	`

	ocrCandidatesQuery = `
		SELECT f.hash, MIN(f.path), f.size
		FROM files f
		WHERE f.hash IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM ocr o WHERE o.hash = f.hash AND o.lang = ?)
		GROUP BY f.hash
		ORDER BY MIN(f.path)
	`
)

// DHashCandidates returns hashed files without a dhash row.
func (b *Batch) DHashCandidates(ctx context.Context) ([]Candidate, error) {
	return b.queryCandidates(ctx, "dhash_candidates", dhashCandidatesQuery)
}

// PaletteCandidates returns hashed files without a palette row.
func (b *Batch) PaletteCandidates(ctx context.Context) ([]Candidate, error) {
	return b.queryCandidates(ctx, "palette_candidates", paletteCandidatesQuery)
}

// OcrCandidates returns hashed files without an OCR row for lang.
func (b *Batch) OcrCandidates(ctx context.Context, lang string) ([]Candidate, error) {
	return b.queryCandidates(ctx, "ocr_candidates", ocrCandidatesQuery, lang)
}

// InsertDHash stores a dhash row.
func (b *Batch) InsertDHash(ctx context.Context, f DHashFeature) error {
	_, err := b.exec(ctx, "insert_dhash",
		"INSERT INTO dhashes (hash, size, hash_size, dhash) VALUES (?, ?, ?, ?)",
		f.Hash, f.Size, f.HashSize, f.Value,
	)
	return err
}

// InsertPalette stores a palette row.
func (b *Batch) InsertPalette(ctx context.Context, f PaletteFeature) error {
	_, err := b.exec(ctx, "insert_palette",
		"INSERT INTO palettes (hash, size, palette) VALUES (?, ?, ?)",
		f.Hash, f.Size, f.Signature,
	)
	return err
}

// InsertOcr stores an OCR row.
func (b *Batch) InsertOcr(ctx context.Context, f OcrFeature) error {
	_, err := b.exec(ctx, "insert_ocr",
		"INSERT INTO ocr (hash, size, lang, text) VALUES (?, ?, ?, ?)",
		f.Hash, f.Size, f.Lang, f.Text,
	)
	return err
}

// KillDHashes deletes every dhash row.
func (b *Batch) KillDHashes(ctx context.Context) (int64, error) {
	return b.exec(ctx, "kill_dhashes", "DELETE FROM dhashes")
}

// KillPalettes deletes every palette row.
func (b *Batch) KillPalettes(ctx context.Context) (int64, error) {
	return b.exec(ctx, "kill_palettes", "DELETE FROM palettes")
}

// KillOcr deletes OCR rows for lang, or for every language when lang is empty.
func (b *Batch) KillOcr(ctx context.Context, lang string) (int64, error) {
	if lang == "" {
		return b.exec(ctx, "kill_ocr", "DELETE FROM ocr")
	}
	return b.exec(ctx, "kill_ocr", "DELETE FROM ocr WHERE lang = ?", lang)
}

// DHashes returns every dhash row ordered by id.
func (b *Batch) DHashes(ctx context.Context) ([]DHashFeature, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_dhashes", start, err) }()

	rows, err := b.tx.QueryContext(ctx, "SELECT id, hash, size, hash_size, dhash FROM dhashes ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DHashFeature
	for rows.Next() {
		var f DHashFeature
		if err = rows.Scan(&f.ID, &f.Hash, &f.Size, &f.HashSize, &f.Value); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	err = rows.Err()
	return out, err
}

// Palettes returns every palette row ordered by id.
func (b *Batch) Palettes(ctx context.Context) ([]PaletteFeature, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_palettes", start, err) }()

	rows, err := b.tx.QueryContext(ctx, "SELECT id, hash, size, palette FROM palettes ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PaletteFeature
	for rows.Next() {
		var f PaletteFeature
		if err = rows.Scan(&f.ID, &f.Hash, &f.Size, &f.Signature); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	err = rows.Err()
	return out, err
}

// OcrRows returns every OCR row ordered by id.
func (b *Batch) OcrRows(ctx context.Context) ([]OcrFeature, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_ocr", start, err) }()

	rows, err := b.tx.QueryContext(ctx, "SELECT id, hash, size, lang, text FROM ocr ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OcrFeature
	for rows.Next() {
		var f OcrFeature
		if err = rows.Scan(&f.ID, &f.Hash, &f.Size, &f.Lang, &f.Text); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	err = rows.Err()
	return out, err
}

func (b *Batch) queryCandidates(ctx context.Context, operation, query string, args ...any) ([]Candidate, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(operation, start, err) }()

	rows, err := b.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		if err = rows.Scan(&c.Hash, &c.Path, &c.Size); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	err = rows.Err()
	return candidates, err
}
