package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ContentHash is the content digest of a file, or the explicit absence of
// one. The zero value is Unhashed. It is stored as NULL when unhashed so no
// real digest can collide with the placeholder.
type ContentHash struct {
	digest string
	valid  bool
}

// Unhashed is the placeholder for files whose digest has not been built.
var Unhashed = ContentHash{}

// Hashed returns the ContentHash carrying digest.
func Hashed(digest string) ContentHash {
	return ContentHash{digest: digest, valid: true}
}

// Digest returns the digest and whether one is present.
func (h ContentHash) Digest() (string, bool) {
	return h.digest, h.valid
}

// IsHashed reports whether a digest is present.
func (h ContentHash) IsHashed() bool {
	return h.valid
}

func (h ContentHash) String() string {
	if !h.valid {
		return "<unhashed>"
	}
	return h.digest
}

// Scan implements sql.Scanner.
func (h *ContentHash) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*h = Unhashed
	case string:
		*h = Hashed(v)
	case []byte:
		*h = Hashed(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ContentHash", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (h ContentHash) Value() (driver.Value, error) {
	if !h.valid {
		return nil, nil
	}
	return h.digest, nil
}

// MarshalJSON encodes Unhashed as null and a digest as a string.
func (h ContentHash) MarshalJSON() ([]byte, error) {
	if !h.valid {
		return []byte("null"), nil
	}
	return json.Marshal(h.digest)
}

// UnmarshalJSON decodes null as Unhashed and a string as a digest. The
// empty string is the placeholder of older catalogs and also decodes as
// Unhashed.
func (h *ContentHash) UnmarshalJSON(data []byte) error {
	var digest *string
	if err := json.Unmarshal(data, &digest); err != nil {
		return err
	}
	if digest == nil || *digest == "" {
		*h = Unhashed
		return nil
	}
	*h = Hashed(*digest)
	return nil
}

// File is a cataloged file.
type File struct {
	ID    int64       `json:"id,omitempty"`
	Path  string      `json:"path"`
	Size  int64       `json:"size"`
	CTime time.Time   `json:"ctime"`
	MTime time.Time   `json:"mtime"`
	Hash  ContentHash `json:"hash"`
}

// SnapshotFile is one file observed by the most recent filesystem walk.
type SnapshotFile struct {
	Path  string
	Size  int64
	CTime time.Time
	MTime time.Time
}

// Candidate is a hashed file selected for a feature build. One candidate is
// produced per distinct content hash.
type Candidate struct {
	Hash string
	Path string
	Size int64
}

// DHashFeature is the perceptual difference hash of an image.
type DHashFeature struct {
	ID       int64  `json:"id,omitempty"`
	Hash     string `json:"hash"`
	Size     int64  `json:"size"`
	HashSize int    `json:"hashSize"`
	Value    string `json:"dhash"`
}

// PaletteFeature is the dominant-color signature of an image.
type PaletteFeature struct {
	ID        int64  `json:"id,omitempty"`
	Hash      string `json:"hash"`
	Size      int64  `json:"size"`
	Signature string `json:"palette"`
}

// OcrFeature is the text recognized in an image for one language.
type OcrFeature struct {
	ID   int64  `json:"id,omitempty"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
	Lang string `json:"lang"`
	Text string `json:"text"`
}

// Stats holds catalog row counts.
type Stats struct {
	Files    int64 `json:"files"`
	Unhashed int64 `json:"unhashed"`
	DHashes  int64 `json:"dhashes"`
	Palettes int64 `json:"palettes"`
	Ocr      int64 `json:"ocr"`
}

// Document is the flat interchange form of a catalog.
type Document struct {
	Files    []File           `json:"files"`
	Palettes []PaletteFeature `json:"palettes"`
	DHashes  []DHashFeature   `json:"dhashes"`
	Ocr      []OcrFeature     `json:"ocr"`
}

func toUnixNano(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n)
}
