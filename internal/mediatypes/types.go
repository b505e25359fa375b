package mediatypes

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// DefaultExtensions are the image extensions cataloged when none are configured.
var DefaultExtensions = []string{".png", ".tga", ".jpeg", ".jpg", ".bmp"}

// Extensions is a case-insensitive set of allowed file extensions.
type Extensions struct {
	set map[string]struct{}
}

// NormalizeExtension lowercases ext and ensures it has a leading dot.
// Returns "" for an empty or dot-only extension.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return ""
	}
	return "." + ext
}

// NewExtensions builds a set from exts. Entries may be given with or without
// a leading dot and in any case; empty entries are ignored.
func NewExtensions(exts []string) Extensions {
	normalized := lo.Compact(lo.Map(exts, func(ext string, _ int) string {
		return NormalizeExtension(ext)
	}))
	return Extensions{set: lo.SliceToMap(normalized, func(ext string) (string, struct{}) {
		return ext, struct{}{}
	})}
}

// Match reports whether the file name carries one of the allowed extensions.
func (e Extensions) Match(name string) bool {
	ext := NormalizeExtension(filepath.Ext(name))
	if ext == "" {
		return false
	}
	_, ok := e.set[ext]
	return ok
}

// List returns the normalized extensions in sorted order.
func (e Extensions) List() []string {
	keys := lo.Keys(e.set)
	slices.Sort(keys)
	return keys
}

// Len returns the number of distinct extensions.
func (e Extensions) Len() int {
	return len(e.set)
}
