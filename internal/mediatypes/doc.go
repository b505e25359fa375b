// Package mediatypes decides which files on disk are cataloged.
//
// This package exists as a small foundation that can be imported by the
// scanner and the configuration layer without creating import cycles.
//
// # Extension Matching
//
// Extensions are compared case-insensitively against the final extension of
// a file name, so ".JPG", "jpg" and ".jpg" all configure the same entry:
//
//	exts := mediatypes.NewExtensions([]string{"png", ".JPG"})
//	exts.Match("img/cat.jpg")  // true
//	exts.Match("img/cat.jpeg") // false
//
// DefaultExtensions lists the formats cataloged when nothing is configured.
package mediatypes
