// Package media computes the per-image features stored in the catalog.
//
// Every function here is a pure computation over one file: it reads the
// image, never the catalog, so the feature builders can run it from any
// number of workers.
//
//   - DHash: perceptual difference hash (row and column gradients on a
//     9x9 grayscale thumbnail)
//   - PaletteSignature: dominant color letters after quantizing to the
//     fixed 41-entry Palette
//   - TextEngine: text recognition through an external OCR program
//
// Images are decoded with the Go decoders (PNG, JPEG, GIF, BMP, TIFF, WebP)
// and fall back to libvips for anything else it can read.
package media
