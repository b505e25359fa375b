package media

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/samber/lo"
)

// ErrPaletteOverflow is returned when quantization produced more distinct
// indices than the palette has entries, or an index outside the palette.
var ErrPaletteOverflow = errors.New("palette quantization overflow")

// PaletteEntry is one named color of the quantization palette.
type PaletteEntry struct {
	Letter byte
	Color  color.RGBA
}

func rgb(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}
}

// Palette is the fixed, ordered quantization palette. Several entries share
// a letter; the letters are K black, W white, R red, G green, B blue,
// Y yellow, M magenta, C cyan, D dark gray, A gray, L light gray.
// Signatures depend on this exact order.
var Palette = []PaletteEntry{
	{'K', rgb(0x00, 0x00, 0x00)},
	{'W', rgb(0xFF, 0xFF, 0xFF)},

	{'R', rgb(0x3F, 0x00, 0x00)},
	{'R', rgb(0x7F, 0x00, 0x00)},
	{'R', rgb(0xFF, 0x00, 0x00)},
	{'R', rgb(0x7F, 0x3F, 0x3F)},
	{'R', rgb(0xFF, 0x3F, 0x3F)},
	{'R', rgb(0xFF, 0x7F, 0x7F)},

	{'G', rgb(0x00, 0x3F, 0x00)},
	{'G', rgb(0x00, 0x7F, 0x00)},
	{'G', rgb(0x00, 0xFF, 0x00)},
	{'G', rgb(0x3F, 0x7F, 0x3F)},
	{'G', rgb(0x3F, 0xFF, 0x3F)},
	{'G', rgb(0x7F, 0xFF, 0x7F)},

	{'B', rgb(0x00, 0x00, 0x3F)},
	{'B', rgb(0x00, 0x00, 0x7F)},
	{'B', rgb(0x00, 0x00, 0xFF)},
	{'B', rgb(0x3F, 0x3F, 0x7F)},
	{'B', rgb(0x3F, 0x3F, 0xFF)},
	{'B', rgb(0x7F, 0x7F, 0xFF)},

	{'Y', rgb(0x3F, 0x3F, 0x00)},
	{'Y', rgb(0x7F, 0x7F, 0x00)},
	{'Y', rgb(0xFF, 0xFF, 0x00)},
	{'Y', rgb(0x7F, 0x7F, 0x3F)},
	{'Y', rgb(0xFF, 0xFF, 0x3F)},
	{'Y', rgb(0xFF, 0xFF, 0x7F)},

	{'M', rgb(0x3F, 0x00, 0x3F)},
	{'M', rgb(0x7F, 0x00, 0x7F)},
	{'M', rgb(0xFF, 0x00, 0xFF)},
	{'M', rgb(0x7F, 0x3F, 0x7F)},
	{'M', rgb(0xFF, 0x3F, 0xFF)},
	{'M', rgb(0xFF, 0x7F, 0xFF)},

	{'C', rgb(0x00, 0x3F, 0x3F)},
	{'C', rgb(0x00, 0x7F, 0x7F)},
	{'C', rgb(0x00, 0xFF, 0xFF)},
	{'C', rgb(0x3F, 0x7F, 0x7F)},
	{'C', rgb(0x3F, 0xFF, 0xFF)},
	{'C', rgb(0x7F, 0xFF, 0xFF)},

	{'D', rgb(0x3F, 0x3F, 0x3F)},
	{'A', rgb(0x7F, 0x7F, 0x7F)},
	{'L', rgb(0xBF, 0xBF, 0xBF)},
}

// indexedPalette is Palette padded with black to a full 256-entry table.
var indexedPalette = func() [256]color.RGBA {
	var table [256]color.RGBA
	for i := range table {
		table[i] = rgb(0, 0, 0)
	}
	for i, entry := range Palette {
		table[i] = entry.Color
	}
	return table
}()

// nearestIndex returns the table index closest to (r, g, b) by squared
// Euclidean distance; the first minimum wins.
func nearestIndex(r, g, b uint8) int {
	best, bestDist := 0, -1
	for i, c := range indexedPalette {
		dr := int(r) - int(c.R)
		dg := int(g) - int(c.G)
		db := int(b) - int(c.B)
		dist := dr*dr + dg*dg + db*db
		if bestDist < 0 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

// PaletteHistogram quantizes every pixel of img to the indexed palette and
// returns the pixel count per index together with the pixel total.
// Alpha is ignored.
func PaletteHistogram(img image.Image) (hist [256]int, total int) {
	nrgba := imaging.Clone(img)
	bounds := nrgba.Bounds()
	cache := make(map[[3]uint8]int)

	for y := 0; y < bounds.Dy(); y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+bounds.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			key := [3]uint8{row[x], row[x+1], row[x+2]}
			idx, ok := cache[key]
			if !ok {
				idx = nearestIndex(key[0], key[1], key[2])
				cache[key] = idx
			}
			hist[idx]++
			total++
		}
	}
	return hist, total
}

// SignatureFromHistogram turns a palette histogram into a signature.
//
// Indices holding no more than 2% of the pixels are dropped. The counts of
// the surviving indices are summed per letter and the letters are ordered by
// descending sum; ties go to the letter whose first surviving index is
// lowest.
func SignatureFromHistogram(hist [256]int, total int) (string, error) {
	type letterCount struct {
		letter byte
		count  int
		first  int
	}

	var used []int
	for idx, count := range hist {
		if count > 0 {
			used = append(used, idx)
		}
	}
	if len(used) > len(Palette) {
		return "", fmt.Errorf("%w: %d distinct indices for %d entries", ErrPaletteOverflow, len(used), len(Palette))
	}
	if outside, found := lo.Find(used, func(idx int) bool { return idx >= len(Palette) }); found {
		return "", fmt.Errorf("%w: index %d outside palette", ErrPaletteOverflow, outside)
	}

	// count > total*2/100, kept in integers
	surviving := lo.Filter(used, func(idx int, _ int) bool {
		return hist[idx]*50 > total
	})

	var letters []letterCount
	for _, idx := range surviving {
		letter := Palette[idx].Letter
		pos := slices.IndexFunc(letters, func(lc letterCount) bool { return lc.letter == letter })
		if pos < 0 {
			letters = append(letters, letterCount{letter: letter, count: hist[idx], first: idx})
			continue
		}
		letters[pos].count += hist[idx]
	}

	slices.SortStableFunc(letters, func(a, b letterCount) int {
		if a.count != b.count {
			return b.count - a.count
		}
		return a.first - b.first
	})

	var sig strings.Builder
	for _, lc := range letters {
		sig.WriteByte(lc.letter)
	}
	return sig.String(), nil
}

// PaletteSignature computes the dominant-color signature of img.
func PaletteSignature(img image.Image) (string, error) {
	hist, total := PaletteHistogram(img)
	return SignatureFromHistogram(hist, total)
}

// ComputePalette loads the image at path and returns its palette signature.
func ComputePalette(path string) (string, error) {
	img, err := LoadImage(path)
	if err != nil {
		return "", err
	}
	sig, err := PaletteSignature(img)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return sig, nil
}
