package media

import (
	"image"
	"math/big"
	"strings"

	"github.com/disintegration/imaging"
)

// DHashSize is the bit depth of stored dhashes: an 8x8 grid per direction.
const DHashSize = 8

// DHash computes the row and column difference hashes of img and formats
// them as one hex string: size*size/4 digits of row hash followed by the
// same number of digits of column hash.
//
// The image is converted to grayscale and resized to (size+1)x(size+1).
// A row bit is set when a pixel is darker than its right neighbour, a column
// bit when it is darker than the pixel below. Bits are emitted MSB first in
// row-major order.
func DHash(img image.Image, size int) string {
	width := size + 1
	gray := imaging.Resize(imaging.Grayscale(img), width, width, imaging.Lanczos)

	pixel := func(x, y int) uint8 {
		return gray.Pix[y*gray.Stride+x*4]
	}

	row := new(big.Int)
	col := new(big.Int)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			row.Lsh(row, 1)
			if pixel(x, y) < pixel(x+1, y) {
				row.SetBit(row, 0, 1)
			}
			col.Lsh(col, 1)
			if pixel(x, y) < pixel(x, y+1) {
				col.SetBit(col, 0, 1)
			}
		}
	}

	digits := size * size / 4
	return padHex(row, digits) + padHex(col, digits)
}

func padHex(n *big.Int, digits int) string {
	s := n.Text(16)
	if len(s) < digits {
		s = strings.Repeat("0", digits-len(s)) + s
	}
	return s
}

// ComputeDHash loads the image at path and returns its DHashSize dhash.
func ComputeDHash(path string) (string, error) {
	img, err := LoadImage(path)
	if err != nil {
		return "", err
	}
	return DHash(img, DHashSize), nil
}
