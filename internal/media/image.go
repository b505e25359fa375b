package media

import (
	"fmt"
	"image"

	"imgdb/internal/filesystem"
	"imgdb/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/tiff" // TIFF format support
	_ "golang.org/x/image/webp" // WebP format support
)

// LoadImage decodes the image at path. The registered Go decoders are tried
// first; when they reject the file and libvips is initialized, the image is
// decoded through libvips instead. EXIF orientation is not applied so the
// features describe the stored pixels.
func LoadImage(path string) (image.Image, error) {
	img, err := decodeFile(path)
	if err == nil {
		return img, nil
	}

	if !IsVipsAvailable() {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	logging.Debug("Go decoders rejected %s (%v), falling back to libvips", path, err)
	img, vipsErr := LoadImageWithVips(path)
	if vipsErr != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w (libvips: %v)", path, err, vipsErr)
	}
	return img, nil
}

func decodeFile(path string) (image.Image, error) {
	file, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	return imaging.Decode(file)
}
