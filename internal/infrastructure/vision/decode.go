package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// MaxPixels bounds the decoded size of any image, about 50 megapixels.
const MaxPixels = 50_000_000

var (
	errEmptyImage = errors.New("empty image")
	errTooLarge   = errors.New("image dimensions too large")
)

// decode turns encoded bytes into an image.Image. The header is checked
// first so a small file cannot declare a huge canvas.
func decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errEmptyImage
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("decode %s: %w", format, errEmptyImage)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("decode %s %dx%d: %w", format, cfg.Width, cfg.Height, errTooLarge)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decode %s: %w", format, errEmptyImage)
	}
	return img, nil
}

// withExt swaps the filename extension.
func withExt(name, ext string) string {
	if name == "" {
		return "image." + ext
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + "." + ext
}
