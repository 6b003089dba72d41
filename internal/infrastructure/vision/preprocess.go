package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"math"

	xdraw "golang.org/x/image/draw"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
)

const (
	DefaultMaxWidth = 1920
	DefaultQuality  = 0.85
)

// Preprocessor resizes and recompresses images before upload.
type Preprocessor struct {
	MaxWidth     int
	Quality      float64 // 0..1
	AllowUpscale bool    // keep scale factors above 1 for small sources
}

func NewPreprocessor(maxWidth int, quality float64, allowUpscale bool) *Preprocessor {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if quality <= 0 || quality > 1 {
		quality = DefaultQuality
	}
	return &Preprocessor{MaxWidth: maxWidth, Quality: quality, AllowUpscale: allowUpscale}
}

// ScaleFactor returns min(maxWidth/width, maxWidth/height), capped at 1
// unless upscaling is allowed.
func ScaleFactor(width, height, maxWidth int, allowUpscale bool) float64 {
	if width <= 0 || height <= 0 || maxWidth <= 0 {
		return 1
	}
	scale := math.Min(float64(maxWidth)/float64(width), float64(maxWidth)/float64(height))
	if !allowUpscale && scale > 1 {
		scale = 1
	}
	return scale
}

// Process returns a JPEG copy of img. If img cannot be decoded the original
// is returned together with the error.
func (p *Preprocessor) Process(img entity.Image) (entity.Image, error) {
	src, err := decode(img.Data)
	if err != nil {
		return img, fmt.Errorf("preprocess: %w", err)
	}

	b := src.Bounds()
	scale := ScaleFactor(b.Dx(), b.Dy(), p.MaxWidth, p.AllowUpscale)
	w := max(1, int(math.Round(float64(b.Dx())*scale)))
	h := max(1, int(math.Round(float64(b.Dy())*scale)))

	// JPEG has no alpha; flatten onto white.
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	}

	var buf bytes.Buffer
	quality := int(math.Round(p.Quality * 100))
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return img, fmt.Errorf("preprocess: encode: %w", err)
	}

	return entity.Image{
		Data:     buf.Bytes(),
		MIMEType: "image/jpeg",
		Filename: withExt(img.Filename, "jpg"),
	}, nil
}

var _ port.Preprocessor = (*Preprocessor)(nil)
