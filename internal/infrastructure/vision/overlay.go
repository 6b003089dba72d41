package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
)

// OverlayRenderer draws finding boxes over the evidence photo.
type OverlayRenderer struct {
	Quality int
}

func NewOverlayRenderer() *OverlayRenderer {
	return &OverlayRenderer{Quality: 90}
}

// CodeColor is the stroke colour for a finding code.
func CodeColor(code entity.EICRCode) color.RGBA {
	switch code {
	case entity.CodeC1:
		return color.RGBA{R: 220, G: 38, B: 38, A: 255}
	case entity.CodeC2:
		return color.RGBA{R: 234, G: 88, B: 12, A: 255}
	case entity.CodeC3:
		return color.RGBA{R: 37, G: 99, B: 235, A: 255}
	case entity.CodeFI:
		return color.RGBA{R: 147, G: 51, B: 234, A: 255}
	}
	return color.RGBA{G: 255, A: 255}
}

// Render returns a JPEG with one rectangle per finding that has a valid box.
// The box code wins over the finding code when both are set.
func (r *OverlayRenderer) Render(img entity.Image, findings []entity.Finding) (entity.Image, error) {
	src, err := decode(img.Data)
	if err != nil {
		return entity.Image{}, fmt.Errorf("render overlay: %w", err)
	}

	b := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), src, b.Min, draw.Src)

	thickness := max(2, min(b.Dx(), b.Dy())/200)
	for _, f := range findings {
		box := f.BoundingBox
		if box == nil || !box.Valid() {
			continue
		}
		code := f.EICRCode
		if box.EICRCode != nil {
			code = *box.EICRCode
		}
		strokeRect(canvas, box.PixelRect(b.Dx(), b.Dy()), thickness, CodeColor(code))
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: r.Quality}); err != nil {
		return entity.Image{}, fmt.Errorf("render overlay: %w", err)
	}
	return entity.Image{
		Data:     buf.Bytes(),
		MIMEType: "image/jpeg",
		Filename: withExt(img.Filename, "jpg"),
	}, nil
}

func strokeRect(dst draw.Image, r image.Rectangle, t int, c color.Color) {
	if r.Empty() {
		return
	}
	fill := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), fill, image.Point{}, draw.Src)
	}
}

var _ port.EvidenceRenderer = (*OverlayRenderer)(nil)
