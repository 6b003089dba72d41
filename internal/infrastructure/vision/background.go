//go:build gocv
// +build gocv

package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"gocv.io/x/gocv"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
)

// GrabCut mask values.
const (
	gcBackground         = 0
	gcProbableBackground = 2
)

// GrabCutRemover keeps the foreground found by GrabCut inside a centred
// rectangle and makes everything else transparent.
type GrabCutRemover struct {
	Iterations int
	Margin     float64 // border left as certain background, fraction of each side
}

func NewGrabCutRemover() *GrabCutRemover {
	return &GrabCutRemover{Iterations: 3, Margin: 0.05}
}

// Remove returns a PNG with a transparent background.
func (r *GrabCutRemover) Remove(ctx context.Context, img entity.Image) (entity.Image, error) {
	if err := ctx.Err(); err != nil {
		return entity.Image{}, err
	}

	mat, err := gocv.IMDecode(img.Data, gocv.IMReadColor)
	if err != nil {
		return entity.Image{}, fmt.Errorf("remove background: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return entity.Image{}, fmt.Errorf("remove background: %w", errEmptyImage)
	}

	w, h := mat.Cols(), mat.Rows()
	mx, my := int(float64(w)*r.Margin), int(float64(h)*r.Margin)
	rect := image.Rect(mx, my, w-mx, h-my)

	mask := gocv.NewMat()
	defer mask.Close()
	bgModel := gocv.NewMat()
	defer bgModel.Close()
	fgModel := gocv.NewMat()
	defer fgModel.Close()

	gocv.GrabCut(mat, &mask, rect, &bgModel, &fgModel, r.Iterations, gocv.GCInitWithRect)
	if mask.Empty() {
		return entity.Image{}, fmt.Errorf("remove background: grabcut produced no mask")
	}

	src, err := mat.ToImage()
	if err != nil {
		return entity.Image{}, fmt.Errorf("remove background: %w", err)
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			switch mask.GetUCharAt(y, x) {
			case gcBackground, gcProbableBackground:
				continue
			}
			out.Set(x, y, color.NRGBAModel.Convert(src.At(x, y)))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return entity.Image{}, fmt.Errorf("remove background: %w", err)
	}
	return entity.Image{Data: buf.Bytes(), MIMEType: "image/png", Filename: withExt(img.Filename, "png")}, nil
}

var _ port.BackgroundRemover = (*GrabCutRemover)(nil)
