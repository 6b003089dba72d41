//go:build !gocv
// +build !gocv

package vision

import (
	"context"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
)

// GrabCutRemover without OpenCV: always fails, callers keep the original.
type GrabCutRemover struct {
	Iterations int
	Margin     float64
}

func NewGrabCutRemover() *GrabCutRemover {
	return &GrabCutRemover{Iterations: 3, Margin: 0.05}
}

func (r *GrabCutRemover) Remove(ctx context.Context, img entity.Image) (entity.Image, error) {
	return entity.Image{}, errNoGoCV
}

var _ port.BackgroundRemover = (*GrabCutRemover)(nil)
