package port

import (
	"context"

	"eicr-vision/internal/domain/entity"
)

// QualityGate scores a capture. It is advisory: on error callers treat the
// image as passing.
type QualityGate interface {
	Evaluate(ctx context.Context, img entity.Image) (entity.QualityResult, error)
}

// Preprocessor resizes and recompresses before upload. On error the
// returned image is the original and remains usable.
type Preprocessor interface {
	Process(img entity.Image) (entity.Image, error)
}

// BackgroundRemover isolates the foreground and re-encodes losslessly.
type BackgroundRemover interface {
	Remove(ctx context.Context, img entity.Image) (entity.Image, error)
}
