package port

import (
	"context"

	"eicr-vision/internal/domain/entity"
)

// Analyzer is the remote inference service.
type Analyzer interface {
	// Analyze sends image URLs and settings and waits for a structured result.
	// Transport failures and application-level failures are reported as
	// distinct error kinds.
	Analyze(ctx context.Context, req entity.AnalysisRequest) (*entity.AnalysisResult, error)
}

// ObjectStorage stores processed images and returns a public URL.
type ObjectStorage interface {
	Upload(ctx context.Context, img entity.Image) (string, error)
}
