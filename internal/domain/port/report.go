package port

import (
	"context"
	"time"

	"eicr-vision/internal/domain/entity"
)

// ReportExporter renders an analysis as a document (PDF).
type ReportExporter interface {
	Export(result *entity.AnalysisResult, generatedAt time.Time) ([]byte, error)
}

// EvidenceRenderer draws bounding boxes over the evidence image.
type EvidenceRenderer interface {
	Render(img entity.Image, findings []entity.Finding) (entity.Image, error)
}

// ObservationStore is the EICR record store that findings are handed to.
type ObservationStore interface {
	Add(ctx context.Context, obs entity.Observation) (entity.Observation, error)
	List(ctx context.Context, reportID string) ([]entity.Observation, error)
}
