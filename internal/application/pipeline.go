package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
	apperrors "eicr-vision/internal/platform/errors"
)

const defaultUploadConcurrency = 4

// AnalysisOutcome is a successful analysis ready for presentation.
type AnalysisOutcome struct {
	Entry    entity.AnalysisHistoryEntry
	FixPacks []entity.FixPack
	Degraded bool
}

// AnalysisService uploads images and runs the remote analysis.
type AnalysisService struct {
	storage  port.ObjectStorage
	analyzer port.Analyzer
	remover  port.BackgroundRemover // optional
	metrics  port.MetricsRecorder
	logger   *slog.Logger

	uploadConcurrency int
	now               func() time.Time
}

func NewAnalysisService(storage port.ObjectStorage, analyzer port.Analyzer, remover port.BackgroundRemover, metrics port.MetricsRecorder, logger *slog.Logger) *AnalysisService {
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &AnalysisService{
		storage:           storage,
		analyzer:          analyzer,
		remover:           remover,
		metrics:           metrics,
		logger:            logger.With("component", "analysis"),
		uploadConcurrency: defaultUploadConcurrency,
		now:               time.Now,
	}
}

// UploadHook receives the uploaded URLs before the analyzer is called.
type UploadHook func(urls []string)

// Analyze uploads every image and, only if all uploads succeed, invokes the
// analyzer with the primary image first.
func (s *AnalysisService) Analyze(ctx context.Context, images []entity.Image, primary int, settings entity.AnalysisSettings) (*AnalysisOutcome, error) {
	return s.AnalyzeWithHook(ctx, images, primary, settings, nil)
}

// AnalyzeWithHook is Analyze with a callback between upload and invocation,
// used to remember URLs for a retry that skips the upload.
func (s *AnalysisService) AnalyzeWithHook(ctx context.Context, images []entity.Image, primary int, settings entity.AnalysisSettings, hook UploadHook) (*AnalysisOutcome, error) {
	start := s.now()
	urls, err := s.Upload(ctx, images, primary, settings)
	if err != nil {
		s.metrics.ObserveAnalysis(failureOutcome(err), s.now().Sub(start))
		return nil, err
	}
	if hook != nil {
		hook(append([]string(nil), urls...))
	}
	return s.invoke(ctx, urls, settings, start)
}

// Upload stores the images concurrently and returns their URLs with the
// primary first. Any failure cancels the remaining uploads and fails the join.
func (s *AnalysisService) Upload(ctx context.Context, images []entity.Image, primary int, settings entity.AnalysisSettings) ([]string, error) {
	const op = "analysis.upload"
	if len(images) == 0 {
		return nil, apperrors.New(apperrors.KindInput, op, "no images to analyse")
	}
	if primary < 0 || primary >= len(images) {
		return nil, apperrors.New(apperrors.KindInput, op, fmt.Sprintf("primary image %d is out of range", primary))
	}

	ordered := make([]entity.Image, 0, len(images))
	ordered = append(ordered, images[primary])
	for i, img := range images {
		if i != primary {
			ordered = append(ordered, img)
		}
	}

	if settings.RemoveBackground && s.remover != nil {
		for i := range ordered {
			ordered[i] = s.removeBackground(ctx, ordered[i])
		}
	}

	urls := make([]string, len(ordered))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.uploadConcurrency)
	for i, img := range ordered {
		i, img := i, img
		g.Go(func() error {
			t0 := s.now()
			u, err := s.storage.Upload(gctx, img)
			s.metrics.ObserveUpload(err == nil, s.now().Sub(t0))
			if err != nil {
				return apperrors.Wrap(apperrors.KindUpload, op, fmt.Sprintf("upload of image %d failed", i+1), err)
			}
			urls[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("upload failed, analysis not started", "images", len(ordered), "error", err)
		return nil, err
	}
	return urls, nil
}

// Reanalyze runs the invocation again on already uploaded images.
func (s *AnalysisService) Reanalyze(ctx context.Context, urls []string, settings entity.AnalysisSettings) (*AnalysisOutcome, error) {
	if len(urls) == 0 {
		return nil, apperrors.New(apperrors.KindInput, "analysis.retry", "no uploaded images to analyse")
	}
	return s.invoke(ctx, urls, settings, s.now())
}

func (s *AnalysisService) invoke(ctx context.Context, urls []string, settings entity.AnalysisSettings, start time.Time) (*AnalysisOutcome, error) {
	req := entity.AnalysisRequest{
		PrimaryImage:     urls[0],
		AdditionalImages: append([]string{}, urls[1:]...),
		Settings:         settings.Normalize(),
	}

	result, err := s.analyzer.Analyze(ctx, req)
	if err == nil && result == nil {
		err = apperrors.New(apperrors.KindAnalysisApplication, "analysis.invoke", "analysis service returned nothing")
	}
	if err != nil {
		s.metrics.ObserveAnalysis(failureOutcome(err), s.now().Sub(start))
		s.logger.Warn("analysis failed", "kind", apperrors.KindOf(err), "error", err)
		return nil, err
	}

	result.ComplianceSummary = result.ComplianceSummary.Normalize()

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	out := &AnalysisOutcome{
		Entry: entity.AnalysisHistoryEntry{
			ID:         id.String(),
			ImageURLs:  req.ImageURLs(),
			Result:     result,
			CapturedAt: s.now(),
		},
		FixPacks: entity.DeriveFixPacks(result.Findings),
		Degraded: result.IsDegraded(),
	}

	outcome := port.OutcomeSuccess
	switch {
	case out.Degraded:
		outcome = port.OutcomeDegraded
	case !result.HasFindings():
		outcome = port.OutcomeNoFindings
	}
	s.metrics.ObserveAnalysis(outcome, s.now().Sub(start))
	s.logger.Info("analysis complete", "id", out.Entry.ID, "findings", len(result.Findings), "outcome", outcome)
	return out, nil
}

func (s *AnalysisService) removeBackground(ctx context.Context, img entity.Image) entity.Image {
	out, err := s.remover.Remove(ctx, img)
	if err != nil {
		s.logger.Warn("background removal failed, uploading original", "file", img.Filename, "error", err)
		return img
	}
	return out
}

func failureOutcome(err error) string {
	if errors.Is(err, context.Canceled) {
		return port.OutcomeCanceled
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindUpload:
		return port.OutcomeUploadError
	case apperrors.KindAnalysisApplication:
		return port.OutcomeApplication
	case apperrors.KindInput:
		return port.OutcomeInvalid
	}
	return port.OutcomeTransport
}
