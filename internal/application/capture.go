package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
	apperrors "eicr-vision/internal/platform/errors"
)

// Phase is the state of the guided capture wizard.
type Phase string

const (
	PhasePresetSelection Phase = "preset_selection"
	PhaseStepActive      Phase = "step_active"
	PhaseComplete        Phase = "complete"
)

// FrameOutcome describes one accepted capture.
type FrameOutcome struct {
	Index     int // position in the image collection
	Step      int // checklist step the capture completed
	NextStep  int // step pointer after the capture
	Quality   entity.QualityResult
	Warned    bool // quality below threshold; advisory only
	CanFinish bool
}

// WizardOptions tune the wizard.
type WizardOptions struct {
	QualityThreshold float64
	Facing           port.Facing
}

// CaptureWizard walks an inspector through a preset checklist, one guided
// photo per step.
type CaptureWizard struct {
	sessionID int64
	presets   []entity.CapturePreset
	acq       *AcquisitionController
	gate      port.QualityGate
	notifier  port.Notifier
	metrics   port.MetricsRecorder
	logger    *slog.Logger
	opts      WizardOptions

	mu      sync.Mutex
	preset  *entity.CapturePreset
	step    int
	quality []entity.QualityResult
	markers []int // checklist step of each capture, same order as the images
}

func NewCaptureWizard(sessionID int64, presets []entity.CapturePreset, acq *AcquisitionController, gate port.QualityGate, notifier port.Notifier, metrics port.MetricsRecorder, logger *slog.Logger, opts WizardOptions) *CaptureWizard {
	if opts.QualityThreshold <= 0 {
		opts.QualityThreshold = entity.DefaultQualityThreshold
	}
	if opts.Facing == "" {
		opts.Facing = port.FacingEnvironment
	}
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &CaptureWizard{
		sessionID: sessionID,
		presets:   presets,
		acq:       acq,
		gate:      gate,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger.With("component", "wizard", "session", sessionID),
		opts:      opts,
	}
}

// Presets returns the catalog shown in preset selection.
func (w *CaptureWizard) Presets() []entity.CapturePreset {
	out := make([]entity.CapturePreset, len(w.presets))
	copy(out, w.presets)
	return out
}

func (w *CaptureWizard) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phaseLocked()
}

func (w *CaptureWizard) phaseLocked() Phase {
	switch {
	case w.preset == nil:
		return PhasePresetSelection
	case w.canFinishLocked():
		return PhaseComplete
	}
	return PhaseStepActive
}

// Step returns the current checklist index.
func (w *CaptureWizard) Step() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Preset returns the selected preset.
func (w *CaptureWizard) Preset() (entity.CapturePreset, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.preset == nil {
		return entity.CapturePreset{}, false
	}
	return *w.preset, true
}

// Instruction is the checklist text of the current step.
func (w *CaptureWizard) Instruction() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.preset == nil {
		return ""
	}
	return w.preset.Instruction(w.step)
}

// QualityResults returns the quality result of every capture, in order.
func (w *CaptureWizard) QualityResults() []entity.QualityResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]entity.QualityResult, len(w.quality))
	copy(out, w.quality)
	return out
}

// SelectPreset clears prior captures, moves to step 0 and starts the camera.
// A camera that cannot start only produces a notification.
func (w *CaptureWizard) SelectPreset(ctx context.Context, id string) (entity.CapturePreset, error) {
	preset, ok := entity.FindPreset(w.presets, id)
	if !ok {
		return entity.CapturePreset{}, apperrors.New(apperrors.KindInput, "wizard.select", fmt.Sprintf("unknown preset %q", id))
	}

	w.mu.Lock()
	w.resetLocked()
	w.preset = &preset
	w.mu.Unlock()

	w.acq.StartCamera(ctx, w.opts.Facing)
	w.logger.Info("preset selected", "preset", preset.ID, "steps", preset.Steps())
	return preset, nil
}

// CaptureFrame takes the next photo from the live camera.
func (w *CaptureWizard) CaptureFrame(ctx context.Context) (FrameOutcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.preset == nil {
		return FrameOutcome{}, errNoPreset()
	}

	img, index, err := w.acq.CaptureFrame(ctx)
	if err != nil {
		return FrameOutcome{}, err
	}
	return w.recordLocked(ctx, img, index), nil
}

// AcceptFrame takes a photo that arrived by push (chat upload, file).
func (w *CaptureWizard) AcceptFrame(ctx context.Context, img entity.Image) (FrameOutcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.preset == nil {
		return FrameOutcome{}, errNoPreset()
	}
	if !img.IsImage() {
		w.notify(entity.NoticeWarning, "Not an image", "Please send a photo of the installation.")
		return FrameOutcome{}, apperrors.New(apperrors.KindInput, "wizard.accept", "file is not an image")
	}

	processed, index := w.acq.Add(img)
	return w.recordLocked(ctx, processed, index), nil
}

// recordLocked runs the advisory quality gate, marks the step complete and
// advances unless the last step is active.
func (w *CaptureWizard) recordLocked(ctx context.Context, img entity.Image, index int) FrameOutcome {
	q := w.evaluate(ctx, img)
	warned := !q.Acceptable(w.opts.QualityThreshold)
	w.metrics.ObserveQuality(q.Score, warned)
	if warned {
		msg := fmt.Sprintf("Quality score %.0f%%.", q.Score*100)
		if len(q.Issues) > 0 {
			msg = fmt.Sprintf("Quality score %.0f%%: %s. You can retake or carry on.", q.Score*100, strings.Join(q.Issues, ", "))
		}
		w.notify(entity.NoticeWarning, "Photo quality is low", msg)
	}

	completed := w.step
	w.quality = append(w.quality, q)
	w.markers = append(w.markers, completed)
	if w.step < w.preset.Steps()-1 {
		w.step++
	}

	return FrameOutcome{
		Index:     index,
		Step:      completed,
		NextStep:  w.step,
		Quality:   q,
		Warned:    warned,
		CanFinish: w.canFinishLocked(),
	}
}

func (w *CaptureWizard) evaluate(ctx context.Context, img entity.Image) entity.QualityResult {
	if w.gate == nil {
		return entity.PassingQuality()
	}
	q, err := w.gate.Evaluate(ctx, img)
	if err != nil {
		w.logger.Warn("quality gate skipped", "error", err)
		return entity.PassingQuality()
	}
	return q
}

// Retake drops the latest capture with its quality result and step marker.
// The step pointer goes back to where it was before that capture.
func (w *CaptureWizard) Retake() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.preset == nil {
		return errNoPreset()
	}
	if _, ok := w.acq.PopLast(); !ok {
		return apperrors.New(apperrors.KindInput, "wizard.retake", "nothing to retake")
	}

	if n := len(w.markers); n > 0 {
		w.step = w.markers[n-1]
		w.markers = w.markers[:n-1]
	}
	if n := len(w.quality); n > 0 {
		w.quality = w.quality[:n-1]
	}
	return nil
}

// CanFinish holds once the estimated photo count is reached. More photos
// may still be taken.
func (w *CaptureWizard) CanFinish() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canFinishLocked()
}

func (w *CaptureWizard) canFinishLocked() bool {
	if w.preset == nil {
		return false
	}
	return w.acq.Len() >= max(1, w.preset.EstimatedPhotos)
}

// Finish hands over every captured image and returns to preset selection.
func (w *CaptureWizard) Finish() ([]entity.Image, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.preset == nil {
		return nil, errNoPreset()
	}
	if !w.canFinishLocked() {
		return nil, apperrors.New(apperrors.KindInput, "wizard.finish",
			fmt.Sprintf("capture at least %d photo(s) first", max(1, w.preset.EstimatedPhotos)))
	}

	images := w.acq.Images()
	w.acq.StopCamera()
	w.resetLocked()
	w.preset = nil
	return images, nil
}

// Exit discards the wizard state without confirmation.
func (w *CaptureWizard) Exit() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.acq.StopCamera()
	w.resetLocked()
	w.preset = nil
}

func (w *CaptureWizard) resetLocked() {
	w.acq.Reset()
	w.step = 0
	w.quality = nil
	w.markers = nil
}

func (w *CaptureWizard) notify(level entity.NoticeLevel, title, message string) {
	if w.notifier == nil {
		return
	}
	w.notifier.Notify(entity.Notification{SessionID: w.sessionID, Level: level, Title: title, Message: message})
}

func errNoPreset() error {
	return apperrors.New(apperrors.KindInput, "wizard", "select a preset first")
}
