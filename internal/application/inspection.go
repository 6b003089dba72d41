package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
	apperrors "eicr-vision/internal/platform/errors"
)

const (
	DefaultWorkspaceTTL = 2 * time.Hour
	workspaceSweep      = 10 * time.Minute
)

// InspectionConfig tunes the per-session workspaces.
type InspectionConfig struct {
	Presets      []entity.CapturePreset
	Settings     entity.AnalysisSettings
	Wizard       WizardOptions
	HistoryLimit int
	WorkspaceTTL time.Duration
}

// InspectionDeps are the collaborators of InspectionService. Camera,
// Exporter, Renderer and Observations may be nil.
type InspectionDeps struct {
	Sessions     *SessionService
	Analysis     *AnalysisService
	Camera       func(sessionID int64) port.Camera
	Preprocessor port.Preprocessor
	Gate         port.QualityGate
	Exporter     port.ReportExporter
	Renderer     port.EvidenceRenderer
	Observations port.ObservationStore
	Notifier     port.Notifier
	Metrics      port.MetricsRecorder
	Logger       *slog.Logger
}

// Workspace is everything one inspector has in flight: the image collection,
// the wizard, the analysis history and the results being viewed.
type Workspace struct {
	Acquisition *AcquisitionController
	Wizard      *CaptureWizard

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	history  *entity.History
	settings entity.AnalysisSettings
	view     *ResultsView
	evidence map[string]entity.Image // history entry ID -> primary image

	// last attempt, kept until it succeeds so Retry can resume it
	pendingImages  []entity.Image
	pendingPrimary int
	pendingURLs    []string

	generation uint64
}

func (ws *Workspace) close() {
	ws.mu.Lock()
	ws.cancel()
	ws.generation++
	ws.mu.Unlock()
	ws.Wizard.Exit()
	ws.Acquisition.StopCamera()
}

// InspectionService drives the whole inspection flow for every session.
type InspectionService struct {
	deps InspectionDeps
	cfg  InspectionConfig

	logger     *slog.Logger
	workspaces *cache.Cache
	createMu   sync.Mutex
	now        func() time.Time
}

func NewInspectionService(deps InspectionDeps, cfg InspectionConfig) *InspectionService {
	if deps.Metrics == nil {
		deps.Metrics = port.NopMetrics{}
	}
	if len(cfg.Presets) == 0 {
		cfg.Presets = entity.DefaultPresets()
	}
	if cfg.WorkspaceTTL <= 0 {
		cfg.WorkspaceTTL = DefaultWorkspaceTTL
	}
	if cfg.Settings.ConfidenceThreshold == 0 {
		cfg.Settings = entity.DefaultAnalysisSettings()
	}
	cfg.Settings = cfg.Settings.Normalize()

	s := &InspectionService{
		deps:       deps,
		cfg:        cfg,
		logger:     deps.Logger.With("component", "inspection"),
		workspaces: cache.New(cfg.WorkspaceTTL, workspaceSweep),
		now:        time.Now,
	}
	s.workspaces.OnEvicted(func(key string, v any) {
		if ws, ok := v.(*Workspace); ok {
			ws.close()
			s.logger.Debug("workspace closed", "session", key)
		}
	})
	return s
}

// Close releases every workspace.
func (s *InspectionService) Close() {
	for key := range s.workspaces.Items() {
		s.workspaces.Delete(key)
	}
}

// Workspace returns the session's workspace, creating it on first use.
// Every access extends its lifetime.
func (s *InspectionService) Workspace(sessionID int64) *Workspace {
	key := strconv.FormatInt(sessionID, 10)

	s.createMu.Lock()
	defer s.createMu.Unlock()

	if v, ok := s.workspaces.Get(key); ok {
		ws := v.(*Workspace)
		s.workspaces.Set(key, ws, cache.DefaultExpiration)
		return ws
	}

	var camera port.Camera
	if s.deps.Camera != nil {
		camera = s.deps.Camera(sessionID)
	}
	acq := NewAcquisitionController(sessionID, camera, s.deps.Preprocessor, s.deps.Notifier, s.deps.Logger)
	ctx, cancel := context.WithCancel(context.Background())
	ws := &Workspace{
		Acquisition: acq,
		Wizard:      NewCaptureWizard(sessionID, s.cfg.Presets, acq, s.deps.Gate, s.deps.Notifier, s.deps.Metrics, s.deps.Logger, s.cfg.Wizard),
		ctx:         ctx,
		cancel:      cancel,
		history:     entity.NewHistory(s.cfg.HistoryLimit),
		settings:    s.cfg.Settings,
		evidence:    make(map[string]entity.Image),
	}
	s.workspaces.Set(key, ws, cache.DefaultExpiration)
	return ws
}

// Reset drops the session's workspace, cancelling anything in flight.
func (s *InspectionService) Reset(ctx context.Context, userID, chatID int64) error {
	s.workspaces.Delete(strconv.FormatInt(userID, 10))
	_, err := s.deps.Sessions.Cancel(ctx, userID, chatID)
	return err
}

func (s *InspectionService) Presets() []entity.CapturePreset {
	out := make([]entity.CapturePreset, len(s.cfg.Presets))
	copy(out, s.cfg.Presets)
	return out
}

// StartCapture selects a preset and enters the capture flow.
func (s *InspectionService) StartCapture(ctx context.Context, userID, chatID int64, presetID string) (entity.CapturePreset, error) {
	ws := s.Workspace(userID)
	if s.deps.Sessions.Busy(ctx, userID, chatID) {
		return entity.CapturePreset{}, errBusy()
	}
	preset, err := ws.Wizard.SelectPreset(ctx, presetID)
	if err != nil {
		return entity.CapturePreset{}, err
	}
	if _, err := s.deps.Sessions.BeginCapture(ctx, userID, chatID); err != nil {
		return entity.CapturePreset{}, err
	}
	return preset, nil
}

// AddFrame records a pushed photo as the current wizard step.
func (s *InspectionService) AddFrame(ctx context.Context, userID int64, img entity.Image) (FrameOutcome, error) {
	return s.Workspace(userID).Wizard.AcceptFrame(ctx, img)
}

// CaptureFrame snapshots the live camera as the current wizard step.
func (s *InspectionService) CaptureFrame(ctx context.Context, userID int64) (FrameOutcome, error) {
	return s.Workspace(userID).Wizard.CaptureFrame(ctx)
}

func (s *InspectionService) Retake(userID int64) error {
	return s.Workspace(userID).Wizard.Retake()
}

// FinishCapture ends the wizard and keeps its photos as the collection to
// analyse, the first one as primary.
func (s *InspectionService) FinishCapture(ctx context.Context, userID, chatID int64) (int, error) {
	ws := s.Workspace(userID)
	if s.deps.Sessions.Busy(ctx, userID, chatID) {
		return 0, errBusy()
	}
	images, err := ws.Wizard.Finish()
	if err != nil {
		return 0, err
	}
	ws.Acquisition.Replace(images)
	if _, err := s.deps.Sessions.Cancel(ctx, userID, chatID); err != nil {
		return 0, err
	}
	return len(images), nil
}

// AddFiles ingests free-form uploads outside the wizard.
func (s *InspectionService) AddFiles(ctx context.Context, userID int64, files []entity.Image) (int, error) {
	return s.Workspace(userID).Acquisition.IngestFiles(ctx, files)
}

func (s *InspectionService) RemoveImage(userID int64, i int) error {
	return s.Workspace(userID).Acquisition.RemoveImage(i)
}

func (s *InspectionService) SetPrimary(userID int64, i int) error {
	return s.Workspace(userID).Acquisition.SetPrimary(i)
}

// Collection returns the images waiting for analysis and the primary index.
func (s *InspectionService) Collection(userID int64) ([]entity.Image, int) {
	acq := s.Workspace(userID).Acquisition
	return acq.Images(), acq.PrimaryIndex()
}

// Exit abandons whatever the session is doing: in-flight work is cancelled,
// the wizard and collection are cleared. History is kept.
func (s *InspectionService) Exit(ctx context.Context, userID, chatID int64) error {
	ws := s.Workspace(userID)

	ws.mu.Lock()
	ws.cancel()
	ws.ctx, ws.cancel = context.WithCancel(context.Background())
	ws.generation++
	ws.clearPendingLocked()
	_, err := s.deps.Sessions.Cancel(ctx, userID, chatID)
	ws.mu.Unlock()

	ws.Wizard.Exit()
	ws.Acquisition.Reset()
	return err
}

func (s *InspectionService) Settings(userID int64) entity.AnalysisSettings {
	ws := s.Workspace(userID)
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.settings
}

func (s *InspectionService) SetSettings(userID int64, settings entity.AnalysisSettings) entity.AnalysisSettings {
	ws := s.Workspace(userID)
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.settings = settings.Normalize()
	return ws.settings
}

// AnalyzeCollection uploads and analyses the current collection.
func (s *InspectionService) AnalyzeCollection(ctx context.Context, userID, chatID int64) (*AnalysisOutcome, error) {
	ws := s.Workspace(userID)
	images := ws.Acquisition.Images()
	if len(images) == 0 {
		err := apperrors.New(apperrors.KindInput, "inspection.analyze", "add at least one photo first")
		s.notifyFailure(userID, err)
		return nil, err
	}
	return s.run(ctx, ws, userID, chatID, job{images: images, primary: ws.Acquisition.PrimaryIndex()})
}

// AnalyzeImages replaces the collection with files and analyses it.
// primary indexes files; the collection is left untouched when the request
// is rejected.
func (s *InspectionService) AnalyzeImages(ctx context.Context, userID, chatID int64, files []entity.Image, primary int) (*AnalysisOutcome, error) {
	ws := s.Workspace(userID)
	if s.deps.Sessions.Busy(ctx, userID, chatID) {
		return nil, errBusy()
	}

	imageCount := 0
	for _, f := range files {
		if f.IsImage() {
			imageCount++
		}
	}
	if imageCount == 0 {
		// publishes the warning and leaves the collection alone
		_, err := ws.Acquisition.IngestFiles(ctx, files)
		return nil, err
	}
	at, err := primaryAfterFilter(files, primary)
	if err != nil {
		return nil, err
	}

	ws.Acquisition.Reset()
	if _, err := ws.Acquisition.IngestFiles(ctx, files); err != nil {
		return nil, err
	}
	if err := ws.Acquisition.SetPrimary(at); err != nil {
		return nil, err
	}
	return s.AnalyzeCollection(ctx, userID, chatID)
}

// primaryAfterFilter maps an index into files onto the collection that
// keeps only images. Position 0 on a non-image falls back to the first image.
func primaryAfterFilter(files []entity.Image, primary int) (int, error) {
	const op = "inspection.primary"
	if primary < 0 || primary >= len(files) {
		return 0, apperrors.New(apperrors.KindInput, op, fmt.Sprintf("no file at position %d", primary))
	}
	if !files[primary].IsImage() {
		if primary == 0 {
			return 0, nil
		}
		return 0, apperrors.New(apperrors.KindInput, op, fmt.Sprintf("%s is not an image and cannot be the primary", files[primary].Filename))
	}
	at := 0
	for _, f := range files[:primary] {
		if f.IsImage() {
			at++
		}
	}
	return at, nil
}

// Retry resumes the last failed attempt. Uploaded images are not sent
// again; only the invocation is repeated. Without a failed attempt the
// latest history entry is re-analysed.
func (s *InspectionService) Retry(ctx context.Context, userID, chatID int64) (*AnalysisOutcome, error) {
	ws := s.Workspace(userID)

	ws.mu.Lock()
	var j job
	switch {
	case len(ws.pendingURLs) > 0:
		j = job{urls: ws.pendingURLs, evidence: ws.pendingEvidenceLocked()}
	case len(ws.pendingImages) > 0:
		j = job{images: ws.pendingImages, primary: ws.pendingPrimary}
	default:
		latest, ok := ws.history.Latest()
		if !ok {
			ws.mu.Unlock()
			return nil, apperrors.New(apperrors.KindInput, "inspection.retry", "nothing to retry")
		}
		ev, has := ws.evidence[latest.ID]
		j = job{urls: latest.ImageURLs}
		if has {
			j.evidence = &ev
		}
	}
	ws.mu.Unlock()

	return s.run(ctx, ws, userID, chatID, j)
}

type job struct {
	images   []entity.Image
	primary  int
	urls     []string      // set when the images are already uploaded
	evidence *entity.Image // primary image kept for overlays on a retry
}

func (s *InspectionService) run(ctx context.Context, ws *Workspace, userID, chatID int64, j job) (*AnalysisOutcome, error) {
	ws.mu.Lock()
	if _, err := s.deps.Sessions.BeginAnalysis(ctx, userID, chatID); err != nil {
		ws.mu.Unlock()
		return nil, err
	}
	gen := ws.generation
	settings := ws.settings
	if j.urls == nil {
		ws.pendingImages = j.images
		ws.pendingPrimary = j.primary
		ws.pendingURLs = nil
	}
	wsCtx := ws.ctx
	ws.mu.Unlock()

	runCtx, cancel := bindContext(ctx, wsCtx)
	defer cancel()

	var (
		outcome *AnalysisOutcome
		err     error
	)
	if j.urls != nil {
		outcome, err = s.deps.Analysis.Reanalyze(runCtx, j.urls, settings)
	} else {
		outcome, err = s.deps.Analysis.AnalyzeWithHook(runCtx, j.images, j.primary, settings, func(urls []string) {
			ws.mu.Lock()
			if ws.generation == gen {
				ws.pendingURLs = urls
			}
			ws.mu.Unlock()
		})
	}

	ws.mu.Lock()
	if ws.generation != gen {
		// the session was exited or reset and no longer belongs to this run
		ws.mu.Unlock()
		s.logger.Info("discarding result of abandoned analysis", "session", userID)
		cancelled := apperrors.Wrap(apperrors.KindInput, "inspection.analyze", "analysis was cancelled", context.Canceled)
		s.notifyFailure(userID, cancelled)
		return nil, cancelled
	}
	if err != nil {
		s.setStateLocked(ctx, userID, chatID, entity.StateMainMenu)
		ws.mu.Unlock()
		s.notifyFailure(userID, err)
		return nil, err
	}

	evidence := j.evidence
	if evidence == nil && len(j.images) > 0 {
		evidence = &j.images[j.primary]
	}
	s.commitLocked(ws, userID, chatID, outcome, evidence)
	s.setStateLocked(ctx, userID, chatID, entity.StateReviewing)
	ws.mu.Unlock()

	s.notifyOutcome(userID, outcome)
	return outcome, nil
}

// setStateLocked ends a run. The workspace lock is held so an Exit cannot
// interleave with the state change.
func (s *InspectionService) setStateLocked(ctx context.Context, userID, chatID int64, state entity.SessionState) {
	if _, err := s.deps.Sessions.SetState(ctx, userID, chatID, state); err != nil {
		s.logger.Warn("session state not saved", "session", userID, "error", err)
	}
}

func (s *InspectionService) commitLocked(ws *Workspace, userID, chatID int64, outcome *AnalysisOutcome, evidence *entity.Image) {
	entry := outcome.Entry
	ws.history.Add(entry)
	if evidence != nil {
		ws.evidence[entry.ID] = *evidence
	}
	kept := make(map[string]bool, ws.history.Len())
	for _, e := range ws.history.Entries() {
		kept[e.ID] = true
	}
	for id := range ws.evidence {
		if !kept[id] {
			delete(ws.evidence, id)
		}
	}

	urls := append([]string(nil), entry.ImageURLs...)
	ws.view = NewResultsView(entry, outcome.FixPacks, func(ctx context.Context) error {
		_, err := s.run(ctx, ws, userID, chatID, job{urls: urls, evidence: evidence})
		return err
	})
	ws.clearPendingLocked()
}

func (s *InspectionService) notifyFailure(userID int64, err error) {
	if errors.Is(err, context.Canceled) {
		s.notify(userID, entity.NoticeInfo, "Analysis cancelled", "The analysis was stopped.")
		return
	}

	title := "Analysis failed"
	switch apperrors.KindOf(err) {
	case apperrors.KindInput:
		title = "Nothing to analyse"
	case apperrors.KindUpload:
		title = "Upload failed"
	case apperrors.KindAnalysisTransport:
		title = "Analysis service unreachable"
	}
	msg := apperrors.UserMessage(err)
	if apperrors.Retriable(err) {
		msg = strings.TrimSuffix(msg, ".") + ". You can retry."
	}
	s.notify(userID, entity.NoticeError, title, msg)
}

func (s *InspectionService) notifyOutcome(userID int64, outcome *AnalysisOutcome) {
	result := outcome.Entry.Result
	switch {
	case outcome.Degraded:
		s.notify(userID, entity.NoticeWarning, "Analysis incomplete", "The images could not be fully analysed. Check the tips and retry.")
	case !result.HasFindings():
		s.notify(userID, entity.NoticeInfo, "No Faults Detected", "No visible issues were found in these photos.")
	default:
		s.notify(userID, entity.NoticeInfo, "Analysis complete",
			fmt.Sprintf("%d finding(s), safety rating %d/%d.", len(result.Findings), result.ComplianceSummary.SafetyRating, entity.MaxSafetyRating))
	}
}

// View returns the results being shown, or nil before the first analysis.
func (s *InspectionService) View(userID int64) *ResultsView {
	ws := s.Workspace(userID)
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.view
}

// History returns past analyses, newest first.
func (s *InspectionService) History(userID int64) []entity.AnalysisHistoryEntry {
	ws := s.Workspace(userID)
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.history.Entries()
}

// Open shows a history entry in the results view. Empty id means latest.
func (s *InspectionService) Open(userID, chatID int64, entryID string) (*ResultsView, error) {
	ws := s.Workspace(userID)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	entry, err := ws.entryLocked(entryID)
	if err != nil {
		return nil, err
	}
	var evidence *entity.Image
	if ev, ok := ws.evidence[entry.ID]; ok {
		evidence = &ev
	}
	urls := append([]string(nil), entry.ImageURLs...)
	ws.view = NewResultsView(entry, entity.DeriveFixPacks(entry.Result.Findings), func(ctx context.Context) error {
		_, err := s.run(ctx, ws, userID, chatID, job{urls: urls, evidence: evidence})
		return err
	})
	return ws.view, nil
}

// ExportPDF renders a history entry as a PDF report. A failure leaves the
// analysis untouched.
func (s *InspectionService) ExportPDF(userID int64, entryID string) ([]byte, error) {
	const op = "inspection.export"
	ws := s.Workspace(userID)
	ws.mu.Lock()
	entry, err := ws.entryLocked(entryID)
	ws.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if s.deps.Exporter == nil {
		return nil, apperrors.New(apperrors.KindExport, op, "report export is not configured")
	}

	pdf, err := s.deps.Exporter.Export(entry.Result, s.now())
	s.deps.Metrics.ObserveExport(err == nil)
	if err != nil {
		err = apperrors.Wrap(apperrors.KindExport, op, "could not create the PDF report", err)
		s.logger.Warn("export failed", "session", userID, "entry", entry.ID, "error", err)
		s.notify(userID, entity.NoticeError, "Export failed", apperrors.UserMessage(err))
		return nil, err
	}
	return pdf, nil
}

// RenderEvidence draws the finding boxes over the primary image of an entry.
func (s *InspectionService) RenderEvidence(userID int64, entryID string) (entity.Image, error) {
	const op = "inspection.evidence"
	ws := s.Workspace(userID)
	ws.mu.Lock()
	entry, err := ws.entryLocked(entryID)
	img, ok := ws.evidence[entry.ID]
	ws.mu.Unlock()
	if err != nil {
		return entity.Image{}, err
	}
	if !ok {
		return entity.Image{}, apperrors.New(apperrors.KindInput, op, "the original photo is no longer available")
	}
	if s.deps.Renderer == nil {
		return img, nil
	}
	return s.deps.Renderer.Render(img, entry.Result.Findings)
}

// AddToEICR records finding index of an entry as an observation on the
// given EICR report.
func (s *InspectionService) AddToEICR(ctx context.Context, userID int64, entryID string, index int, reportID string) (entity.Observation, error) {
	const op = "inspection.eicr"
	if s.deps.Observations == nil {
		return entity.Observation{}, apperrors.New(apperrors.KindStorage, op, "EICR record store is not configured")
	}

	ws := s.Workspace(userID)
	ws.mu.Lock()
	entry, err := ws.entryLocked(entryID)
	ws.mu.Unlock()
	if err != nil {
		return entity.Observation{}, err
	}
	if index < 0 || index >= len(entry.Result.Findings) {
		return entity.Observation{}, apperrors.New(apperrors.KindInput, op, fmt.Sprintf("no finding %d in this analysis", index+1))
	}

	obs, err := s.deps.Observations.Add(ctx, entity.ObservationFromFinding(reportID, entry.Result.Findings[index]))
	if err != nil {
		s.notify(userID, entity.NoticeError, "Not added to EICR", apperrors.UserMessage(err))
		return entity.Observation{}, err
	}
	s.notify(userID, entity.NoticeInfo, "Added to EICR", fmt.Sprintf("%s observation added to report %s.", obs.EICRCode, obs.ReportID))
	return obs, nil
}

// Observations lists what has been handed to an EICR report.
func (s *InspectionService) Observations(ctx context.Context, reportID string) ([]entity.Observation, error) {
	if s.deps.Observations == nil {
		return nil, apperrors.New(apperrors.KindStorage, "inspection.eicr", "EICR record store is not configured")
	}
	return s.deps.Observations.List(ctx, reportID)
}

func (s *InspectionService) notify(userID int64, level entity.NoticeLevel, title, message string) {
	if s.deps.Notifier == nil {
		return
	}
	s.deps.Notifier.Notify(entity.Notification{SessionID: userID, Level: level, Title: title, Message: message})
}

func (ws *Workspace) entryLocked(id string) (entity.AnalysisHistoryEntry, error) {
	var (
		entry entity.AnalysisHistoryEntry
		ok    bool
	)
	if id == "" {
		entry, ok = ws.history.Latest()
	} else {
		entry, ok = ws.history.Get(id)
	}
	if !ok {
		return entity.AnalysisHistoryEntry{}, apperrors.New(apperrors.KindInput, "inspection.history", "no such analysis")
	}
	return entry, nil
}

func (ws *Workspace) pendingEvidenceLocked() *entity.Image {
	if ws.pendingPrimary < 0 || ws.pendingPrimary >= len(ws.pendingImages) {
		return nil
	}
	img := ws.pendingImages[ws.pendingPrimary]
	return &img
}

func (ws *Workspace) clearPendingLocked() {
	ws.pendingImages = nil
	ws.pendingPrimary = 0
	ws.pendingURLs = nil
}

// bindContext derives a context cancelled by either parent or the workspace.
func bindContext(parent, workspace context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(workspace, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func errBusy() error {
	return apperrors.New(apperrors.KindInput, "inspection", "an analysis is already running")
}
