package container

import (
	"log/slog"
	"net/http"

	"eicr-vision/config"
	app "eicr-vision/internal/application"
	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
	"eicr-vision/internal/infrastructure/inference"
	"eicr-vision/internal/infrastructure/metrics"
	"eicr-vision/internal/infrastructure/notify"
	"eicr-vision/internal/infrastructure/objectstore"
	"eicr-vision/internal/infrastructure/report"
	"eicr-vision/internal/infrastructure/storage"
	"eicr-vision/internal/infrastructure/vision"
)

// Options override what the config cannot express.
type Options struct {
	Logger *slog.Logger
	// HTTPClient is used for storage and analysis calls when set.
	HTTPClient *http.Client
	// LiveCamera opens the configured capture devices for every session.
	// Without it, photos only arrive by push (bot, REST, files).
	LiveCamera bool
}

type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Presets []entity.CapturePreset

	Notifications *notify.Bus
	Metrics       *metrics.Metrics
	Observations  *storage.ObservationStore

	SessionService    *app.SessionService
	AnalysisService   *app.AnalysisService
	InspectionService *app.InspectionService
}

func New(cfg *config.Config, opts Options) (*Container, error) {
	if err := cfg.RequireStorage(); err != nil {
		return nil, err
	}
	if err := cfg.RequireAnalyzer(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	presets, err := config.LoadPresets(cfg.PresetsFile)
	if err != nil {
		return nil, err
	}

	m, err := metrics.New()
	if err != nil {
		return nil, err
	}

	observations, err := storage.OpenObservationStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	bus := notify.NewBus(logger)

	uploads := objectstore.NewSupabaseStorage(objectstore.Config{
		BaseURL:   cfg.Storage.URL,
		APIKey:    cfg.Storage.APIKey,
		Bucket:    cfg.Storage.Bucket,
		Namespace: cfg.Storage.Namespace,
		Timeout:   cfg.Storage.Timeout,
	}, opts.HTTPClient)

	sessions := app.NewSessionService(storage.NewMemorySessionRepository())
	analysis := app.NewAnalysisService(uploads, newAnalyzer(cfg, opts.HTTPClient, logger), vision.NewGrabCutRemover(), m, logger)

	var camera func(int64) port.Camera
	if opts.LiveCamera {
		camera = func(int64) port.Camera {
			return vision.NewGoCVCamera(cfg.Camera.EnvironmentDevice, cfg.Camera.UserDevice)
		}
	}

	inspection := app.NewInspectionService(app.InspectionDeps{
		Sessions:     sessions,
		Analysis:     analysis,
		Camera:       camera,
		Preprocessor: vision.NewPreprocessor(cfg.Preprocess.MaxWidth, cfg.Preprocess.Quality, cfg.Preprocess.AllowUpscale),
		Gate:         vision.NewQualityGate(),
		Exporter:     report.NewPDFExporter(),
		Renderer:     vision.NewOverlayRenderer(),
		Observations: observations,
		Notifier:     bus,
		Metrics:      m,
		Logger:       logger,
	}, app.InspectionConfig{
		Presets:      presets,
		Settings:     analysisSettings(cfg),
		HistoryLimit: cfg.Session.HistoryLimit,
		WorkspaceTTL: cfg.Session.TTL,
		Wizard: app.WizardOptions{
			QualityThreshold: cfg.Quality.Threshold,
			Facing:           port.Facing(cfg.Camera.Facing),
		},
	})

	return &Container{
		Config:            cfg,
		Logger:            logger,
		Presets:           presets,
		Notifications:     bus,
		Metrics:           m,
		Observations:      observations,
		SessionService:    sessions,
		AnalysisService:   analysis,
		InspectionService: inspection,
	}, nil
}

// Close releases workspaces (and their cameras) and the database.
func (c *Container) Close() error {
	c.InspectionService.Close()
	return c.Observations.Close()
}

func newAnalyzer(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) port.Analyzer {
	if cfg.Analysis.Backend == config.BackendOpenAI {
		if httpClient == nil {
			httpClient = &http.Client{Timeout: cfg.Analysis.Timeout}
		}
		return inference.NewOpenAIClient(inference.OpenAIConfig{
			APIKey:    cfg.OpenAI.APIKey,
			BaseURL:   cfg.OpenAI.BaseURL,
			Model:     cfg.OpenAI.Model,
			MaxTokens: cfg.OpenAI.MaxTokens,
			Logger:    logger,
		}, httpClient)
	}
	return inference.NewFunctionClient(inference.FunctionConfig{
		BaseURL:  cfg.AnalysisURL(),
		APIKey:   cfg.Storage.APIKey,
		Function: cfg.Analysis.Function,
		Timeout:  cfg.Analysis.Timeout,
		Logger:   logger,
	}, httpClient)
}

func analysisSettings(cfg *config.Config) entity.AnalysisSettings {
	return entity.AnalysisSettings{
		ConfidenceThreshold: cfg.Analysis.ConfidenceThreshold,
		EnableBoundingBoxes: cfg.Analysis.EnableBoundingBoxes,
		FocusAreas:          cfg.Analysis.FocusAreas,
		RemoveBackground:    cfg.Analysis.RemoveBackground,
		BS7671Compliance:    cfg.Analysis.BS7671Compliance,
	}
}
