package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "eicr-vision/internal/platform/errors"
)

const envPrefix = "EICR"

// Analysis backends.
const (
	BackendFunction = "function"
	BackendOpenAI   = "openai"
)

type Config struct {
	Telegram    TelegramConfig   `mapstructure:"telegram"`
	HTTP        HTTPConfig       `mapstructure:"http"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Analysis    AnalysisConfig   `mapstructure:"analysis"`
	OpenAI      OpenAIConfig     `mapstructure:"openai"`
	Preprocess  PreprocessConfig `mapstructure:"preprocess"`
	Quality     QualityConfig    `mapstructure:"quality"`
	Camera      CameraConfig     `mapstructure:"camera"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Session     SessionConfig    `mapstructure:"session"`
	Log         LogConfig        `mapstructure:"log"`
	PresetsFile string           `mapstructure:"presets_file"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// StorageConfig points at the hosted project that stores uploads. The
// analysis function lives in the same project unless analysis.url is set.
type StorageConfig struct {
	URL       string        `mapstructure:"url"`
	APIKey    string        `mapstructure:"api_key"`
	Bucket    string        `mapstructure:"bucket"`
	Namespace string        `mapstructure:"namespace"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type AnalysisConfig struct {
	Backend             string        `mapstructure:"backend"`
	URL                 string        `mapstructure:"url"`
	Function            string        `mapstructure:"function"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	EnableBoundingBoxes bool          `mapstructure:"enable_bounding_boxes"`
	FocusAreas          []string      `mapstructure:"focus_areas"`
	RemoveBackground    bool          `mapstructure:"remove_background"`
	BS7671Compliance    bool          `mapstructure:"bs7671_compliance"`
}

type OpenAIConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

type PreprocessConfig struct {
	MaxWidth     int     `mapstructure:"max_width"`
	Quality      float64 `mapstructure:"quality"`
	AllowUpscale bool    `mapstructure:"allow_upscale"`
}

type QualityConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

// CameraConfig selects the capture devices used by the capture command.
type CameraConfig struct {
	EnvironmentDevice int    `mapstructure:"environment_device"`
	UserDevice        int    `mapstructure:"user_device"`
	Facing            string `mapstructure:"facing"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type SessionConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	HistoryLimit int           `mapstructure:"history_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("http.addr", ":8080")

	v.SetDefault("storage.url", "")
	v.SetDefault("storage.api_key", "")
	v.SetDefault("storage.bucket", "eicr-images")
	v.SetDefault("storage.namespace", "analysis")
	v.SetDefault("storage.timeout", 30*time.Second)

	v.SetDefault("analysis.backend", BackendFunction)
	v.SetDefault("analysis.url", "")
	v.SetDefault("analysis.function", "analyze-eicr-image")
	v.SetDefault("analysis.timeout", 2*time.Minute)
	v.SetDefault("analysis.confidence_threshold", 0.7)
	v.SetDefault("analysis.enable_bounding_boxes", true)
	v.SetDefault("analysis.focus_areas", []string{})
	v.SetDefault("analysis.remove_background", false)
	v.SetDefault("analysis.bs7671_compliance", true)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.max_tokens", 4096)

	v.SetDefault("preprocess.max_width", 1920)
	v.SetDefault("preprocess.quality", 0.85)
	v.SetDefault("preprocess.allow_upscale", false)

	v.SetDefault("quality.threshold", 0.7)

	v.SetDefault("camera.environment_device", 0)
	v.SetDefault("camera.user_device", 1)
	v.SetDefault("camera.facing", "environment")

	v.SetDefault("database.path", "eicr.db")

	v.SetDefault("session.ttl", 2*time.Hour)
	v.SetDefault("session.history_limit", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("presets_file", "")
}

// Load reads .env (if present), an optional YAML file and EICR_* variables,
// in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the bare name still works for existing deployments
	if err := v.BindEnv("telegram.token", envPrefix+"_TELEGRAM_TOKEN", "TELEGRAM_TOKEN"); err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, "config.load", "bind telegram token", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.Wrap(apperrors.KindConfig, "config.load", fmt.Sprintf("read %s", configFile), err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, "config.load", "decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that are wrong regardless of which command runs.
// Credentials are checked when the component that needs them is built.
func (c *Config) Validate() error {
	var errs []error

	switch c.Analysis.Backend {
	case BackendFunction, BackendOpenAI:
	default:
		errs = append(errs, fmt.Errorf("analysis.backend must be %q or %q, got %q", BackendFunction, BackendOpenAI, c.Analysis.Backend))
	}
	if c.Analysis.ConfidenceThreshold < 0.1 || c.Analysis.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("analysis.confidence_threshold must be within [0.1, 1], got %v", c.Analysis.ConfidenceThreshold))
	}
	if c.Preprocess.MaxWidth <= 0 {
		errs = append(errs, fmt.Errorf("preprocess.max_width must be positive, got %d", c.Preprocess.MaxWidth))
	}
	if c.Preprocess.Quality <= 0 || c.Preprocess.Quality > 1 {
		errs = append(errs, fmt.Errorf("preprocess.quality must be within (0, 1], got %v", c.Preprocess.Quality))
	}
	if c.Quality.Threshold < 0 || c.Quality.Threshold > 1 {
		errs = append(errs, fmt.Errorf("quality.threshold must be within [0, 1], got %v", c.Quality.Threshold))
	}
	switch c.Camera.Facing {
	case "environment", "user":
	default:
		errs = append(errs, fmt.Errorf("camera.facing must be environment or user, got %q", c.Camera.Facing))
	}

	if err := errors.Join(errs...); err != nil {
		return apperrors.Wrap(apperrors.KindConfig, "config.validate", "invalid configuration", err)
	}
	return nil
}

// AnalysisURL is the base URL of the analysis function project.
func (c *Config) AnalysisURL() string {
	if c.Analysis.URL != "" {
		return c.Analysis.URL
	}
	return c.Storage.URL
}

// RequireStorage reports missing upload credentials.
func (c *Config) RequireStorage() error {
	if c.Storage.URL == "" || c.Storage.APIKey == "" {
		return apperrors.New(apperrors.KindConfig, "config", "storage.url and storage.api_key are required (EICR_STORAGE_URL, EICR_STORAGE_API_KEY)")
	}
	return nil
}

// RequireAnalyzer reports missing credentials for the selected backend.
func (c *Config) RequireAnalyzer() error {
	switch c.Analysis.Backend {
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return apperrors.New(apperrors.KindConfig, "config", "openai.api_key is required for the openai backend (EICR_OPENAI_API_KEY)")
		}
	default:
		if c.AnalysisURL() == "" || c.Storage.APIKey == "" {
			return apperrors.New(apperrors.KindConfig, "config", "analysis.url or storage.url, and storage.api_key, are required for the function backend")
		}
	}
	return nil
}
