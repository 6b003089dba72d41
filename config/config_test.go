package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "eicr-vision/internal/platform/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, BackendFunction, cfg.Analysis.Backend)
	require.Equal(t, 0.7, cfg.Analysis.ConfidenceThreshold)
	require.True(t, cfg.Analysis.EnableBoundingBoxes)
	require.True(t, cfg.Analysis.BS7671Compliance)
	require.Equal(t, 1920, cfg.Preprocess.MaxWidth)
	require.Equal(t, 0.85, cfg.Preprocess.Quality)
	require.Equal(t, 2*time.Hour, cfg.Session.TTL)
	require.Equal(t, 5, cfg.Session.HistoryLimit)
	require.Equal(t, "eicr-images", cfg.Storage.Bucket)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "legacy-token")
	t.Setenv("EICR_STORAGE_URL", "https://project.example.co")
	t.Setenv("EICR_ANALYSIS_BACKEND", "openai")
	t.Setenv("EICR_ANALYSIS_TIMEOUT", "45s")
	t.Setenv("EICR_OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "legacy-token", cfg.Telegram.Token)
	require.Equal(t, "https://project.example.co", cfg.Storage.URL)
	require.Equal(t, "https://project.example.co", cfg.AnalysisURL())
	require.Equal(t, BackendOpenAI, cfg.Analysis.Backend)
	require.Equal(t, 45*time.Second, cfg.Analysis.Timeout)
	require.NoError(t, cfg.RequireAnalyzer())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eicr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9090"
analysis:
  confidence_threshold: 0.5
  focus_areas: [rcd, earthing]
preprocess:
  allow_upscale: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTP.Addr)
	require.Equal(t, 0.5, cfg.Analysis.ConfidenceThreshold)
	require.Equal(t, []string{"rcd", "earthing"}, cfg.Analysis.FocusAreas)
	require.True(t, cfg.Preprocess.AllowUpscale)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("EICR_ANALYSIS_BACKEND", "carrier-pigeon")
	t.Setenv("EICR_PREPROCESS_QUALITY", "2")

	_, err := Load("")
	require.True(t, apperrors.IsKind(err, apperrors.KindConfig))
	require.ErrorContains(t, err, "analysis.backend")
	require.ErrorContains(t, err, "preprocess.quality")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.True(t, apperrors.IsKind(err, apperrors.KindConfig))
}

func TestRequireCredentials(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.True(t, apperrors.IsKind(cfg.RequireStorage(), apperrors.KindConfig))
	require.True(t, apperrors.IsKind(cfg.RequireAnalyzer(), apperrors.KindConfig))

	cfg.Storage.URL = "https://project.example.co"
	cfg.Storage.APIKey = "anon"
	require.NoError(t, cfg.RequireStorage())
	require.NoError(t, cfg.RequireAnalyzer())
}

func TestParsePresets(t *testing.T) {
	presets, err := ParsePresets([]byte(`
presets:
  - id: outbuilding
    name: Outbuilding Supply
    checklist:
      - Submain cable entry
      - Outbuilding distribution board
`))
	require.NoError(t, err)
	require.Len(t, presets, 1)
	require.Equal(t, 2, presets[0].EstimatedPhotos)
	require.Equal(t, 2, presets[0].Steps())

	tests := map[string]string{
		"empty":     "presets: []",
		"no id":     "presets:\n  - name: x\n    checklist: [a]",
		"duplicate": "presets:\n  - id: a\n    checklist: [x]\n  - id: a\n    checklist: [y]",
		"no steps":  "presets:\n  - id: a",
		"bad yaml":  "presets: [",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePresets([]byte(data))
			require.True(t, apperrors.IsKind(err, apperrors.KindConfig))
		})
	}
}

func TestLoadPresets_Default(t *testing.T) {
	presets, err := LoadPresets("")
	require.NoError(t, err)
	require.Equal(t, "consumer-unit", presets[0].ID)
}
