package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"eicr-vision/internal/domain/entity"
	apperrors "eicr-vision/internal/platform/errors"
)

type presetFile struct {
	Presets []entity.CapturePreset `yaml:"presets"`
}

// LoadPresets reads the preset catalog from a YAML file. An empty path
// returns the built-in catalog.
func LoadPresets(path string) ([]entity.CapturePreset, error) {
	const op = "config.presets"
	if path == "" {
		return entity.DefaultPresets(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, op, "read preset file", err)
	}
	return ParsePresets(data)
}

// ParsePresets decodes and validates a YAML preset catalog.
func ParsePresets(data []byte) ([]entity.CapturePreset, error) {
	const op = "config.presets"

	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, op, "decode preset file", err)
	}
	if len(file.Presets) == 0 {
		return nil, apperrors.New(apperrors.KindConfig, op, "preset file defines no presets")
	}

	seen := make(map[string]bool, len(file.Presets))
	for i := range file.Presets {
		p := &file.Presets[i]
		switch {
		case p.ID == "":
			return nil, apperrors.New(apperrors.KindConfig, op, fmt.Sprintf("preset %d has no id", i+1))
		case seen[p.ID]:
			return nil, apperrors.New(apperrors.KindConfig, op, fmt.Sprintf("duplicate preset id %q", p.ID))
		case len(p.Checklist) == 0:
			return nil, apperrors.New(apperrors.KindConfig, op, fmt.Sprintf("preset %q has an empty checklist", p.ID))
		}
		seen[p.ID] = true
		if p.Name == "" {
			p.Name = p.ID
		}
		if p.EstimatedPhotos <= 0 {
			p.EstimatedPhotos = len(p.Checklist)
		}
	}
	return file.Presets, nil
}
