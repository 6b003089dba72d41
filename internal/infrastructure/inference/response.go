// Package inference calls the remote analysis service.
package inference

import (
	"encoding/json"
	"log/slog"

	"eicr-vision/internal/domain/entity"
	apperrors "eicr-vision/internal/platform/errors"
)

// envelope is the response body of the analysis function.
type envelope struct {
	Analysis *entity.AnalysisResult `json:"analysis"`
	Error    string                 `json:"error"`
}

// parseAnalysis decodes an envelope. An "error" field or a body without an
// analysis is an application error. Off-list codes and priorities are
// resolved by Sanitize so a partly unstructured answer still reaches the
// degraded results screen.
func parseAnalysis(op string, body []byte, logger *slog.Logger) (*entity.AnalysisResult, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		// The envelope may be intact even if the analysis is not.
		var bare struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &bare) == nil && bare.Error != "" {
			return nil, apperrors.New(apperrors.KindAnalysisApplication, op, bare.Error)
		}
		return nil, apperrors.Wrap(apperrors.KindAnalysisApplication, op, "analysis response is malformed", err)
	}
	if env.Error != "" {
		return nil, apperrors.New(apperrors.KindAnalysisApplication, op, env.Error)
	}
	if env.Analysis == nil {
		return nil, apperrors.New(apperrors.KindAnalysisApplication, op, "analysis response contained no analysis")
	}

	result := env.Analysis
	for _, note := range result.Sanitize() {
		logger.Warn("analysis response adjusted", "op", op, "note", note)
	}
	if result.IsDegraded() {
		logger.Warn("analysis service could not structure its output", "op", op)
	}
	if result.Findings == nil {
		result.Findings = []entity.Finding{}
	}
	if result.Recommendations == nil {
		result.Recommendations = []entity.Recommendation{}
	}
	return result, nil
}
