package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	app "eicr-vision/internal/application"
	"eicr-vision/internal/domain/entity"
	apperrors "eicr-vision/internal/platform/errors"
)

type errorResponse struct {
	Error         string                `json:"error"`
	Kind          apperrors.Kind        `json:"kind"`
	Retriable     bool                  `json:"retriable"`
	Notifications []entity.Notification `json:"notifications,omitempty"`
}

type analysisResponse struct {
	ID            string                 `json:"id"`
	ImageURLs     []string               `json:"image_urls"`
	CapturedAt    time.Time              `json:"captured_at"`
	Branch        app.Branch             `json:"branch"`
	Filters       []app.Filter           `json:"filters"`
	Result        *entity.AnalysisResult `json:"result"`
	FixPacks      []entity.FixPack       `json:"fix_packs"`
	RecoveryHints []string               `json:"recovery_hints,omitempty"`
	Notifications []entity.Notification  `json:"notifications,omitempty"`
}

func newAnalysisResponse(view *app.ResultsView, notes []entity.Notification) analysisResponse {
	entry := view.Entry()
	resp := analysisResponse{
		ID:            entry.ID,
		ImageURLs:     entry.ImageURLs,
		CapturedAt:    entry.CapturedAt,
		Branch:        view.Branch(),
		Filters:       view.AvailableFilters(),
		Result:        entry.Result,
		FixPacks:      view.FixPacks(),
		Notifications: notes,
	}
	if resp.Branch == app.BranchDegraded {
		resp.RecoveryHints = view.RecoveryHints()
	}
	return resp
}

type historyItem struct {
	ID         string                   `json:"id"`
	CapturedAt time.Time                `json:"captured_at"`
	Images     int                      `json:"images"`
	Findings   int                      `json:"findings"`
	Summary    entity.ComplianceSummary `json:"compliance_summary"`
}

func respondError(c *gin.Context, err error, notes []entity.Notification) {
	c.JSON(statusFor(err), errorResponse{
		Error:         apperrors.UserMessage(err),
		Kind:          apperrors.KindOf(err),
		Retriable:     apperrors.Retriable(err),
		Notifications: notes,
	})
}

func respondTooLarge(c *gin.Context, limit int64) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorResponse{
		Error: fmt.Sprintf("upload exceeds %d bytes", limit),
		Kind:  apperrors.KindInput,
	})
}

func statusFor(err error) int {
	if errors.Is(err, context.Canceled) {
		return 499
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindInput:
		return http.StatusBadRequest
	case apperrors.KindUpload, apperrors.KindAnalysisTransport:
		return http.StatusBadGateway
	case apperrors.KindAnalysisApplication:
		return http.StatusUnprocessableEntity
	case apperrors.KindConfig:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
