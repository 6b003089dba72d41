package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/infrastructure/notify"
	apperrors "eicr-vision/internal/platform/errors"
)

// SessionHeader selects the workspace a request acts on.
const SessionHeader = "X-Session-ID"

const defaultSession = int64(1)

func (h *Handler) session(c *gin.Context) (int64, bool) {
	raw := c.GetHeader(SessionHeader)
	if raw == "" {
		return defaultSession, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(c, apperrors.New(apperrors.KindInput, "rest.session", "invalid "+SessionHeader+" header"), nil)
		return 0, false
	}
	return id, true
}

// collect gathers notifications for the session until stop is called.
func (h *Handler) collect(sessionID int64) (items func() []entity.Notification, stop func()) {
	collector := &notify.Collector{SessionID: sessionID}
	if h.events == nil {
		return collector.Items, func() {}
	}
	unsubscribe, err := h.events.Subscribe(collector.Handle)
	if err != nil {
		h.logger.Warn("notification subscribe failed", "error", err)
		return collector.Items, func() {}
	}
	return collector.Items, unsubscribe
}

func (h *Handler) HandleListPresets(c *gin.Context) {
	c.JSON(http.StatusOK, h.inspection.Presets())
}

func (h *Handler) HandleGetSettings(c *gin.Context) {
	sid, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.inspection.Settings(sid))
}

func (h *Handler) HandleUpdateSettings(c *gin.Context) {
	sid, ok := h.session(c)
	if !ok {
		return
	}
	var settings entity.AnalysisSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		respondError(c, apperrors.Wrap(apperrors.KindInput, "rest.settings", "invalid settings body", err), nil)
		return
	}
	c.JSON(http.StatusOK, h.inspection.SetSettings(sid, settings))
}

// HandleCreateAnalysis accepts multipart "images" files, an optional
// "primary" index and optional "settings" JSON.
func (h *Handler) HandleCreateAnalysis(c *gin.Context) {
	const op = "rest.analyze"
	sid, ok := h.session(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondTooLarge(c, tooLarge.Limit)
			return
		}
		respondError(c, apperrors.Wrap(apperrors.KindInput, op, "expected a multipart form", err), nil)
		return
	}
	headers := form.File["images"]
	if len(headers) == 0 {
		respondError(c, apperrors.New(apperrors.KindInput, op, "no images in the images field"), nil)
		return
	}

	images := make([]entity.Image, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respondError(c, apperrors.Wrap(apperrors.KindInput, op, fmt.Sprintf("cannot open %s", fh.Filename), err), nil)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondError(c, apperrors.Wrap(apperrors.KindInput, op, fmt.Sprintf("cannot read %s", fh.Filename), err), nil)
			return
		}
		images = append(images, entity.NewImage(data, fh.Filename, fh.Header.Get("Content-Type")))
	}

	primary := 0
	if raw := c.PostForm("primary"); raw != "" {
		primary, err = strconv.Atoi(raw)
		if err != nil {
			respondError(c, apperrors.Wrap(apperrors.KindInput, op, "primary must be an integer", err), nil)
			return
		}
	}
	if raw := c.PostForm("settings"); raw != "" {
		var settings entity.AnalysisSettings
		if err := json.Unmarshal([]byte(raw), &settings); err != nil {
			respondError(c, apperrors.Wrap(apperrors.KindInput, op, "settings must be JSON", err), nil)
			return
		}
		h.inspection.SetSettings(sid, settings)
	}

	notes, stop := h.collect(sid)
	defer stop()

	if _, err := h.inspection.AnalyzeImages(c.Request.Context(), sid, sid, images, primary); err != nil {
		respondError(c, err, notes())
		return
	}
	c.JSON(http.StatusCreated, newAnalysisResponse(h.inspection.View(sid), notes()))
}

func (h *Handler) HandleListAnalyses(c *gin.Context) {
	sid, ok := h.session(c)
	if !ok {
		return
	}
	entries := h.inspection.History(sid)
	items := make([]historyItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, historyItem{
			ID:         e.ID,
			CapturedAt: e.CapturedAt,
			Images:     len(e.ImageURLs),
			Findings:   len(e.Result.Findings),
			Summary:    e.Result.ComplianceSummary,
		})
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) HandleGetAnalysis(c *gin.Context) {
	sid, ok := h.session(c)
	if !ok {
		return
	}
	view, err := h.inspection.Open(sid, sid, c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, newAnalysisResponse(view, nil))
}

// HandleRetryAnalysis re-runs the analysis of an entry on its uploaded images.
func (h *Handler) HandleRetryAnalysis(c *gin.Context) {
	sid, ok := h.session(c)
	if !ok {
		return
	}
	view, err := h.inspection.Open(sid, sid, c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}

	notes, stop := h.collect(sid)
	defer stop()
	if err := view.Retry(c.Request.Context()); err != nil {
		respondError(c, err, notes())
		return
	}
	c.JSON(http.StatusCreated, newAnalysisResponse(h.inspection.View(sid), notes()))
}

// HandleRetryLast resumes the last failed analysis of the session.
func (h *Handler) HandleRetryLast(c *gin.Context) {
	sid, ok := h.session(c)
	if !ok {
		return
	}
	notes, stop := h.collect(sid)
	defer stop()
	if _, err := h.inspection.Retry(c.Request.Context(), sid, sid); err != nil {
		respondError(c, err, notes())
		return
	}
	c.JSON(http.StatusCreated, newAnalysisResponse(h.inspection.View(sid), notes()))
}

func (h *Handler) HandleExportReport(c *gin.Context) {
	sid, ok := h.session(c)
	if !ok {
		return
	}
	id := c.Param("id")
	pdf, err := h.inspection.ExportPDF(sid, id)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="eicr-analysis-%s.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *Handler) HandleEvidence(c *gin.Context) {
	sid, ok := h.session(c)
	if !ok {
		return
	}
	img, err := h.inspection.RenderEvidence(sid, c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.Data(http.StatusOK, img.MIMEType, img.Data)
}

type addToEICRRequest struct {
	ReportID string `json:"report_id" binding:"required"`
}

func (h *Handler) HandleAddToEICR(c *gin.Context) {
	const op = "rest.eicr"
	sid, ok := h.session(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondError(c, apperrors.Wrap(apperrors.KindInput, op, "finding index must be an integer", err), nil)
		return
	}
	var req addToEICRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(apperrors.KindInput, op, "report_id is required", err), nil)
		return
	}

	obs, err := h.inspection.AddToEICR(c.Request.Context(), sid, c.Param("id"), index, req.ReportID)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, obs)
}

func (h *Handler) HandleListObservations(c *gin.Context) {
	list, err := h.inspection.Observations(c.Request.Context(), c.Param("report"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	if list == nil {
		list = []entity.Observation{}
	}
	c.JSON(http.StatusOK, list)
}
