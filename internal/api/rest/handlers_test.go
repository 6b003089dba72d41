package rest

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eicr-vision/config"
	"eicr-vision/internal/container"
	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/platform/logging"
)

const (
	projectURL  = "https://proj.supabase.co"
	uploadURL   = `=~^https://proj\.supabase\.co/storage/v1/object/eicr-images/analysis/`
	functionURL = projectURL + "/functions/v1/analyze-eicr-image"
)

const analysisBody = `{
  "analysis": {
    "findings": [
      {"description": "Scorching at MCB terminal", "eicr_code": "C2", "confidence": 0.87,
       "bs7671_clauses": ["526.1"], "location": "Way 4", "fix_guidance": "Re-terminate",
       "bounding_box": {"x": 0.4, "y": 0.3, "width": 0.1, "height": 0.2, "confidence": 0.8, "label": "MCB"}}
    ],
    "recommendations": [
      {"action": "Re-terminate conductor", "priority": "urgent", "eicr_code": "C2"}
    ],
    "compliance_summary": {"overall_assessment": "unsatisfactory", "c1_count": 0, "c2_count": 1, "c3_count": 0, "fi_count": 0, "safety_rating": 6},
    "summary": "One C2 observation"
  }
}`

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router  *gin.Engine
	handler *Handler
	mock    *httpmock.MockTransport
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Storage: config.StorageConfig{
			URL:       projectURL,
			APIKey:    "service-key",
			Bucket:    "eicr-images",
			Namespace: "analysis",
			Timeout:   5 * time.Second,
		},
		Analysis: config.AnalysisConfig{
			Backend:             config.BackendFunction,
			Function:            "analyze-eicr-image",
			Timeout:             5 * time.Second,
			ConfidenceThreshold: 0.7,
			EnableBoundingBoxes: true,
			BS7671Compliance:    true,
		},
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "eicr.db")},
		Session:  config.SessionConfig{TTL: time.Hour, HistoryLimit: 5},
	}

	mock := httpmock.NewMockTransport()
	c, err := container.New(cfg, container.Options{
		Logger:     logging.Discard(),
		HTTPClient: &http.Client{Transport: mock},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	h := NewHandler(c.InspectionService, c.Notifications, c.Logger)
	return &testServer{router: NewRouter(h, c.Metrics.Handler()), handler: h, mock: mock}
}

func (s *testServer) storageOK() {
	s.mock.RegisterResponder(http.MethodPost, uploadURL,
		httpmock.NewStringResponder(http.StatusOK, `{"Key":"eicr-images/analysis/x.jpg"}`))
}

func (s *testServer) analysisOK() {
	s.mock.RegisterResponder(http.MethodPost, functionURL,
		httpmock.NewStringResponder(http.StatusOK, analysisBody))
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createAnalysis(t *testing.T, files int) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for i := 0; i < files; i++ {
		part, err := w.CreateFormFile("images", "board-"+string(rune('a'+i))+".png")
		require.NoError(t, err)
		_, err = part.Write(pngBytes(t, 64, 48))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return s.do(t, req)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndPresets(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/presets", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	presets := decode[[]entity.CapturePreset](t, rec)
	assert.NotEmpty(t, presets)
}

func TestSettings_UpdateIsNormalized(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", strings.NewReader(`{"confidence_threshold": 5}`))
	req.Header.Set("Content-Type", "application/json")
	rec := s.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode[entity.AnalysisSettings](t, rec).ConfidenceThreshold)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil))
	assert.Equal(t, 1.0, decode[entity.AnalysisSettings](t, rec).ConfidenceThreshold)
}

func TestInvalidSessionHeader(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil)
	req.Header.Set(SessionHeader, "abc")
	rec := s.do(t, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "input", string(decode[errorResponse](t, rec).Kind))
}

func TestCreateAnalysis(t *testing.T) {
	s := newTestServer(t)
	s.storageOK()
	s.analysisOK()

	rec := s.createAnalysis(t, 2)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[analysisResponse](t, rec)
	assert.NotEmpty(t, resp.ID)
	assert.Len(t, resp.ImageURLs, 2)
	assert.True(t, strings.HasPrefix(resp.ImageURLs[0], projectURL+"/storage/v1/object/public/eicr-images/analysis/"))
	assert.Equal(t, "findings", string(resp.Branch))
	require.Len(t, resp.FixPacks, 1)
	assert.Equal(t, entity.CodeC2, resp.FixPacks[0].EICRCode)
	require.NotEmpty(t, resp.Notifications)
	assert.Equal(t, "Analysis complete", resp.Notifications[len(resp.Notifications)-1].Title)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]historyItem](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, resp.ID, history[0].ID)
	assert.Equal(t, 2, history[0].Images)
	assert.Equal(t, 1, history[0].Findings)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+resp.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, resp.ID, decode[analysisResponse](t, rec).ID)
}

func TestCreateAnalysis_NoImages(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("primary", "0"))
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	rec := s.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, s.mock.GetTotalCallCount())
}

func TestCreateAnalysis_BodyTooLarge(t *testing.T) {
	s := newTestServer(t)
	s.handler.maxUpload = 256

	rec := s.createAnalysis(t, 3)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
	assert.Equal(t, "input", string(decode[errorResponse](t, rec).Kind))
	assert.Zero(t, s.mock.GetTotalCallCount())
}

func TestCreateAnalysis_UndeclaredLengthTooLarge(t *testing.T) {
	s := newTestServer(t)
	s.handler.maxUpload = 256

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("images", "board.png")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{0xAB}, 16<<10))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", io.NopCloser(&body))
	req.ContentLength = -1
	req.Header.Set("Content-Type", w.FormDataContentType())

	rec := s.do(t, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
	assert.Zero(t, s.mock.GetTotalCallCount())
}

func TestCreateAnalysis_UploadFailureThenRetry(t *testing.T) {
	s := newTestServer(t)
	s.mock.RegisterResponder(http.MethodPost, uploadURL,
		httpmock.NewStringResponder(http.StatusBadRequest, `{"message":"Bucket not found"}`))
	s.analysisOK()

	rec := s.createAnalysis(t, 1)
	require.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())
	errResp := decode[errorResponse](t, rec)
	assert.Equal(t, "upload", string(errResp.Kind))
	assert.True(t, errResp.Retriable)
	assert.Contains(t, errResp.Error, "Bucket not found")
	require.NotEmpty(t, errResp.Notifications)
	assert.Equal(t, "Upload failed", errResp.Notifications[len(errResp.Notifications)-1].Title)

	s.storageOK()
	rec = s.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/analyses/retry", nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "findings", string(decode[analysisResponse](t, rec).Branch))
}

func TestCreateAnalysis_ApplicationError(t *testing.T) {
	s := newTestServer(t)
	s.storageOK()
	s.mock.RegisterResponder(http.MethodPost, functionURL,
		httpmock.NewStringResponder(http.StatusOK, `{"error":"Model overloaded"}`))

	rec := s.createAnalysis(t, 1)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, "analysis_application", string(decode[errorResponse](t, rec).Kind))
}

func TestExportAndEvidence(t *testing.T) {
	s := newTestServer(t)
	s.storageOK()
	s.analysisOK()

	rec := s.createAnalysis(t, 1)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[analysisResponse](t, rec).ID

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+id+"/report.pdf", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "eicr-analysis-"+id+".pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+id+"/evidence.jpg", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "image/"))
	assert.NotEmpty(t, rec.Body.Bytes())

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/missing/report.pdf", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddToEICR(t *testing.T) {
	s := newTestServer(t)
	s.storageOK()
	s.analysisOK()

	rec := s.createAnalysis(t, 1)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[analysisResponse](t, rec).ID

	post := func(index, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses/"+id+"/findings/"+index+"/eicr", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return s.do(t, req)
	}

	rec = post("0", `{"report_id":"EICR-42"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	obs := decode[entity.Observation](t, rec)
	assert.Equal(t, "EICR-42", obs.ReportID)
	assert.Equal(t, entity.CodeC2, obs.EICRCode)

	assert.Equal(t, http.StatusBadRequest, post("7", `{"report_id":"EICR-42"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post("x", `{"report_id":"EICR-42"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post("0", `{}`).Code)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/eicr/EICR-42/observations", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]entity.Observation](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Way 4", list[0].Location)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/eicr/EICR-0/observations", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSessionsAreIsolated(t *testing.T) {
	s := newTestServer(t)
	s.storageOK()
	s.analysisOK()

	require.Equal(t, http.StatusCreated, s.createAnalysis(t, 1).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil)
	req.Header.Set(SessionHeader, "2")
	rec := s.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.storageOK()
	s.analysisOK()
	require.Equal(t, http.StatusCreated, s.createAnalysis(t, 1).Code)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `eicr_analyses_total{outcome="success"} 1`)
	assert.Contains(t, rec.Body.String(), `eicr_uploads_total{status="success"} 1`)
}
