package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
	apperrors "eicr-vision/internal/platform/errors"
	"eicr-vision/internal/platform/logging"
)

// FunctionConfig addresses the hosted analysis function.
type FunctionConfig struct {
	BaseURL  string
	APIKey   string
	Function string // e.g. "visual-analysis"
	Timeout  time.Duration
	Logger   *slog.Logger
}

// FunctionClient invokes the analysis function over HTTP.
type FunctionClient struct {
	cfg    FunctionConfig
	client *http.Client
}

// NewFunctionClient builds the client. A nil httpClient gets a client with cfg.Timeout.
func NewFunctionClient(cfg FunctionConfig, httpClient *http.Client) *FunctionClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &FunctionClient{cfg: cfg, client: httpClient}
}

func (c *FunctionClient) endpoint() string {
	return fmt.Sprintf("%s/functions/v1/%s", c.cfg.BaseURL, c.cfg.Function)
}

// Analyze posts the request and decodes the envelope. Failures to reach the
// function, and 5xx answers without an error envelope, are transport errors.
func (c *FunctionClient) Analyze(ctx context.Context, req entity.AnalysisRequest) (*entity.AnalysisResult, error) {
	const op = "inference.function"

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindAnalysisTransport, op, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindAnalysisTransport, op, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindAnalysisTransport, op, "could not reach the analysis service", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindAnalysisTransport, op, "read response", err)
	}

	if resp.StatusCode >= 400 {
		var env envelope
		if json.Unmarshal(body, &env) == nil && env.Error != "" {
			return nil, apperrors.New(apperrors.KindAnalysisApplication, op, env.Error)
		}
		kind := apperrors.KindAnalysisApplication
		if resp.StatusCode >= 500 {
			kind = apperrors.KindAnalysisTransport
		}
		return nil, apperrors.New(kind, op, "analysis service returned "+resp.Status)
	}

	return parseAnalysis(op, body, c.cfg.Logger)
}

var _ port.Analyzer = (*FunctionClient)(nil)
