package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
	apperrors "eicr-vision/internal/platform/errors"
	"eicr-vision/internal/platform/logging"
)

// OpenAIConfig selects a vision-capable chat model.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Logger    *slog.Logger
}

// OpenAIClient runs the analysis as a JSON-mode chat completion.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *slog.Logger
}

func NewOpenAIClient(cfg OpenAIConfig, httpClient *http.Client) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &OpenAIClient{
		client:    openai.NewClientWithConfig(oc),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
	}
}

const systemPrompt = `You are a qualified UK electrical inspector producing EICR observations from photographs.
Reply with a single JSON object of the form:
{"analysis": {
  "findings": [{"description": string, "eicr_code": "C1"|"C2"|"C3"|"FI", "confidence": number 0-1,
                "bs7671_clauses": [string], "location": string, "fix_guidance": string,
                "bounding_box": {"x": 0-1, "y": 0-1, "width": 0-1, "height": 0-1, "confidence": 0-1, "label": string, "eicr_code": string}}],
  "recommendations": [{"action": string, "priority": "immediate"|"urgent"|"recommended",
                       "bs7671_reference": string, "cost_estimate": string, "eicr_code": "C1"|"C2"|"C3"}],
  "compliance_summary": {"overall_assessment": "satisfactory"|"unsatisfactory", "c1_count": int, "c2_count": int,
                         "c3_count": int, "fi_count": int, "safety_rating": int 0-10},
  "summary": string}}
Bounding box coordinates are fractions of the image size. Return an empty findings list when nothing is wrong.
If you cannot analyse the images reply {"error": "<reason>"}.`

func userPrompt(s entity.AnalysisSettings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Inspect the installation in these photographs. The first image is the primary view.\n")
	fmt.Fprintf(&b, "Only report findings with confidence of at least %.2f.\n", s.ConfidenceThreshold)
	if s.EnableBoundingBoxes {
		b.WriteString("Include a bounding_box for every finding you can locate.\n")
	} else {
		b.WriteString("Omit bounding boxes.\n")
	}
	if len(s.FocusAreas) > 0 {
		fmt.Fprintf(&b, "Restrict the inspection to: %s.\n", strings.Join(s.FocusAreas, ", "))
	}
	if s.BS7671Compliance {
		b.WriteString("Cite the BS 7671 regulation numbers that apply to each finding.\n")
	}
	return b.String()
}

// Analyze sends the image URLs as image parts and decodes the JSON reply.
func (c *OpenAIClient) Analyze(ctx context.Context, req entity.AnalysisRequest) (*entity.AnalysisResult, error) {
	const op = "inference.openai"

	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: userPrompt(req.Settings)}}
	for _, u := range req.ImageURLs() {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: u, Detail: openai.ImageURLDetailHigh},
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		return nil, classifyOpenAIError(op, err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.New(apperrors.KindAnalysisApplication, op, "model returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := parseAnalysis(op, []byte(content), c.logger)
	if err == nil {
		return result, nil
	}

	// JSON mode sometimes drops the wrapper object.
	var bare entity.AnalysisResult
	if json.Unmarshal([]byte(content), &bare) == nil && bare.Findings != nil {
		return parseAnalysis(op, []byte(`{"analysis":`+content+`}`), c.logger)
	}
	return nil, err
}

func classifyOpenAIError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode >= 500 {
			return apperrors.Wrap(apperrors.KindAnalysisTransport, op, "model service unavailable", err)
		}
		return apperrors.New(apperrors.KindAnalysisApplication, op, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 && reqErr.HTTPStatusCode < 500 {
		return apperrors.Wrap(apperrors.KindAnalysisApplication, op, "model request rejected", err)
	}
	return apperrors.Wrap(apperrors.KindAnalysisTransport, op, "could not reach the model service", err)
}

var _ port.Analyzer = (*OpenAIClient)(nil)
