package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultGeminiModel   = "gemini-1.5-flash"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
)

type GeminiOptions struct {
	APIKey      string
	Model       string
	VisionModel string
	MaxTokens   int
	Timeout     time.Duration
	BaseURL     string
}

type GeminiClient struct {
	client      *resty.Client
	apiKey      string
	model       string
	visionModel string
	maxTokens   int
	baseURL     string
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewGeminiClient(opts GeminiOptions) *GeminiClient {
	if opts.Model == "" {
		opts.Model = defaultGeminiModel
	}
	if opts.VisionModel == "" {
		opts.VisionModel = opts.Model
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultGeminiBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	return &GeminiClient{
		client:      resty.New().SetTimeout(opts.Timeout),
		apiKey:      opts.APIKey,
		model:       opts.Model,
		visionModel: opts.VisionModel,
		maxTokens:   opts.MaxTokens,
		baseURL:     opts.BaseURL,
	}
}

func (g *GeminiClient) Name() string { return "gemini:" + g.model }

func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	return g.callGeminiAPI(ctx, g.model, []geminiPart{{Text: prompt}})
}

func (g *GeminiClient) GenerateWithImage(ctx context.Context, prompt string, img *Image) (string, error) {
	parts := []geminiPart{
		{Text: prompt},
		{InlineData: &geminiInlineData{MimeType: img.MIMEType, Data: img.Base64()}},
	}
	return g.callGeminiAPI(ctx, g.visionModel, parts)
}

func (g *GeminiClient) callGeminiAPI(ctx context.Context, model string, parts []geminiPart) (string, error) {
	url := fmt.Sprintf("%s/%s:generateContent", g.baseURL, model)

	req := geminiRequest{
		Contents: []geminiContent{{Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     0.3,
			MaxOutputTokens: g.maxTokens,
		},
	}

	var resp geminiResponse
	httpResp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", g.apiKey).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(url)

	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s", resp.Error.Message)
	}

	if httpResp.IsError() {
		return "", fmt.Errorf("API returned status %d", httpResp.StatusCode())
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	return resp.Candidates[0].Content.Parts[0].Text, nil
}
