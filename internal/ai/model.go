package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/bilgisen/kova/internal/config"
	"golang.org/x/time/rate"
)

// ErrEmptyResponse is returned when a model replies without any text
var ErrEmptyResponse = errors.New("no content in response")

// Image is a bitmap sent to a vision model
type Image struct {
	MIMEType string
	Data     []byte
}

func (i *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// Model is a text-generation backend
type Model interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateWithImage(ctx context.Context, prompt string, img *Image) (string, error)
}

// NewModel builds the configured provider wrapped in a rate limiter. It
// returns nil when no API key is configured, which leaves the analyzer on
// its deterministic fallbacks.
func NewModel(cfg *config.Config) (Model, error) {
	if !cfg.AIEnabled() {
		return nil, nil
	}

	var m Model
	switch cfg.AIProvider {
	case config.ProviderGemini:
		m = NewGeminiClient(GeminiOptions{
			APIKey:      cfg.AIApiKey,
			Model:       cfg.AIModel,
			VisionModel: cfg.AIVisionModel,
			MaxTokens:   cfg.AIMaxTokens,
			Timeout:     cfg.AITimeout,
		})
	case config.ProviderAnthropic:
		m = NewAnthropicClient(AnthropicOptions{
			APIKey:      cfg.AIApiKey,
			Model:       cfg.AIModel,
			VisionModel: cfg.AIVisionModel,
			MaxTokens:   cfg.AIMaxTokens,
			Timeout:     cfg.AITimeout,
		})
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
	}

	if cfg.AIRateLimit > 0 {
		m = WithRateLimit(m, rate.NewLimiter(rate.Limit(cfg.AIRateLimit), cfg.AIRateBurst))
	}
	return m, nil
}

type rateLimitedModel struct {
	Model
	limiter *rate.Limiter
}

// WithRateLimit makes every call wait for a limiter token first
func WithRateLimit(m Model, limiter *rate.Limiter) Model {
	return &rateLimitedModel{Model: m, limiter: limiter}
}

func (r *rateLimitedModel) Generate(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return r.Model.Generate(ctx, prompt)
}

func (r *rateLimitedModel) GenerateWithImage(ctx context.Context, prompt string, img *Image) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return r.Model.GenerateWithImage(ctx, prompt, img)
}
