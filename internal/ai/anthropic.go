package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

type AnthropicOptions struct {
	APIKey      string
	Model       string
	VisionModel string
	MaxTokens   int
	Timeout     time.Duration
	BaseURL     string
}

// AnthropicClient implements Model using the Messages API
type AnthropicClient struct {
	client      *anthropic.Client
	model       string
	visionModel string
	maxTokens   int64
}

func NewAnthropicClient(opts AnthropicOptions) *AnthropicClient {
	if opts.Model == "" {
		opts.Model = defaultAnthropicModel
	}
	if opts.VisionModel == "" {
		opts.VisionModel = opts.Model
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 800
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(reqOpts...)
	return &AnthropicClient{
		client:      &client,
		model:       opts.Model,
		visionModel: opts.VisionModel,
		maxTokens:   int64(opts.MaxTokens),
	}
}

func (c *AnthropicClient) Name() string { return "anthropic:" + c.model }

func (c *AnthropicClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.send(ctx, c.model, anthropic.NewTextBlock(prompt))
}

func (c *AnthropicClient) GenerateWithImage(ctx context.Context, prompt string, img *Image) (string, error) {
	return c.send(ctx, c.visionModel,
		anthropic.NewImageBlockBase64(img.MIMEType, img.Base64()),
		anthropic.NewTextBlock(prompt),
	)
}

// send prefills the assistant turn with "{" so the reply continues a JSON object
func (c *AnthropicClient) send(ctx context.Context, model string, blocks ...anthropic.ContentBlockParamUnion) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
			anthropic.NewAssistantMessage(anthropic.NewTextBlock("{")),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to call Claude API: %w", err)
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}
	if responseText == "" {
		return "", ErrEmptyResponse
	}

	return "{" + responseText, nil
}
