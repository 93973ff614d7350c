package anthropic

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/docker/rulelawyer/pkg/chat"
	"github.com/docker/rulelawyer/pkg/httpclient"
	"github.com/docker/rulelawyer/pkg/model/provider/base"
	"github.com/docker/rulelawyer/pkg/model/provider/options"
)

const defaultMaxTokens int64 = 4096

// Client represents an Anthropic client wrapper
// It implements the provider.Provider interface
type Client struct {
	base.Config
	client    anthropic.Client
	maxTokens int64
}

func NewClient(cfg *base.ModelConfig, opts ...options.Opt) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("model configuration is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	modelOptions := options.Apply(opts...)

	httpClient := modelOptions.HTTPClient()
	if httpClient == nil {
		httpClient = httpclient.NewHTTPClient()
	}

	requestOptions := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		requestOptions = append(requestOptions, option.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := defaultMaxTokens
	switch {
	case modelOptions.MaxTokens() != nil:
		maxTokens = *modelOptions.MaxTokens()
	case cfg.MaxTokens > 0:
		maxTokens = cfg.MaxTokens
	}

	slog.Debug("Anthropic client created successfully", "model", cfg.Model)

	return &Client{
		Config:    base.Config{ModelConfig: *cfg},
		client:    anthropic.NewClient(requestOptions...),
		maxTokens: maxTokens,
	}, nil
}

func extractSystemBlocks(messages []chat.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	system, rest := chat.Split(messages)

	var blocks []anthropic.TextBlockParam
	if system != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: system})
	}

	converted := make([]anthropic.MessageParam, 0, len(rest))
	for _, m := range rest {
		if m.Role == chat.MessageRoleAssistant {
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}
	return blocks, converted
}

func (c *Client) CreateChatCompletion(ctx context.Context, messages []chat.Message) (string, error) {
	system, converted := extractSystemBlocks(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.ModelConfig.Model),
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  converted,
	}
	if t := c.ModelConfig.Temperature; t != nil {
		params.Temperature = anthropic.Float(*t)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	slog.Debug("Anthropic message", "model", c.ModelConfig.Model,
		"input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)

	return b.String(), nil
}
