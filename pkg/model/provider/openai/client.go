package openai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/docker/rulelawyer/pkg/chat"
	"github.com/docker/rulelawyer/pkg/httpclient"
	"github.com/docker/rulelawyer/pkg/model/provider/base"
	"github.com/docker/rulelawyer/pkg/model/provider/options"
)

// Client talks to the OpenAI chat completions API or any server compatible
// with it (set BaseURL).
// It implements the provider.Provider interface
type Client struct {
	base.Config
	client    openai.Client
	maxTokens *int64
}

func NewClient(cfg *base.ModelConfig, opts ...options.Opt) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("model configuration is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
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

	maxTokens := modelOptions.MaxTokens()
	if maxTokens == nil && cfg.MaxTokens > 0 {
		maxTokens = &cfg.MaxTokens
	}

	slog.Debug("OpenAI client created successfully", "model", cfg.Model, "base_url", cfg.BaseURL)

	return &Client{
		Config:    base.Config{ModelConfig: *cfg},
		client:    openai.NewClient(requestOptions...),
		maxTokens: maxTokens,
	}, nil
}

func convertMessages(messages []chat.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case chat.MessageRoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case chat.MessageRoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func (c *Client) CreateChatCompletion(ctx context.Context, messages []chat.Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.ModelConfig.Model,
		Messages: convertMessages(messages),
	}
	if t := c.ModelConfig.Temperature; t != nil {
		params.Temperature = openai.Float(*t)
	}
	if c.maxTokens != nil {
		params.MaxCompletionTokens = openai.Int(*c.maxTokens)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	slog.Debug("OpenAI chat completion", "model", c.ModelConfig.Model,
		"prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)

	return resp.Choices[0].Message.Content, nil
}
