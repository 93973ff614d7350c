package gemini

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/genai"

	"github.com/docker/rulelawyer/pkg/chat"
	"github.com/docker/rulelawyer/pkg/httpclient"
	"github.com/docker/rulelawyer/pkg/model/provider/base"
	"github.com/docker/rulelawyer/pkg/model/provider/options"
)

// Client represents a Gemini client wrapper
// It implements the provider.Provider interface
type Client struct {
	base.Config
	client    *genai.Client
	maxTokens *int64
}

func NewClient(ctx context.Context, cfg *base.ModelConfig, opts ...options.Opt) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("model configuration is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("Google API key is required")
	}

	modelOptions := options.Apply(opts...)

	httpClient := modelOptions.HTTPClient()
	if httpClient == nil {
		httpClient = httpclient.NewHTTPClient()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, err
	}

	maxTokens := modelOptions.MaxTokens()
	if maxTokens == nil && cfg.MaxTokens > 0 {
		maxTokens = &cfg.MaxTokens
	}

	slog.Debug("Gemini client created successfully", "model", cfg.Model)

	return &Client{
		Config:    base.Config{ModelConfig: *cfg},
		client:    client,
		maxTokens: maxTokens,
	}, nil
}

func convertMessages(messages []chat.Message) (*genai.Content, []*genai.Content) {
	system, rest := chat.Split(messages)

	var systemInstruction *genai.Content
	if system != "" {
		systemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		var role genai.Role = genai.RoleUser
		if m.Role == chat.MessageRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return systemInstruction, contents
}

func (c *Client) CreateChatCompletion(ctx context.Context, messages []chat.Message) (string, error) {
	systemInstruction, contents := convertMessages(messages)

	config := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
	}
	if t := c.ModelConfig.Temperature; t != nil {
		config.Temperature = genai.Ptr(float32(*t))
	}
	if c.maxTokens != nil {
		config.MaxOutputTokens = int32(*c.maxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.ModelConfig.Model, contents, config)
	if err != nil {
		return "", err
	}

	if resp.UsageMetadata != nil {
		slog.Debug("Gemini generate content", "model", c.ModelConfig.Model,
			"prompt_tokens", resp.UsageMetadata.PromptTokenCount, "candidates_tokens", resp.UsageMetadata.CandidatesTokenCount)
	}

	return resp.Text(), nil
}
