package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docker/rulelawyer/pkg/chat"
	"github.com/docker/rulelawyer/pkg/environment"
	"github.com/docker/rulelawyer/pkg/model/provider/anthropic"
	"github.com/docker/rulelawyer/pkg/model/provider/base"
	"github.com/docker/rulelawyer/pkg/model/provider/gemini"
	"github.com/docker/rulelawyer/pkg/model/provider/openai"
	"github.com/docker/rulelawyer/pkg/model/provider/options"
)

var (
	ErrMissingAPIKey   = errors.New("API key is missing")
	ErrUnknownProvider = errors.New("unknown provider")
)

// DefaultTemperature is used when the configuration leaves it unset.
const DefaultTemperature = 0.1

// ConnectionTestPrompt is sent by TestConnection.
const ConnectionTestPrompt = "Hello, simple test."

// Provider defines the interface for model providers
type Provider interface {
	// ID returns "provider/model".
	ID() string

	CreateChatCompletion(
		ctx context.Context,
		messages []chat.Message,
	) (string, error)
}

// Names lists the supported providers.
var Names = []string{"openai", "anthropic", "google"}

// APIKeyEnv returns the environment variable holding the API key of a provider.
func APIKeyEnv(providerName string) string {
	switch strings.ToLower(providerName) {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(providerName string) string {
	switch strings.ToLower(providerName) {
	case "openai":
		return "gpt-4o-mini"
	case "anthropic":
		return "claude-sonnet-4-0"
	case "google":
		return "gemini-2.5-flash"
	default:
		return ""
	}
}

// New creates the client for cfg.Provider. The API key comes from cfg, or from
// env under APIKeyEnv when cfg has none. Configuration errors are final.
func New(ctx context.Context, cfg *base.ModelConfig, env environment.Provider, opts ...options.Opt) (Provider, error) {
	if cfg == nil {
		return nil, errors.New("model configuration is required")
	}

	resolved := *cfg
	resolved.Provider = strings.ToLower(strings.TrimSpace(resolved.Provider))
	if resolved.Model == "" {
		resolved.Model = DefaultModel(resolved.Provider)
	}
	if resolved.Temperature == nil {
		t := DefaultTemperature
		resolved.Temperature = &t
	}

	envName := APIKeyEnv(resolved.Provider)
	if envName == "" {
		slog.Error("Unknown provider type", "type", cfg.Provider)
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if resolved.APIKey == "" && env != nil {
		names := []string{envName}
		if envName == "GOOGLE_API_KEY" {
			names = append(names, "GEMINI_API_KEY")
		}
		resolved.APIKey = environment.Lookup(ctx, env, names...)
	}
	if resolved.APIKey == "" {
		return nil, fmt.Errorf("%w: set it in the settings or in %s", ErrMissingAPIKey, envName)
	}

	slog.Debug("Creating model provider", "type", resolved.Provider, "model", resolved.Model)

	switch resolved.Provider {
	case "openai":
		return openai.NewClient(&resolved, opts...)
	case "anthropic":
		return anthropic.NewClient(&resolved, opts...)
	default:
		return gemini.NewClient(ctx, &resolved, opts...)
	}
}

// TestConnection sends a trivial prompt and returns the reply.
func TestConnection(ctx context.Context, p Provider) (string, error) {
	reply, err := p.CreateChatCompletion(ctx, []chat.Message{chat.UserMessage(ConnectionTestPrompt)})
	if err != nil {
		return "", fmt.Errorf("testing connection to %s: %w", p.ID(), err)
	}
	return reply, nil
}
