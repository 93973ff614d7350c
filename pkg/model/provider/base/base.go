package base

// ModelConfig selects and parameterises one model of one provider.
type ModelConfig struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature *float64
	MaxTokens   int64
}

// Config is a common base configuration shared by all provider clients.
// It can be embedded in provider-specific Client structs to avoid code duplication.
type Config struct {
	ModelConfig ModelConfig
}

// ID returns the provider and model ID in the format "provider/model"
func (c *Config) ID() string {
	return c.ModelConfig.Provider + "/" + c.ModelConfig.Model
}
