package gemini

import (
	"os"

	"github.com/contestra/ai-ranker-v2-sub003/core"
	"github.com/contestra/ai-ranker-v2-sub003/orchestrator"
)

func init() {
	orchestrator.RegisterAdapter("gemini", &Factory{})
}

// Factory creates Gemini adapter instances.
type Factory struct{}

// New creates a new Gemini adapter with the given configuration.
func (f *Factory) New(config orchestrator.AdapterConfig) (core.ProviderAdapter, error) {
	var opts []Option

	if config.APIKey != "" {
		opts = append(opts, WithAPIKey(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, WithBaseURL(config.BaseURL))
	}
	if config.DefaultModel != "" {
		opts = append(opts, WithModel(config.DefaultModel))
	}
	if config.HTTPClient != nil {
		opts = append(opts, WithHTTPClient(config.HTTPClient))
	}

	return New(opts...), nil
}

// DefaultConfig returns default configuration from environment variables.
func (f *Factory) DefaultConfig() orchestrator.AdapterConfig {
	return orchestrator.AdapterConfig{
		APIKey:  os.Getenv("GOOGLE_API_KEY"),
		BaseURL: os.Getenv("GEMINI_BASE_URL"),
	}
}
