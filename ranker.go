// Package ranker is the entry point for grounded, locale-aware LLM
// generation. It wires registered provider adapters, the ambient location
// signal builder, the tool-variant cache, and citation classification into
// one Complete call.
//
// Import providers to enable them:
//
//	import (
//	    "github.com/contestra/ai-ranker-v2-sub003"
//	    _ "github.com/contestra/ai-ranker-v2-sub003/providers/gemini"
//	    _ "github.com/contestra/ai-ranker-v2-sub003/providers/openai-responses"
//	)
//
//	client := ranker.NewClient()
package ranker

import (
	"context"
	"net/http"

	"github.com/contestra/ai-ranker-v2-sub003/als"
	"github.com/contestra/ai-ranker-v2-sub003/citations"
	"github.com/contestra/ai-ranker-v2-sub003/core"
	"github.com/contestra/ai-ranker-v2-sub003/grounding"
	"github.com/contestra/ai-ranker-v2-sub003/obs"
	"github.com/contestra/ai-ranker-v2-sub003/orchestrator"
)

// Client is the unified entry point for grounded generation across
// providers. It manages adapter instances and delegates execution to the
// request orchestrator.
type Client struct {
	adapters   map[string]core.ProviderAdapter
	httpClient *http.Client
	orchOpts   []orchestrator.Option
	orch       *orchestrator.Orchestrator
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client handed to auto-configured adapters.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithAdapter registers an adapter explicitly, overriding auto-configuration
// for that provider ID.
func WithAdapter(id string, adapter core.ProviderAdapter) ClientOption {
	return func(c *Client) { c.adapters[id] = adapter }
}

// WithALSSecret sets the keyed-derivation secret for the location-context
// builder. The secret must be stable across processes.
func WithALSSecret(secret []byte) ClientOption {
	return func(c *Client) {
		c.orchOpts = append(c.orchOpts, orchestrator.WithALSBuilder(als.New(als.WithSecret(secret))))
	}
}

// WithVariantCache shares a tool-variant cache across clients.
func WithVariantCache(cache *grounding.VariantCache) ClientOption {
	return func(c *Client) {
		c.orchOpts = append(c.orchOpts, orchestrator.WithVariantCache(cache))
	}
}

// WithClassifier overrides the citation classifier, e.g. to attach a
// redirect resolver or tighten the resolution budget.
func WithClassifier(classifier *citations.Classifier) ClientOption {
	return func(c *Client) {
		c.orchOpts = append(c.orchOpts, orchestrator.WithClassifier(classifier))
	}
}

// WithTelemetrySink appends a telemetry sink.
func WithTelemetrySink(sink obs.TelemetrySink) ClientOption {
	return func(c *Client) {
		c.orchOpts = append(c.orchOpts, orchestrator.WithTelemetrySink(sink))
	}
}

// NewClient creates a Client with auto-configuration from the environment.
// Imported providers self-register; each registered factory whose API key is
// present in the environment is initialized.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		adapters:   make(map[string]core.ProviderAdapter),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.autoConfigureAdapters()

	orchOpts := make([]orchestrator.Option, 0, len(c.adapters)+len(c.orchOpts))
	for id, adapter := range c.adapters {
		orchOpts = append(orchOpts, orchestrator.WithAdapter(id, adapter))
	}
	orchOpts = append(orchOpts, c.orchOpts...)
	c.orch = orchestrator.New(orchOpts...)
	return c
}

func (c *Client) autoConfigureAdapters() {
	for _, name := range orchestrator.RegisteredAdapters() {
		if _, exists := c.adapters[name]; exists {
			continue
		}
		factory, ok := orchestrator.GetAdapterFactory(name)
		if !ok {
			continue
		}
		config := factory.DefaultConfig()
		config.HTTPClient = c.httpClient
		if config.APIKey == "" {
			continue
		}
		if adapter, err := factory.New(config); err == nil {
			c.adapters[name] = adapter
		}
	}
}

// Complete runs one request through the orchestration pipeline.
func (c *Client) Complete(ctx context.Context, req core.Request) (*core.Response, error) {
	return c.orch.Complete(ctx, req)
}

// Providers returns the IDs of the configured adapters.
func (c *Client) Providers() []string {
	names := make([]string, 0, len(c.adapters))
	for name := range c.adapters {
		names = append(names, name)
	}
	return names
}
