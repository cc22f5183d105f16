package openairesponses

import (
	"net/http"
	"net/url"
	"time"
)

// options holds configuration for the Responses API client.
type options struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	timeout    time.Duration
	headers    map[string]string
	proxyURL   *url.URL
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		baseURL: "https://api.openai.com/v1",
		model:   "gpt-5",
		timeout: 120 * time.Second,
		headers: make(map[string]string),
	}
}

// Option is a function that configures the client.
type Option func(*options)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithBaseURL sets a custom base URL (e.g., for proxies or Azure).
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithModel sets the default model to use.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHeaders sets additional HTTP headers.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

// WithProxyURL routes requests through an egress proxy. Proxy routing is a
// per-client setting here, but deployments typically share one client, which
// is why the orchestrator serializes proxied dispatches.
func WithProxyURL(proxy *url.URL) Option {
	return func(o *options) { o.proxyURL = proxy }
}
