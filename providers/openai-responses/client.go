// Package openairesponses dispatches generation requests to the OpenAI
// Responses API with hosted web search. The web search tool has two wire
// variants; which one a model accepts is only learned from a definitive
// rejection, so this adapter reports SupportsVariantNegotiation and leaves
// the two-pass fallback to the orchestrator.
package openairesponses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/contestra/ai-ranker-v2-sub003/core"
	"github.com/contestra/ai-ranker-v2-sub003/internal/httpclient"
	"github.com/contestra/ai-ranker-v2-sub003/obs"
)

const responseAPI = "responses"

// Client implements core.ProviderAdapter for the Responses API.
type Client struct {
	opts       options
	httpClient *http.Client
}

// New creates a new Responses API client.
func New(opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		clientOpts := []httpclient.Option{httpclient.WithTimeout(o.timeout)}
		if o.proxyURL != nil {
			clientOpts = append(clientOpts, httpclient.WithProxyURL(o.proxyURL))
		}
		o.httpClient = httpclient.New(clientOpts...)
	}
	return &Client{opts: o, httpClient: o.httpClient}
}

// Capabilities implements core.ProviderAdapter. tool_choice cannot force a
// hosted web search, so REQUIRED mode fails closed before dispatch; the
// egress proxy is process-global, so dispatches are serialized upstream.
func (c *Client) Capabilities() core.Capabilities {
	return core.Capabilities{
		CanForceToolInvocation:     false,
		SupportsVariantNegotiation: true,
		UsesGlobalProxy:            true,
		Provider:                   "openai-responses",
		Models: []string{
			"gpt-5", "gpt-4.1", "gpt-4o", "o3",
		},
	}
}

// Dispatch implements core.ProviderAdapter.
func (c *Client) Dispatch(ctx context.Context, req core.Request, variant core.ToolVariant) (_ *core.RawResponse, err error) {
	ctx, recorder := obs.StartRequest(ctx, "providers.openai-responses.Dispatch",
		attribute.String("ai.provider", "openai-responses"),
		attribute.String("ai.operation", responseAPI),
	)
	var usageTokens obs.UsageTokens
	defer func() {
		recorder.End(err, usageTokens)
	}()

	payload := c.buildPayload(req, variant)
	recorder.AddAttributes(attribute.String("ai.model", payload.Model))

	body, err := c.doRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp ResponsesResponse
	if err = json.NewDecoder(body).Decode(&resp); err != nil {
		err = core.NewError(core.ErrProviderError, "openai-responses: decode response", core.WithWrapped(err))
		return nil, err
	}
	if resp.Error != nil {
		err = mapAPIError(0, resp.Error)
		return nil, err
	}

	usage := resp.Usage.toCore()
	usageTokens = obs.UsageFromCore(usage)

	text, evidence, searchCalls := extractOutput(resp.Output)
	raw := &core.RawResponse{
		Text:          text,
		Evidence:      evidence,
		ToolCallCount: searchCalls,
		Usage:         usage,
		ModelVersion:  coalesce(resp.Model, payload.Model),
		ResponseAPI:   responseAPI,
	}
	if variant != core.ToolVariantNone && searchCalls > 0 && len(evidence) == 0 {
		// Searches ran but nothing was cited or surfaced: ambiguous.
		return raw, core.NewError(core.ErrEmptyResults, "openai-responses: search returned no sources")
	}
	return raw, nil
}

func (c *Client) buildPayload(req core.Request, variant core.ToolVariant) *ResponsesRequest {
	input, instructions := convertMessages(req.Messages)
	payload := &ResponsesRequest{
		Model:           chooseModel(req.Model, c.opts.model),
		Input:           input,
		Instructions:    instructions,
		MaxOutputTokens: req.MaxOutputTokens,
		Temperature:     req.Temperature,
	}
	if variant != core.ToolVariantNone {
		payload.Tools = []ResponseTool{{Type: string(variant)}}
		// tool_choice stays auto: forcing hosted web search is not
		// supported by the API.
		payload.ToolChoice = "auto"
	}
	return payload
}

func (c *Client) doRequest(ctx context.Context, payload *ResponsesRequest) (io.ReadCloser, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return nil, core.NewError(core.ErrInternal, "openai-responses: encode request", core.WithWrapped(err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.opts.baseURL, "/")+"/responses", buf)
	if err != nil {
		return nil, core.NewError(core.ErrInternal, "openai-responses: build request", core.WithWrapped(err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.apiKey)
	}
	for k, v := range c.opts.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, core.WrapError(err, core.ErrCanceled)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, core.WrapError(err, core.ErrTimeout)
		}
		return nil, core.WrapError(err, core.ErrTransient)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var envelope apiError
		_ = json.Unmarshal(data, &envelope)
		if envelope.Error.Message == "" {
			envelope.Error.Message = strings.TrimSpace(string(data))
		}
		return nil, mapAPIError(resp.StatusCode, &envelope.Error)
	}
	return resp.Body, nil
}

// mapAPIError classifies API failures. Only an explicit rejection of the
// requested hosted tool maps to not_supported; rate limits and 5xx stay
// retryable and never reach the variant cache.
func mapAPIError(status int, apiErr *ResponseError) error {
	message := fmt.Sprintf("openai-responses: %s", apiErr.Message)
	switch {
	case status == http.StatusTooManyRequests:
		return core.NewError(core.ErrRateLimited, message,
			core.WithStatus(status), core.WithRetryable(true))
	case status >= 500:
		return core.NewError(core.ErrTransient, message,
			core.WithStatus(status), core.WithRetryable(true))
	case isToolRejection(apiErr):
		return core.NewError(core.ErrNotSupported, message, core.WithStatus(status))
	case status >= 400:
		return core.NewError(core.ErrProviderError, message, core.WithStatus(status))
	default:
		return core.NewError(core.ErrProviderError, message)
	}
}

func isToolRejection(apiErr *ResponseError) bool {
	lower := strings.ToLower(apiErr.Message)
	if !strings.Contains(lower, "not supported") && !strings.Contains(lower, "not_supported") {
		return false
	}
	return strings.Contains(lower, "web_search") || strings.Contains(lower, "tool") ||
		strings.Contains(lower, "hosted")
}

// convertMessages maps conversation turns onto the input list. Plain system
// messages become the instructions field; the injected location block keeps
// its position in the input, ahead of user content.
func convertMessages(messages []core.Message) ([]ResponseInput, string) {
	var instructions strings.Builder
	input := make([]ResponseInput, 0, len(messages))

	for _, message := range messages {
		if message.Content == "" {
			continue
		}
		if message.Role == core.System && message.Segment != core.SegmentLocation {
			if instructions.Len() > 0 {
				instructions.WriteString("\n")
			}
			instructions.WriteString(message.Content)
			continue
		}
		role := string(message.Role)
		if message.Role == core.System {
			role = "user"
		}
		input = append(input, ResponseInput{Role: role, Content: message.Content})
	}
	return input, instructions.String()
}

// extractOutput walks the output list collecting message text, anchored
// url_citation annotations, harvested search sources, and the number of
// web search calls. Annotations are collected first so harvested sources
// that were ultimately cited are not double-counted as unlinked; search
// calls precede the message in the output order.
func extractOutput(output []OutputItem) (string, []json.RawMessage, int) {
	var text strings.Builder
	var evidence []json.RawMessage
	cited := make(map[string]bool)

	for _, item := range output {
		if item.Type != "message" {
			continue
		}
		for _, content := range item.Content {
			if content.Type != "output_text" {
				continue
			}
			text.WriteString(content.Text)
			for _, annotation := range content.Annotations {
				if annotation.Type != "url_citation" || annotation.URL == "" {
					continue
				}
				cited[annotation.URL] = true
				record := urlCitationRecord{
					URL:        annotation.URL,
					Title:      annotation.Title,
					StartIndex: annotation.StartIndex,
					EndIndex:   annotation.EndIndex,
				}
				if data, err := json.Marshal(record); err == nil {
					evidence = append(evidence, data)
				}
			}
		}
	}

	searchCalls := 0
	for _, item := range output {
		if item.Type != "web_search_call" {
			continue
		}
		searchCalls++
		if item.Action == nil {
			continue
		}
		for _, source := range item.Action.Sources {
			if source.URL == "" || cited[source.URL] {
				continue
			}
			if data, err := json.Marshal(searchResultRecord{Source: source}); err == nil {
				evidence = append(evidence, data)
			}
		}
	}
	return text.String(), evidence, searchCalls
}

// Reshape runs a second, tool-free call that reformats grounded answer text
// into strict JSON under the given schema. Grounding and strict JSON output
// cannot be combined in one call, so structured consumers reshape after the
// grounded pass.
func (c *Client) Reshape(ctx context.Context, model, text string, schemaName string, schema json.RawMessage) (_ []byte, err error) {
	ctx, recorder := obs.StartRequest(ctx, "providers.openai-responses.Reshape",
		attribute.String("ai.provider", "openai-responses"),
		attribute.String("ai.operation", responseAPI),
	)
	var usageTokens obs.UsageTokens
	defer func() {
		recorder.End(err, usageTokens)
	}()

	payload := &ResponsesRequest{
		Model: chooseModel(model, c.opts.model),
		Input: []ResponseInput{{Role: "user", Content: text}},
		Instructions: "Reformat the provided answer into the requested JSON shape. " +
			"Do not add, remove, or embellish information.",
		Text: &TextFormatParams{Format: &TextFormat{
			Type:   "json_schema",
			Name:   schemaName,
			Schema: schema,
			Strict: true,
		}},
	}

	body, err := c.doRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp ResponsesResponse
	if err = json.NewDecoder(body).Decode(&resp); err != nil {
		err = core.NewError(core.ErrProviderError, "openai-responses: decode reshape response", core.WithWrapped(err))
		return nil, err
	}
	if resp.Error != nil {
		err = mapAPIError(0, resp.Error)
		return nil, err
	}
	usageTokens = obs.UsageFromCore(resp.Usage.toCore())

	out, _, _ := extractOutput(resp.Output)
	if !json.Valid([]byte(out)) {
		err = core.NewError(core.ErrProviderError, "openai-responses: reshape output is not valid json")
		return nil, err
	}
	return []byte(out), nil
}

func (u ResponsesUsage) toCore() core.Usage {
	return core.Usage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.TotalTokens,
	}
}

func chooseModel(request, fallback string) string {
	if request != "" {
		return request
	}
	return fallback
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
