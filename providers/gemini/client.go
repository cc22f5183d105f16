// Package gemini dispatches generation requests to the Gemini
// generateContent API with GoogleSearch grounding. Grounding metadata is
// flattened into per-item evidence records: each grounding support is joined
// with the source chunk it references, and chunks no support points at are
// emitted as anchor-less source records.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/contestra/ai-ranker-v2-sub003/core"
	"github.com/contestra/ai-ranker-v2-sub003/internal/httpclient"
	"github.com/contestra/ai-ranker-v2-sub003/obs"
)

const responseAPI = "generate_content"

// Client implements core.ProviderAdapter for Gemini.
type Client struct {
	opts       options
	httpClient *http.Client
}

func New(opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = httpclient.New(httpclient.WithTimeout(o.timeout))
	}
	return &Client{opts: o, httpClient: o.httpClient}
}

// Capabilities implements core.ProviderAdapter. Gemini exposes a single
// search tool, so there is no secondary variant to negotiate, and tool
// invocation can be forced through the tool config.
func (c *Client) Capabilities() core.Capabilities {
	return core.Capabilities{
		CanForceToolInvocation:     true,
		SupportsVariantNegotiation: false,
		UsesGlobalProxy:            false,
		Provider:                   "gemini",
		Models: []string{
			"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.0-flash",
		},
	}
}

// Dispatch implements core.ProviderAdapter.
func (c *Client) Dispatch(ctx context.Context, req core.Request, variant core.ToolVariant) (_ *core.RawResponse, err error) {
	ctx, recorder := obs.StartRequest(ctx, "providers.gemini.Dispatch",
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.operation", responseAPI),
	)
	var usageTokens obs.UsageTokens
	defer func() {
		recorder.End(err, usageTokens)
	}()

	if variant == core.ToolVariantWebSearchPreview {
		// Gemini has no preview tool; reject definitively so the variant
		// cache learns it without a wasted round trip.
		return nil, core.NewError(core.ErrNotSupported, "gemini: no web_search_preview tool")
	}

	model := chooseModel(req.Model, c.opts.model)
	payload, err := buildRequest(req, variant)
	if err != nil {
		return nil, err
	}
	recorder.AddAttributes(attribute.String("ai.model", model))

	body, err := c.doRequest(ctx, model, payload)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp geminiResponse
	if err = json.NewDecoder(body).Decode(&resp); err != nil {
		err = core.NewError(core.ErrProviderError, "gemini: decode response", core.WithWrapped(err))
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		err = core.NewError(core.ErrProviderError, "gemini: response has no candidates")
		return nil, err
	}

	usage := resp.UsageMetadata.toCore()
	usageTokens = obs.UsageFromCore(usage)

	raw := &core.RawResponse{
		Text:         resp.Candidates[0].JoinText(),
		Usage:        usage,
		ModelVersion: coalesce(resp.ModelVersion, model),
		ResponseAPI:  responseAPI,
	}
	grounding := resp.Candidates[0].GroundingMetadata
	if grounding != nil {
		raw.ToolCallCount = len(grounding.WebSearchQueries)
		raw.Evidence = flattenGrounding(grounding)
	}
	if variant != core.ToolVariantNone && grounding != nil &&
		len(grounding.WebSearchQueries) > 0 && len(grounding.GroundingChunks) == 0 {
		// Searches ran but retrieved nothing: ambiguous, not a rejection.
		return raw, core.NewError(core.ErrEmptyResults, "gemini: search returned no sources")
	}
	return raw, nil
}

func (c *Client) doRequest(ctx context.Context, model string, payload *geminiRequest) (io.ReadCloser, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return nil, core.NewError(core.ErrInternal, "gemini: encode request", core.WithWrapped(err))
	}
	fullURL := strings.TrimRight(c.opts.baseURL, "/") + "/models/" + url.PathEscape(model) + ":generateContent"
	if c.opts.apiKey != "" {
		fullURL += "?key=" + url.QueryEscape(c.opts.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, buf)
	if err != nil {
		return nil, core.NewError(core.ErrInternal, "gemini: build request", core.WithWrapped(err))
	}
	req.Header.Set("Content-Type", "application/json")

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
		return nil, mapStatusError(resp.StatusCode, data)
	}
	return resp.Body, nil
}

// mapStatusError classifies HTTP failures. Only an explicit 4xx rejection of
// the search tool maps to not_supported; everything else stays ambiguous or
// retryable so the variant cache is never poisoned by a flaky backend.
func mapStatusError(status int, body []byte) error {
	var apiErr geminiErrorResponse
	_ = json.Unmarshal(body, &apiErr)
	message := apiErr.Error.Message
	if message == "" {
		message = strings.TrimSpace(string(body))
	}

	switch {
	case status == http.StatusTooManyRequests:
		return core.NewError(core.ErrRateLimited, fmt.Sprintf("gemini: %s", message),
			core.WithStatus(status), core.WithRetryable(true))
	case status >= 500:
		return core.NewError(core.ErrTransient, fmt.Sprintf("gemini: %s", message),
			core.WithStatus(status), core.WithRetryable(true))
	case status >= 400 && status < 500 && isToolRejection(message):
		return core.NewError(core.ErrNotSupported, fmt.Sprintf("gemini: %s", message),
			core.WithStatus(status))
	default:
		return core.NewError(core.ErrProviderError, fmt.Sprintf("gemini: status %d: %s", status, message),
			core.WithStatus(status))
	}
}

func isToolRejection(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "search grounding is not supported") ||
		strings.Contains(lower, "google_search is not supported") ||
		strings.Contains(lower, "tool is not supported")
}

func buildRequest(req core.Request, variant core.ToolVariant) (*geminiRequest, error) {
	contents, system := convertMessages(req.Messages)
	if len(contents) == 0 {
		return nil, core.NewError(core.ErrBadRequest, "gemini: request requires non-system messages")
	}
	request := &geminiRequest{
		Contents:          contents,
		SystemInstruction: system,
	}
	if req.Temperature > 0 || req.MaxOutputTokens > 0 {
		request.GenerationConfig = &geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxOutputTokens,
		}
	}
	if variant == core.ToolVariantWebSearch {
		request.Tools = []geminiTool{{GoogleSearch: &struct{}{}}}
		if req.Mode() == core.GroundingModeRequired {
			request.ToolConfig = &geminiToolConfig{
				FunctionCallingConfig: &geminiFunctionCallingConfig{Mode: "ANY"},
			}
		}
	}
	return request, nil
}

// convertMessages maps conversation turns onto Gemini contents. Plain system
// messages become the system instruction; the injected location block stays
// an ordinary user-visible turn so it keeps its position ahead of user
// content.
func convertMessages(messages []core.Message) ([]geminiContent, *geminiContent) {
	var systemBuffer strings.Builder
	contents := make([]geminiContent, 0, len(messages))

	for _, message := range messages {
		if message.Content == "" {
			continue
		}
		if message.Role == core.System && message.Segment != core.SegmentLocation {
			if systemBuffer.Len() > 0 {
				systemBuffer.WriteString("\n")
			}
			systemBuffer.WriteString(message.Content)
			continue
		}
		role := "user"
		if message.Role == core.Assistant {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: message.Content}},
		})
	}

	var system *geminiContent
	if systemBuffer.Len() > 0 {
		system = &geminiContent{Parts: []geminiPart{{Text: systemBuffer.String()}}}
	}
	return contents, system
}

// flattenGrounding turns grounding metadata into one evidence record per
// support plus one per unreferenced chunk. Supports inherit the web source of
// the first chunk they reference, so anchored records carry a resolvable URL.
func flattenGrounding(meta *geminiGroundingMetadata) []json.RawMessage {
	evidence := make([]json.RawMessage, 0, len(meta.GroundingSupports)+len(meta.GroundingChunks))
	referenced := make(map[int]bool, len(meta.GroundingChunks))

	for _, support := range meta.GroundingSupports {
		record := evidenceRecord{
			Segment:               support.Segment,
			GroundingChunkIndices: support.GroundingChunkIndices,
		}
		for _, idx := range support.GroundingChunkIndices {
			if idx < 0 || idx >= len(meta.GroundingChunks) {
				continue
			}
			referenced[idx] = true
			if record.Web == nil {
				record.Web = meta.GroundingChunks[idx].Web
			}
		}
		if data, err := json.Marshal(record); err == nil {
			evidence = append(evidence, data)
		}
	}
	for idx, chunk := range meta.GroundingChunks {
		if referenced[idx] || chunk.Web == nil {
			continue
		}
		if data, err := json.Marshal(evidenceRecord{Web: chunk.Web}); err == nil {
			evidence = append(evidence, data)
		}
	}
	return evidence
}

func (c geminiCandidate) JoinText() string {
	var sb strings.Builder
	for _, part := range c.Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

func (u geminiUsageMetadata) toCore() core.Usage {
	return core.Usage{
		PromptTokens:     u.PromptTokenCount,
		CompletionTokens: u.CandidatesTokenCount,
		TotalTokens:      u.TotalTokenCount,
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
