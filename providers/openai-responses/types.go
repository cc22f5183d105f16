package openairesponses

import "encoding/json"

// Wire types for the Responses API, limited to the fields this adapter sends
// and reads.

// ResponsesRequest is the request body for POST /responses.
type ResponsesRequest struct {
	Model           string            `json:"model"`
	Input           []ResponseInput   `json:"input"`
	Instructions    string            `json:"instructions,omitempty"`
	Tools           []ResponseTool    `json:"tools,omitempty"`
	ToolChoice      string            `json:"tool_choice,omitempty"`
	MaxOutputTokens int               `json:"max_output_tokens,omitempty"`
	Temperature     float32           `json:"temperature,omitempty"`
	Text            *TextFormatParams `json:"text,omitempty"`
}

// TextFormatParams selects the output text format.
type TextFormatParams struct {
	Format *TextFormat `json:"format,omitempty"`
}

// TextFormat declares a strict JSON-schema output format.
type TextFormat struct {
	Type   string          `json:"type"`
	Name   string          `json:"name,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
	Strict bool            `json:"strict,omitempty"`
}

// ResponseInput is one conversation turn in the input list.
type ResponseInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseTool declares a hosted tool. The web search tool comes in two wire
// variants; which one a model accepts is discovered at dispatch time.
type ResponseTool struct {
	Type string `json:"type"`
}

// ResponsesResponse is the response body from POST /responses.
type ResponsesResponse struct {
	ID     string         `json:"id"`
	Model  string         `json:"model"`
	Status string         `json:"status"`
	Output []OutputItem   `json:"output"`
	Usage  ResponsesUsage `json:"usage"`
	Error  *ResponseError `json:"error"`
}

// OutputItem is one entry in the output list: a message, a web_search_call,
// a reasoning item, and so on. Unknown types are skipped.
type OutputItem struct {
	Type    string          `json:"type"`
	Status  string          `json:"status,omitempty"`
	Role    string          `json:"role,omitempty"`
	Content []OutputContent `json:"content,omitempty"`
	Action  *SearchAction   `json:"action,omitempty"`
}

// OutputContent is one content part of a message item.
type OutputContent struct {
	Type        string       `json:"type"`
	Text        string       `json:"text,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// Annotation is a url_citation span anchored into the message text.
type Annotation struct {
	Type       string `json:"type"`
	URL        string `json:"url,omitempty"`
	Title      string `json:"title,omitempty"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
}

// SearchAction describes what a web_search_call did, including any sources
// it surfaced that were never cited in the final text.
type SearchAction struct {
	Type    string         `json:"type"`
	Query   string         `json:"query,omitempty"`
	Sources []SearchSource `json:"sources,omitempty"`
}

// SearchSource is one harvested search result.
type SearchSource struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// ResponsesUsage is the token accounting block.
type ResponsesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ResponseError is the inline error object on a failed response.
type ResponseError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// apiError is the envelope returned with non-2xx statuses.
type apiError struct {
	Error ResponseError `json:"error"`
}

// urlCitationRecord is the normalized evidence shape handed to the citation
// classifier for anchored annotations.
type urlCitationRecord struct {
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
}

// searchResultRecord is the anchor-less evidence shape for harvested search
// results that never made it into the final text.
type searchResultRecord struct {
	Source SearchSource `json:"source"`
}
