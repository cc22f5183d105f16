package core

// Usage captures normalized token accounting. Provider field names vary
// (promptTokenCount, input_tokens, ...); adapters map them here.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CitationClass distinguishes text-anchored evidence from unlinked evidence.
type CitationClass string

const (
	// CitationAnchored marks evidence joined to a specific span of the
	// generated text.
	CitationAnchored CitationClass = "ANCHORED"
	// CitationUnlinked marks evidence with no text anchor, regardless of
	// source quality.
	CitationUnlinked CitationClass = "UNLINKED"
)

// Citation is one classified evidence item.
type Citation struct {
	URL          string        `json:"url"`
	SourceDomain string        `json:"source_domain,omitempty"`
	Title        string        `json:"title,omitempty"`
	IsRedirect   bool          `json:"is_redirect,omitempty"`
	Class        CitationClass `json:"class"`
}

// CitationCounts aggregates a classified batch.
type CitationCounts struct {
	Anchored  int  `json:"anchored"`
	Unlinked  int  `json:"unlinked"`
	Total     int  `json:"total"`
	Truncated bool `json:"truncated,omitempty"`
}

// GroundingOutcome records what grounding actually happened for a request.
// Computed once, immutable thereafter.
type GroundingOutcome struct {
	Attempted      bool   `json:"attempted"`
	Effective      bool   `json:"effective"`
	ToolCallCount  int    `json:"tool_call_count"`
	AnchoredCount  int    `json:"anchored_count"`
	UnlinkedCount  int    `json:"unlinked_count"`
	WhyNotGrounded string `json:"why_not_grounded,omitempty"`
}

// Response is the normalized result handed back to the caller.
type Response struct {
	Text      string           `json:"text"`
	Model     string           `json:"model"`
	Provider  string           `json:"provider"`
	Usage     Usage            `json:"usage"`
	Citations []Citation       `json:"citations,omitempty"`
	Grounding GroundingOutcome `json:"grounding"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	LatencyMS int64            `json:"latency_ms,omitempty"`
}
