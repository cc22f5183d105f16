package core

// TelemetryRecord is the flat per-request row handed to telemetry sinks.
// Exactly one record is produced per orchestrated request, at the very end of
// processing; failed requests still emit a record with Success=false and
// whatever fields were populated before the failure.
type TelemetryRecord struct {
	RequestID string `json:"request_id"`
	Provider  string `json:"provider"`

	ALSPresent     bool   `json:"als_present"`
	ALSBlockSHA256 string `json:"als_block_sha256,omitempty"`
	ALSCountry     string `json:"als_country,omitempty"`
	ALSLocale      string `json:"als_locale,omitempty"`
	ALSVariantID   int    `json:"als_variant_id,omitempty"`
	ALSTemplateID  string `json:"als_template_id,omitempty"`

	GroundingModeRequested GroundingMode `json:"grounding_mode_requested"`
	GroundingAttempted     bool          `json:"grounding_attempted"`
	GroundedEffective      bool          `json:"grounded_effective"`
	ToolCallCount          int           `json:"tool_call_count"`
	AnchoredCitationsCount int           `json:"anchored_citations_count"`
	UnlinkedSourcesCount   int           `json:"unlinked_sources_count"`
	CitationsTruncated     bool          `json:"citations_truncated,omitempty"`
	WhyNotGrounded         string        `json:"why_not_grounded,omitempty"`

	ResponseAPI        string      `json:"response_api,omitempty"`
	WebToolTypeInitial ToolVariant `json:"web_tool_type_initial,omitempty"`
	WebToolTypeFinal   ToolVariant `json:"web_tool_type_final,omitempty"`

	ModelOriginal  string `json:"model_original"`
	ModelEffective string `json:"model_effective,omitempty"`

	PromptTokens     int   `json:"prompt_tokens"`
	CompletionTokens int   `json:"completion_tokens"`
	ResponseTimeMS   int64 `json:"response_time_ms"`

	Success      bool   `json:"success"`
	ErrorCode    string `json:"error_code,omitempty"`
	CreatedAtUTC int64  `json:"created_at_utc"`
}
