package core

import "fmt"

// GroundingMode selects how strictly web grounding is enforced for a request.
type GroundingMode string

const (
	GroundingModeNone     GroundingMode = "NONE"
	GroundingModeAuto     GroundingMode = "AUTO"
	GroundingModeRequired GroundingMode = "REQUIRED"
)

// LocaleContext carries the country/locale pair used to derive the ambient
// location signal block.
type LocaleContext struct {
	CountryCode string `json:"country_code"`
	Locale      string `json:"locale"`
}

// Request represents a single generation request. Requests are treated as
// immutable once constructed: every enrichment step (location-context
// injection, model resolution) produces a derived copy via Clone.
type Request struct {
	ProviderID string `json:"provider_id"`
	Model      string `json:"model,omitempty"`

	Messages []Message `json:"messages"`

	GroundingMode GroundingMode  `json:"grounding_mode,omitempty"`
	LocaleContext *LocaleContext `json:"locale_context,omitempty"`

	MaxOutputTokens int            `json:"max_output_tokens,omitempty"`
	Temperature     float32        `json:"temperature,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Clone returns a copy of the request with safe slice/map duplication so the
// original is never observed mutated.
func (r Request) Clone() Request {
	clone := r
	if len(r.Messages) > 0 {
		clone.Messages = append([]Message(nil), r.Messages...)
	}
	if r.LocaleContext != nil {
		lc := *r.LocaleContext
		clone.LocaleContext = &lc
	}
	if r.Metadata != nil {
		clone.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}

// Validate ensures the request is well-formed before orchestration begins.
func (r Request) Validate() error {
	if r.ProviderID == "" {
		return NewError(ErrBadRequest, "provider_id is required")
	}
	if len(r.Messages) == 0 {
		return NewError(ErrBadRequest, "at least one message is required")
	}
	for i, msg := range r.Messages {
		if msg.Role == "" {
			return NewError(ErrBadRequest, fmt.Sprintf("message %d missing role", i))
		}
	}
	switch r.GroundingMode {
	case "", GroundingModeNone, GroundingModeAuto, GroundingModeRequired:
	default:
		return NewError(ErrBadRequest, fmt.Sprintf("unknown grounding mode %q", r.GroundingMode))
	}
	if r.LocaleContext != nil && (r.LocaleContext.CountryCode == "" || r.LocaleContext.Locale == "") {
		return NewError(ErrBadRequest, "locale_context requires both country_code and locale")
	}
	return nil
}

// Mode returns the effective grounding mode, defaulting to NONE.
func (r Request) Mode() GroundingMode {
	if r.GroundingMode == "" {
		return GroundingModeNone
	}
	return r.GroundingMode
}
