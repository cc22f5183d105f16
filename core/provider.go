package core

import (
	"context"
	"encoding/json"
)

// ToolVariant names the hosted web-search tool identifier requested from a
// provider. Variants are negotiated per (provider, model) because not every
// model generation accepts the same identifier.
type ToolVariant string

const (
	ToolVariantNone             ToolVariant = ""
	ToolVariantWebSearch        ToolVariant = "web_search"
	ToolVariantWebSearchPreview ToolVariant = "web_search_preview"
)

// Capabilities describes the statically declared features of a provider
// adapter. Capability flags are fixed per adapter, never discovered at
// runtime, so enforcement decisions stay free of provider-name checks.
type Capabilities struct {
	// CanForceToolInvocation reports whether the provider accepts a tool
	// configuration that makes the model invoke the grounding tool rather
	// than merely offering it.
	CanForceToolInvocation bool

	// SupportsVariantNegotiation reports whether the provider distinguishes
	// multiple web-tool identifiers worth probing in sequence.
	SupportsVariantNegotiation bool

	// UsesGlobalProxy reports whether routing this provider through a proxy
	// relies on process-wide state. Dispatches to such providers are
	// serialized by the orchestrator.
	UsesGlobalProxy bool

	Provider string
	Models   []string
}

// RawResponse is the unnormalized result returned by a provider adapter.
// Evidence items are passed through as raw JSON records; their heterogeneous
// shapes are interpreted solely by the citation classifier.
type RawResponse struct {
	Text          string
	Evidence      []json.RawMessage
	ToolCallCount int
	Usage         Usage
	ModelVersion  string
	ResponseAPI   string
	Metadata      map[string]any
}

// ProviderAdapter is the collaborator contract each vendor adapter implements.
// Dispatch must return an error with code ErrNotSupported only for a
// definitive tool rejection; ambiguous failures (timeouts, empty results)
// carry their own codes and never drive variant-cache writes.
type ProviderAdapter interface {
	Dispatch(ctx context.Context, req Request, variant ToolVariant) (*RawResponse, error)
	Capabilities() Capabilities
}
