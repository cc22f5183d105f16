package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/contestra/ai-ranker-v2-sub003/als"
	"github.com/contestra/ai-ranker-v2-sub003/core"
	"github.com/contestra/ai-ranker-v2-sub003/grounding"
	"github.com/contestra/ai-ranker-v2-sub003/obs"
)

// fakeAdapter scripts Dispatch outcomes per attempt.
type fakeAdapter struct {
	mu       sync.Mutex
	caps     core.Capabilities
	script   []func(req core.Request, variant core.ToolVariant) (*core.RawResponse, error)
	calls    []core.ToolVariant
	requests []core.Request
}

func (f *fakeAdapter) Dispatch(ctx context.Context, req core.Request, variant core.ToolVariant) (*core.RawResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, variant)
	f.requests = append(f.requests, req)
	if len(f.script) == 0 {
		return &core.RawResponse{Text: "ok"}, nil
	}
	step := f.script[0]
	if len(f.script) > 1 {
		f.script = f.script[1:]
	}
	return step(req, variant)
}

func (f *fakeAdapter) Capabilities() core.Capabilities { return f.caps }

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func anchoredEvidence() []json.RawMessage {
	return []json.RawMessage{
		json.RawMessage(`{"segment":{"startIndex":0,"endIndex":10},"groundingChunkIndices":[0],"web":{"uri":"https://example.com/a"}}`),
		json.RawMessage(`{"web":{"uri":"https://example.org/b","title":"B"}}`),
	}
}

func unlinkedEvidence() []json.RawMessage {
	return []json.RawMessage{
		json.RawMessage(`{"web":{"uri":"https://example.org/b","title":"B"}}`),
	}
}

func succeedWith(raw *core.RawResponse) func(core.Request, core.ToolVariant) (*core.RawResponse, error) {
	return func(core.Request, core.ToolVariant) (*core.RawResponse, error) {
		return raw, nil
	}
}

func failWith(code core.ErrorCode) func(core.Request, core.ToolVariant) (*core.RawResponse, error) {
	return func(core.Request, core.ToolVariant) (*core.RawResponse, error) {
		return nil, core.NewError(code, string(code))
	}
}

func newTestOrchestrator(adapter core.ProviderAdapter, extra ...Option) (*Orchestrator, *obs.MemorySink, *grounding.VariantCache) {
	sink := obs.NewMemorySink()
	cache := grounding.NewVariantCache()
	opts := append([]Option{
		WithAdapter("test", adapter),
		WithVariantCache(cache),
		WithTelemetrySink(sink),
		WithALSBuilder(als.New(als.WithSecret([]byte("test-secret")))),
	}, extra...)
	return New(opts...), sink, cache
}

func groundedRequest(mode core.GroundingMode) core.Request {
	return core.Request{
		ProviderID:    "test",
		Model:         "model-x",
		Messages:      []core.Message{core.SystemMessage("be brief"), core.UserMessage("tallest building?")},
		GroundingMode: mode,
	}
}

func TestCompletePlainRequest(t *testing.T) {
	adapter := &fakeAdapter{
		caps: core.Capabilities{Provider: "test", CanForceToolInvocation: true},
		script: []func(core.Request, core.ToolVariant) (*core.RawResponse, error){
			succeedWith(&core.RawResponse{Text: "hello", ModelVersion: "model-x-001", Usage: core.Usage{PromptTokens: 10, CompletionTokens: 5}}),
		},
	}
	orch, sink, _ := newTestOrchestrator(adapter)

	resp, err := orch.Complete(context.Background(), groundedRequest(core.GroundingModeNone))
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if resp.Text != "hello" || resp.Model != "model-x-001" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if adapter.calls[0] != core.ToolVariantNone {
		t.Fatalf("NONE mode must not request a tool, got %q", adapter.calls[0])
	}

	records := sink.Records()
	if len(records) != 1 {
		t.Fatalf("expected exactly one telemetry row, got %d", len(records))
	}
	row := records[0]
	if !row.Success || row.PromptTokens != 10 || row.CompletionTokens != 5 {
		t.Fatalf("unexpected telemetry %+v", row)
	}
	if row.GroundingAttempted || row.GroundedEffective {
		t.Fatalf("NONE mode must not report grounding: %+v", row)
	}
}

func TestCompleteInjectsLocationContext(t *testing.T) {
	adapter := &fakeAdapter{caps: core.Capabilities{Provider: "test"}}
	orch, sink, _ := newTestOrchestrator(adapter)

	req := groundedRequest(core.GroundingModeNone)
	req.LocaleContext = &core.LocaleContext{CountryCode: "DE", Locale: "de-DE"}

	resp, err := orch.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}

	sent := adapter.requests[0]
	if len(sent.Messages) != 3 {
		t.Fatalf("expected injected message, got %d messages", len(sent.Messages))
	}
	if sent.Messages[0].Role != core.System || sent.Messages[0].Segment != core.SegmentDefault {
		t.Fatalf("system preamble must stay first: %+v", sent.Messages[0])
	}
	if sent.Messages[1].Segment != core.SegmentLocation {
		t.Fatalf("location block must follow the system preamble: %+v", sent.Messages[1])
	}
	if sent.Messages[2].Role != core.User {
		t.Fatalf("user content must come last: %+v", sent.Messages[2])
	}

	// The original request is never mutated.
	if len(req.Messages) != 2 {
		t.Fatalf("caller request mutated: %d messages", len(req.Messages))
	}

	if resp.Metadata["als_present"] != true {
		t.Fatalf("metadata must mirror location fields: %+v", resp.Metadata)
	}
	if resp.Metadata["als_country"] != "DE" {
		t.Fatalf("unexpected mirrored country: %+v", resp.Metadata)
	}
	row := sink.Records()[0]
	if !row.ALSPresent || row.ALSCountry != "DE" || row.ALSBlockSHA256 == "" {
		t.Fatalf("telemetry missing location fields: %+v", row)
	}
}

func TestCompleteUnsupportedLocaleSurfaces(t *testing.T) {
	adapter := &fakeAdapter{caps: core.Capabilities{Provider: "test"}}
	orch, sink, _ := newTestOrchestrator(adapter)

	req := groundedRequest(core.GroundingModeNone)
	req.LocaleContext = &core.LocaleContext{CountryCode: "ZZ", Locale: "en-US"}

	if _, err := orch.Complete(context.Background(), req); !core.IsUnsupportedLocale(err) {
		t.Fatalf("expected unsupported_locale, got %v", err)
	}
	if adapter.callCount() != 0 {
		t.Fatalf("no dispatch may happen after a locale failure")
	}
	row := sink.Records()[0]
	if row.Success || row.ErrorCode != string(core.ErrUnsupportedLocale) {
		t.Fatalf("failure telemetry missing: %+v", row)
	}
}

func TestCompleteCapabilityPreCheckShortCircuits(t *testing.T) {
	adapter := &fakeAdapter{caps: core.Capabilities{Provider: "test", CanForceToolInvocation: false}}
	orch, sink, _ := newTestOrchestrator(adapter)

	_, err := orch.Complete(context.Background(), groundedRequest(core.GroundingModeRequired))
	if !core.IsGroundingRequired(err) {
		t.Fatalf("expected grounding_required_failed, got %v", err)
	}
	if adapter.callCount() != 0 {
		t.Fatalf("capability mismatch must fail before dispatch, saw %d calls", adapter.callCount())
	}
	row := sink.Records()[0]
	if row.WhyNotGrounded != grounding.ReasonCapabilityMismatch {
		t.Fatalf("expected capability_mismatch reason, got %q", row.WhyNotGrounded)
	}
}

func TestCompleteRequiredWithAnchoredEvidence(t *testing.T) {
	adapter := &fakeAdapter{
		caps: core.Capabilities{Provider: "test", CanForceToolInvocation: true},
		script: []func(core.Request, core.ToolVariant) (*core.RawResponse, error){
			succeedWith(&core.RawResponse{Text: "grounded", Evidence: anchoredEvidence(), ToolCallCount: 1}),
		},
	}
	orch, _, cache := newTestOrchestrator(adapter)

	resp, err := orch.Complete(context.Background(), groundedRequest(core.GroundingModeRequired))
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if !resp.Grounding.Effective || resp.Grounding.AnchoredCount != 1 || resp.Grounding.UnlinkedCount != 1 {
		t.Fatalf("unexpected outcome %+v", resp.Grounding)
	}
	if len(resp.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(resp.Citations))
	}
	if entry, ok := cache.Lookup("test", "model-x"); !ok || entry.Status != grounding.StatusWebSearch {
		t.Fatalf("probe success must be cached, got %+v %v", entry, ok)
	}
}

func TestCompleteRequiredFailsClosedOnUnlinkedOnly(t *testing.T) {
	adapter := &fakeAdapter{
		caps: core.Capabilities{Provider: "test", CanForceToolInvocation: true},
		script: []func(core.Request, core.ToolVariant) (*core.RawResponse, error){
			succeedWith(&core.RawResponse{Text: "weak", Evidence: unlinkedEvidence(), ToolCallCount: 1}),
		},
	}
	orch, sink, _ := newTestOrchestrator(adapter)

	_, err := orch.Complete(context.Background(), groundedRequest(core.GroundingModeRequired))
	if !core.IsGroundingRequired(err) {
		t.Fatalf("unlinked-only evidence must fail REQUIRED, got %v", err)
	}
	row := sink.Records()[0]
	if row.WhyNotGrounded != grounding.ReasonNoAnchoredEvidence {
		t.Fatalf("expected no_anchored_evidence, got %q", row.WhyNotGrounded)
	}
	if row.UnlinkedSourcesCount != 1 || row.AnchoredCitationsCount != 0 {
		t.Fatalf("unexpected counts in telemetry %+v", row)
	}
}

func TestCompleteAutoSucceedsWithSameEvidence(t *testing.T) {
	adapter := &fakeAdapter{
		caps: core.Capabilities{Provider: "test", CanForceToolInvocation: true},
		script: []func(core.Request, core.ToolVariant) (*core.RawResponse, error){
			succeedWith(&core.RawResponse{Text: "fine", Evidence: unlinkedEvidence(), ToolCallCount: 1}),
		},
	}
	orch, _, _ := newTestOrchestrator(adapter)

	resp, err := orch.Complete(context.Background(), groundedRequest(core.GroundingModeAuto))
	if err != nil {
		t.Fatalf("AUTO must tolerate unlinked-only evidence: %v", err)
	}
	if !resp.Grounding.Attempted || !resp.Grounding.Effective {
		t.Fatalf("unexpected outcome %+v", resp.Grounding)
	}
}

func TestCompleteTwoPassFallback(t *testing.T) {
	adapter := &fakeAdapter{
		caps: core.Capabilities{Provider: "test", CanForceToolInvocation: true, SupportsVariantNegotiation: true},
		script: []func(core.Request, core.ToolVariant) (*core.RawResponse, error){
			failWith(core.ErrNotSupported),
			succeedWith(&core.RawResponse{Text: "grounded", Evidence: anchoredEvidence(), ToolCallCount: 1}),
		},
	}
	orch, sink, cache := newTestOrchestrator(adapter)

	resp, err := orch.Complete(context.Background(), groundedRequest(core.GroundingModeAuto))
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if adapter.callCount() != 2 {
		t.Fatalf("expected exactly two dispatch attempts, got %d", adapter.callCount())
	}
	if adapter.calls[0] != core.ToolVariantWebSearch || adapter.calls[1] != core.ToolVariantWebSearchPreview {
		t.Fatalf("unexpected variant sequence %v", adapter.calls)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected exactly one cache write, got %d", cache.Len())
	}
	entry, _ := cache.Lookup("test", "model-x")
	if entry.Status != grounding.StatusWebSearchPreview {
		t.Fatalf("cache must record the surviving variant, got %s", entry.Status)
	}
	if resp.Grounding.AnchoredCount != 1 {
		t.Fatalf("unexpected outcome %+v", resp.Grounding)
	}
	row := sink.Records()[0]
	if row.WebToolTypeInitial != core.ToolVariantWebSearch || row.WebToolTypeFinal != core.ToolVariantWebSearchPreview {
		t.Fatalf("telemetry must report both variants: %+v", row)
	}
}

func TestCompleteFallbackEmptyResultNeverWritesCache(t *testing.T) {
	adapter := &fakeAdapter{
		caps: core.Capabilities{Provider: "test", CanForceToolInvocation: true, SupportsVariantNegotiation: true},
		script: []func(core.Request, core.ToolVariant) (*core.RawResponse, error){
			failWith(core.ErrNotSupported),
			func(core.Request, core.ToolVariant) (*core.RawResponse, error) {
				return &core.RawResponse{Text: "thin answer", ToolCallCount: 1},
					core.NewError(core.ErrEmptyResults, "no results")
			},
		},
	}
	orch, _, cache := newTestOrchestrator(adapter)

	resp, err := orch.Complete(context.Background(), groundedRequest(core.GroundingModeAuto))
	if err != nil {
		t.Fatalf("empty fallback result must not surface as an error under AUTO: %v", err)
	}
	if adapter.callCount() != 2 {
		t.Fatalf("expected exactly two dispatch attempts, got %d", adapter.callCount())
	}
	if adapter.calls[1] != core.ToolVariantWebSearchPreview {
		t.Fatalf("unexpected variant sequence %v", adapter.calls)
	}
	if resp.Text != "thin answer" {
		t.Fatalf("generated text must survive an empty fallback run: %q", resp.Text)
	}
	if resp.Grounding.WhyNotGrounded != grounding.ReasonEmptyResults {
		t.Fatalf("expected empty_results reason, got %q", resp.Grounding.WhyNotGrounded)
	}
	// An empty result is ambiguous on either pass: no cache write.
	if cache.Len() != 0 {
		t.Fatalf("ambiguous empty result wrote the cache: %d entries", cache.Len())
	}
}

func TestCompleteCachedVariantSkipsProbe(t *testing.T) {
	adapter := &fakeAdapter{
		caps: core.Capabilities{Provider: "test", CanForceToolInvocation: true, SupportsVariantNegotiation: true},
		script: []func(core.Request, core.ToolVariant) (*core.RawResponse, error){
			succeedWith(&core.RawResponse{Text: "grounded", Evidence: anchoredEvidence(), ToolCallCount: 1}),
		},
	}
	orch, _, cache := newTestOrchestrator(adapter)
	cache.Record("test", "model-x", grounding.StatusWebSearchPreview)

	if _, err := orch.Complete(context.Background(), groundedRequest(core.GroundingModeAuto)); err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if adapter.calls[0] != core.ToolVariantWebSearchPreview {
		t.Fatalf("cached variant must be used directly, got %q", adapter.calls[0])
	}
	if adapter.callCount() != 1 {
		t.Fatalf("no probing expected on cache hit, got %d calls", adapter.callCount())
	}
}

func TestCompleteEmptyResultNeverWritesUnsupported(t *testing.T) {
	adapter := &fakeAdapter{
		caps: core.Capabilities{Provider: "test", CanForceToolInvocation: true},
		script: []func(core.Request, core.ToolVariant) (*core.RawResponse, error){
			func(core.Request, core.ToolVariant) (*core.RawResponse, error) {
				return &core.RawResponse{Text: "thin answer", ToolCallCount: 1},
					core.NewError(core.ErrEmptyResults, "no results")
			},
		},
	}
	orch, _, cache := newTestOrchestrator(adapter)

	resp, err := orch.Complete(context.Background(), groundedRequest(core.GroundingModeAuto))
	if err != nil {
		t.Fatalf("empty results must not surface as an error under AUTO: %v", err)
	}
	if resp.Text != "thin answer" {
		t.Fatalf("generated text must survive an empty tool run: %q", resp.Text)
	}
	if resp.Grounding.WhyNotGrounded != grounding.ReasonEmptyResults {
		t.Fatalf("expected empty_results reason, got %q", resp.Grounding.WhyNotGrounded)
	}
	if cache.Len() != 0 {
		t.Fatalf("empty results must never write the cache, found %d entries", cache.Len())
	}
}

func TestCompleteTransientErrorNoCacheWrite(t *testing.T) {
	adapter := &fakeAdapter{
		caps: core.Capabilities{Provider: "test", CanForceToolInvocation: true},
		script: []func(core.Request, core.ToolVariant) (*core.RawResponse, error){
			failWith(core.ErrTransient),
		},
	}
	orch, sink, cache := newTestOrchestrator(adapter)

	if _, err := orch.Complete(context.Background(), groundedRequest(core.GroundingModeAuto)); !core.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if cache.Len() != 0 {
		t.Fatalf("ambiguous outcomes must not mutate the cache")
	}
	row := sink.Records()[0]
	if row.Success {
		t.Fatalf("failed request must emit failed telemetry: %+v", row)
	}
}

func TestCompleteUnsupportedCacheEntrySkipsTool(t *testing.T) {
	adapter := &fakeAdapter{
		caps: core.Capabilities{Provider: "test", CanForceToolInvocation: true},
		script: []func(core.Request, core.ToolVariant) (*core.RawResponse, error){
			succeedWith(&core.RawResponse{Text: "plain"}),
		},
	}
	orch, _, cache := newTestOrchestrator(adapter)
	cache.Record("test", "model-x", grounding.StatusUnsupported)

	resp, err := orch.Complete(context.Background(), groundedRequest(core.GroundingModeAuto))
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if adapter.calls[0] != core.ToolVariantNone {
		t.Fatalf("unexpired UNSUPPORTED entry must suppress the tool, got %q", adapter.calls[0])
	}
	if resp.Grounding.Attempted {
		t.Fatalf("no attempt may be reported when the tool was suppressed")
	}
}

func TestMirrorALSMetadataIdempotent(t *testing.T) {
	builder := als.New(als.WithSecret([]byte("test-secret")))
	block, err := builder.Build("US", "en-US")
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	meta := map[string]any{"provider_field": "kept", "als_country": "stale"}
	once := MirrorALSMetadata(meta, &block)
	twice := MirrorALSMetadata(once, &block)

	if len(once) != len(twice) {
		t.Fatalf("mirroring twice changed the field set: %d vs %d", len(once), len(twice))
	}
	if twice["als_country"] != "US" {
		t.Fatalf("stale adapter-side copy must be overwritten, got %v", twice["als_country"])
	}
	if twice["provider_field"] != "kept" {
		t.Fatalf("unrelated metadata must survive mirroring")
	}
	if twice["als_block_sha256"] != block.BlockSHA256 {
		t.Fatalf("hash mismatch in mirrored metadata")
	}
}

func TestCompleteCancellationReleasesProxyGate(t *testing.T) {
	release := make(chan struct{})
	adapter := &fakeAdapter{
		caps: core.Capabilities{Provider: "test", CanForceToolInvocation: true, UsesGlobalProxy: true},
		script: []func(core.Request, core.ToolVariant) (*core.RawResponse, error){
			func(core.Request, core.ToolVariant) (*core.RawResponse, error) {
				<-release
				return nil, core.NewError(core.ErrCanceled, "canceled")
			},
			succeedWith(&core.RawResponse{Text: "after"}),
		},
	}
	orch, _, cache := newTestOrchestrator(adapter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = orch.Complete(ctx, groundedRequest(core.GroundingModeAuto))
	}()

	cancel()
	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("cancelled request did not finish")
	}

	// The gate must be free for the next request, and the cancelled,
	// non-definitive outcome must not have written the cache.
	if cache.Len() != 0 {
		t.Fatalf("cancelled outcome wrote the cache")
	}
	resp, err := orch.Complete(context.Background(), groundedRequest(core.GroundingModeNone))
	if err != nil {
		t.Fatalf("gate not released after cancellation: %v", err)
	}
	if resp.Text != "after" {
		t.Fatalf("unexpected follow-up response %q", resp.Text)
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	clearRegistry()
	defer clearRegistry()

	factory := stubFactory{}
	RegisterAdapter("stub", factory)
	if !IsAdapterRegistered("stub") {
		t.Fatalf("adapter should be registered")
	}
	got, ok := GetAdapterFactory("stub")
	if !ok || got == nil {
		t.Fatalf("factory lookup failed")
	}
	names := RegisteredAdapters()
	if len(names) != 1 || names[0] != "stub" {
		t.Fatalf("unexpected registry contents %v", names)
	}
}

type stubFactory struct{}

func (stubFactory) New(AdapterConfig) (core.ProviderAdapter, error) {
	return &fakeAdapter{}, nil
}

func (stubFactory) DefaultConfig() AdapterConfig { return AdapterConfig{} }
