// Package orchestrator routes normalized generation requests to provider
// adapters under one contract: location-context injection, grounding-mode
// enforcement, tool-variant negotiation, citation classification, and a
// single telemetry row per request.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/contestra/ai-ranker-v2-sub003/als"
	"github.com/contestra/ai-ranker-v2-sub003/citations"
	"github.com/contestra/ai-ranker-v2-sub003/core"
	"github.com/contestra/ai-ranker-v2-sub003/grounding"
	"github.com/contestra/ai-ranker-v2-sub003/obs"
)

// Orchestrator composes the location builder, variant cache, classifier, and
// mode enforcer around provider adapters. Safe for concurrent use.
type Orchestrator struct {
	adapters   map[string]core.ProviderAdapter
	als        *als.Builder
	cache      *grounding.VariantCache
	classifier *citations.Classifier
	enforcer   grounding.Enforcer
	sinks      []obs.TelemetrySink
	logger     *slog.Logger
	gates      *gateSet
}

// Option mutates orchestrator construction.
type Option func(*Orchestrator)

// WithAdapter registers a provider adapter under its ID.
func WithAdapter(id string, adapter core.ProviderAdapter) Option {
	return func(o *Orchestrator) { o.adapters[id] = adapter }
}

// WithALSBuilder overrides the location-context builder.
func WithALSBuilder(builder *als.Builder) Option {
	return func(o *Orchestrator) { o.als = builder }
}

// WithVariantCache overrides the tool-variant cache. Sharing one cache
// across orchestrators keeps failed-probe knowledge process-wide.
func WithVariantCache(cache *grounding.VariantCache) Option {
	return func(o *Orchestrator) { o.cache = cache }
}

// WithClassifier overrides the citation classifier.
func WithClassifier(classifier *citations.Classifier) Option {
	return func(o *Orchestrator) { o.classifier = classifier }
}

// WithTelemetrySink appends a telemetry sink.
func WithTelemetrySink(sink obs.TelemetrySink) Option {
	return func(o *Orchestrator) { o.sinks = append(o.sinks, sink) }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// New constructs an Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		adapters:   make(map[string]core.ProviderAdapter),
		als:        als.New(),
		cache:      grounding.NewVariantCache(),
		classifier: citations.NewClassifier(),
		logger:     slog.Default(),
		gates:      newGateSet(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Complete runs one request through the full pipeline. Exactly one telemetry
// row is emitted per call, including on failure; fields keep their last-known
// values when processing aborts early.
func (o *Orchestrator) Complete(ctx context.Context, req core.Request) (_ *core.Response, err error) {
	ctx, recorder := obs.StartRequest(ctx, "orchestrator.Complete",
		attribute.String("ai.provider", req.ProviderID),
		attribute.String("ai.grounding_mode", string(req.Mode())),
	)

	record := core.TelemetryRecord{
		RequestID:              uuid.NewString(),
		Provider:               req.ProviderID,
		GroundingModeRequested: req.Mode(),
		ModelOriginal:          req.Model,
		CreatedAtUTC:           time.Now().UTC().Unix(),
	}
	var usage obs.UsageTokens
	defer func() {
		record.ResponseTimeMS = recorder.ElapsedMS()
		record.Success = err == nil
		if err != nil {
			record.ErrorCode = string(core.CodeOf(err))
		}
		o.emitTelemetry(context.WithoutCancel(ctx), record)
		recorder.End(err, usage)
	}()

	if err = req.Validate(); err != nil {
		return nil, err
	}
	adapter, ok := o.adapters[req.ProviderID]
	if !ok {
		err = core.NewError(core.ErrBadRequest, "unknown provider "+req.ProviderID)
		return nil, err
	}
	caps := adapter.Capabilities()
	mode := req.Mode()

	// Location-context injection happens before anything touches the
	// provider; the original request is never mutated.
	effective := req.Clone()
	var block *als.Block
	if req.LocaleContext != nil {
		built, buildErr := o.als.Build(req.LocaleContext.CountryCode, req.LocaleContext.Locale)
		if buildErr != nil {
			err = buildErr
			return nil, err
		}
		block = &built
		effective.Messages = injectLocationMessage(effective.Messages, built.RenderedText)
		record.ALSPresent = true
		record.ALSBlockSHA256 = built.BlockSHA256
		record.ALSCountry = built.CountryCode
		record.ALSLocale = built.Locale
		record.ALSVariantID = built.VariantID
		record.ALSTemplateID = built.TemplateID
	}

	// Capability mismatch fails closed before any dispatch.
	if err = o.enforcer.PreCheck(mode, caps); err != nil {
		record.WhyNotGrounded = grounding.ReasonCapabilityMismatch
		obs.RecordGrounding(false, true, attribute.String("ai.provider", req.ProviderID))
		return nil, err
	}

	variant, attempted, cacheHit, probing := o.selectVariant(mode, caps, req.ProviderID, effective.Model)
	record.WebToolTypeInitial = variant
	if mode != core.GroundingModeNone {
		obs.RecordVariantProbe(cacheHit, false, attribute.String("ai.provider", req.ProviderID))
	}

	raw, finalVariant, attempted, emptyResult, err := o.dispatch(ctx, adapter, effective, variant, attempted, probing, caps)
	record.WebToolTypeFinal = finalVariant
	if err != nil {
		return nil, err
	}
	record.ResponseAPI = raw.ResponseAPI
	record.ModelEffective = raw.ModelVersion
	record.PromptTokens = raw.Usage.PromptTokens
	record.CompletionTokens = raw.Usage.CompletionTokens
	record.ToolCallCount = raw.ToolCallCount
	usage = obs.UsageFromCore(raw.Usage)
	recorder.AddAttributes(attribute.String("ai.model", raw.ModelVersion))

	classified, counts := o.classifier.Classify(ctx, raw.Evidence)
	record.AnchoredCitationsCount = counts.Anchored
	record.UnlinkedSourcesCount = counts.Unlinked
	record.CitationsTruncated = counts.Truncated

	outcome, state, enforceErr := o.enforcer.Evaluate(mode, attempted, raw.ToolCallCount, counts, emptyResult)
	record.GroundingAttempted = outcome.Attempted
	record.GroundedEffective = outcome.Effective
	record.WhyNotGrounded = outcome.WhyNotGrounded
	obs.RecordGrounding(outcome.Effective, state == grounding.StateFailedClosed,
		attribute.String("ai.provider", req.ProviderID))
	if enforceErr != nil {
		err = enforceErr
		return nil, err
	}

	resp := &core.Response{
		Text:      raw.Text,
		Model:     raw.ModelVersion,
		Provider:  req.ProviderID,
		Usage:     raw.Usage,
		Citations: classified,
		Grounding: outcome,
		Metadata:  cloneMetadata(raw.Metadata),
		LatencyMS: recorder.ElapsedMS(),
	}
	// Mirror location fields unconditionally; an adapter-side copy may be
	// missing or stale, and the overwrite is idempotent.
	resp.Metadata = MirrorALSMetadata(resp.Metadata, block)
	return resp, nil
}

// selectVariant consults the variant cache and capability flags to pick the
// initial tool variant. probing reports that no cache entry exists, so a
// definitive rejection should trigger the in-request secondary attempt.
func (o *Orchestrator) selectVariant(mode core.GroundingMode, caps core.Capabilities, provider, model string) (variant core.ToolVariant, attempted, cacheHit, probing bool) {
	if mode == core.GroundingModeNone {
		return core.ToolVariantNone, false, false, false
	}
	entry, ok := o.cache.Lookup(provider, model)
	if !ok {
		return core.ToolVariantWebSearch, true, false, true
	}
	switch entry.Status {
	case grounding.StatusUnsupported:
		// Both variants definitively rejected recently; no tool goes out.
		return core.ToolVariantNone, false, true, false
	default:
		return entry.Status.Variant(), true, true, false
	}
}

// dispatch performs the provider call, applying the two-pass variant
// fallback on a definitive rejection and the proxy gate for providers whose
// proxy configuration is process-global.
func (o *Orchestrator) dispatch(ctx context.Context, adapter core.ProviderAdapter, req core.Request, variant core.ToolVariant, attempted, probing bool, caps core.Capabilities) (*core.RawResponse, core.ToolVariant, bool, bool, error) {
	do := func(v core.ToolVariant) (*core.RawResponse, error) {
		if caps.UsesGlobalProxy {
			gate := o.gates.gateFor(req.ProviderID)
			if err := gate.acquire(ctx); err != nil {
				return nil, err
			}
			defer gate.release()
		}
		return adapter.Dispatch(ctx, req, v)
	}

	raw, err := do(variant)
	if err == nil {
		if probing && variant != core.ToolVariantNone {
			if status, ok := grounding.StatusForVariant(variant); ok {
				o.cache.Record(req.ProviderID, req.Model, status)
			}
		}
		return raw, variant, attempted, false, nil
	}
	if core.IsEmptyResults(err) {
		// Tool accepted, nothing came back. Ambiguous: no cache write, and
		// the caller still gets the generated text.
		if raw == nil {
			raw = &core.RawResponse{}
		}
		return raw, variant, attempted, true, nil
	}
	if !core.IsNotSupported(err) || variant == core.ToolVariantNone {
		// Transient, canceled, or provider errors never mutate the cache.
		return nil, variant, attempted, false, err
	}

	// Definitive rejection of the requested variant.
	o.logger.Debug("tool variant rejected",
		slog.String("provider", req.ProviderID),
		slog.String("variant", string(variant)))

	if variant == core.ToolVariantWebSearch && caps.SupportsVariantNegotiation {
		obs.RecordVariantProbe(false, true, attribute.String("ai.provider", req.ProviderID))
		raw, err = do(core.ToolVariantWebSearchPreview)
		if err == nil {
			o.cache.Record(req.ProviderID, req.Model, grounding.StatusWebSearchPreview)
			return raw, core.ToolVariantWebSearchPreview, attempted, false, nil
		}
		if core.IsEmptyResults(err) {
			// Same rule as the first pass: an empty result is ambiguous and
			// never mutates the cache, even though the variant was accepted.
			if raw == nil {
				raw = &core.RawResponse{}
			}
			return raw, core.ToolVariantWebSearchPreview, attempted, true, nil
		}
		if !core.IsNotSupported(err) {
			return nil, core.ToolVariantWebSearchPreview, attempted, false, err
		}
	}

	// Every variant definitively rejected: remember that, then serve the
	// request without a grounding tool.
	o.cache.Record(req.ProviderID, req.Model, grounding.StatusUnsupported)
	raw, err = do(core.ToolVariantNone)
	if err != nil {
		return nil, core.ToolVariantNone, false, false, err
	}
	return raw, core.ToolVariantNone, false, false, nil
}

// injectLocationMessage places the rendered block after any leading system
// messages and ahead of all user content, preserving declared ordering.
func injectLocationMessage(messages []core.Message, rendered string) []core.Message {
	insert := 0
	for insert < len(messages) && messages[insert].Role == core.System {
		insert++
	}
	out := make([]core.Message, 0, len(messages)+1)
	out = append(out, messages[:insert]...)
	out = append(out, core.LocationMessage(rendered))
	out = append(out, messages[insert:]...)
	return out
}

// MirrorALSMetadata writes the location-context fields into response
// metadata. The write is an idempotent overwrite: running it twice produces
// the same metadata as running it once, and it never duplicates fields an
// adapter already copied.
func MirrorALSMetadata(meta map[string]any, block *als.Block) map[string]any {
	if meta == nil {
		meta = make(map[string]any)
	}
	if block == nil {
		meta["als_present"] = false
		return meta
	}
	meta["als_present"] = true
	meta["als_block_sha256"] = block.BlockSHA256
	meta["als_country"] = block.CountryCode
	meta["als_locale"] = block.Locale
	meta["als_variant_id"] = block.VariantID
	meta["als_template_id"] = block.TemplateID
	return meta
}

func cloneMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func (o *Orchestrator) emitTelemetry(ctx context.Context, record core.TelemetryRecord) {
	for _, sink := range o.sinks {
		if err := sink.Record(ctx, record); err != nil {
			o.logger.Warn("telemetry sink error", slog.String("sink_error", err.Error()))
		}
	}
	obs.EmitTelemetry(ctx, record)
}
