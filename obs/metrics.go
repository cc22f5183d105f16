package obs

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce      sync.Once
	requestCounter   metric.Int64Counter
	latencyHistogram metric.Float64Histogram
	promptTokensHist metric.Int64Histogram
	outputTokensHist metric.Int64Histogram
	totalTokensHist  metric.Int64Histogram

	groundedCounter    metric.Int64Counter
	failedClosedCount  metric.Int64Counter
	cacheProbeCounter  metric.Int64Counter
	variantFallbackCnt metric.Int64Counter

	bgOnce sync.Once
	bgCtx  context.Context
)

func installMetrics(m meter) {
	metricsOnce.Do(func() {
		if m == nil {
			return
		}
		requestCounter, _ = m.Int64Counter("ranker.requests", metric.WithDescription("Total orchestrated requests"))
		latencyHistogram, _ = m.Float64Histogram("ranker.request.latency_ms", metric.WithDescription("Request latency (ms)"))
		promptTokensHist, _ = m.Int64Histogram("ranker.tokens.prompt", metric.WithDescription("Prompt tokens"))
		outputTokensHist, _ = m.Int64Histogram("ranker.tokens.completion", metric.WithDescription("Completion tokens"))
		totalTokensHist, _ = m.Int64Histogram("ranker.tokens.total", metric.WithDescription("Total tokens"))

		groundedCounter, _ = m.Int64Counter("ranker.grounding.effective", metric.WithDescription("Requests with effective grounding"))
		failedClosedCount, _ = m.Int64Counter("ranker.grounding.failed_closed", metric.WithDescription("REQUIRED mode fail-closed outcomes"))
		cacheProbeCounter, _ = m.Int64Counter("ranker.variant_cache.probes", metric.WithDescription("Tool-variant cache consultations"))
		variantFallbackCnt, _ = m.Int64Counter("ranker.variant_cache.fallbacks", metric.WithDescription("Secondary-variant fallback attempts"))
	})
}

type meter interface {
	Int64Counter(string, ...metric.Int64CounterOption) (metric.Int64Counter, error)
	Float64Histogram(string, ...metric.Float64HistogramOption) (metric.Float64Histogram, error)
	Int64Histogram(string, ...metric.Int64HistogramOption) (metric.Int64Histogram, error)
}

func recordRequest(attrs ...attribute.KeyValue) {
	if requestCounter != nil {
		requestCounter.Add(backgroundContext(), 1, metric.WithAttributes(attrs...))
	}
}

func recordLatency(ms float64, attrs ...attribute.KeyValue) {
	if latencyHistogram != nil {
		latencyHistogram.Record(backgroundContext(), ms, metric.WithAttributes(attrs...))
	}
}

func recordUsage(usage UsageTokens, attrs ...attribute.KeyValue) {
	ctx := backgroundContext()
	if promptTokensHist != nil {
		promptTokensHist.Record(ctx, int64(usage.PromptTokens), metric.WithAttributes(attrs...))
	}
	if outputTokensHist != nil {
		outputTokensHist.Record(ctx, int64(usage.CompletionTokens), metric.WithAttributes(attrs...))
	}
	if totalTokensHist != nil {
		totalTokensHist.Record(ctx, int64(usage.TotalTokens), metric.WithAttributes(attrs...))
	}
}

func recordGrounding(effective bool, failedClosed bool, attrs ...attribute.KeyValue) {
	ctx := backgroundContext()
	if effective && groundedCounter != nil {
		groundedCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if failedClosed && failedClosedCount != nil {
		failedClosedCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func recordVariantProbe(hit bool, fallback bool, attrs ...attribute.KeyValue) {
	ctx := backgroundContext()
	if cacheProbeCounter != nil {
		probeAttrs := append([]attribute.KeyValue{attribute.Bool("cache.hit", hit)}, attrs...)
		cacheProbeCounter.Add(ctx, 1, metric.WithAttributes(probeAttrs...))
	}
	if fallback && variantFallbackCnt != nil {
		variantFallbackCnt.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func backgroundContext() context.Context {
	bgOnce.Do(func() {
		bgCtx = context.Background()
	})
	return bgCtx
}
