package obs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/contestra/ai-ranker-v2-sub003/core"
)

var (
	manager     *Manager
	managerOnce sync.Once
)

// Manager coordinates OTEL setup and downstream telemetry sinks.
type Manager struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	sinks []TelemetrySink
}

type noopSpanExporter struct{}

func (noopSpanExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }

func (noopSpanExporter) Shutdown(context.Context) error { return nil }

// Init configures global tracing/metrics and configured sinks. Safe to call once.
func Init(ctx context.Context, opts Options) (func(context.Context) error, error) {
	var initErr error
	managerOnce.Do(func() {
		if opts.ServiceName == "" {
			opts.ServiceName = "ranker"
		}
		if opts.SampleRatio <= 0 || opts.SampleRatio > 1 {
			opts.SampleRatio = 1
		}

		res, err := buildResource(opts)
		if err != nil {
			initErr = err
			return
		}

		tracerProvider, err := buildTracerProvider(ctx, opts, res)
		if err != nil {
			initErr = err
			return
		}

		var meterProvider *sdkmetric.MeterProvider
		if !opts.DisableMetrics {
			meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
			otel.SetMeterProvider(meterProvider)
		}

		tracer := tracerProvider.Tracer("github.com/contestra/ai-ranker-v2-sub003/obs")
		var meter metric.Meter
		if meterProvider != nil {
			meter = meterProvider.Meter("github.com/contestra/ai-ranker-v2-sub003/obs")
		} else {
			meter = otel.Meter("github.com/contestra/ai-ranker-v2-sub003/obs")
		}

		manager = &Manager{
			tracerProvider: tracerProvider,
			meterProvider:  meterProvider,
			tracer:         tracer,
			meter:          meter,
			sinks:          opts.Sinks,
		}

		otel.SetTracerProvider(tracerProvider)
		installMetrics(meter)
	})

	if initErr != nil {
		return nil, initErr
	}
	if manager == nil {
		return nil, errors.New("observability already initialized")
	}

	shutdown := func(ctx context.Context) error {
		var firstErr error
		for _, sink := range manager.sinks {
			if err := sink.Shutdown(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if manager.meterProvider != nil {
			if err := manager.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if err := manager.tracerProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	}

	return shutdown, nil
}

func buildResource(opts Options) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(opts.ServiceName),
	}
	if opts.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(opts.Environment))
	}
	if opts.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(opts.Version))
	}
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}

func buildTracerProvider(ctx context.Context, opts Options, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	var spanExporter sdktrace.SpanExporter
	var err error
	switch opts.Exporter {
	case ExporterStdout:
		spanExporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ExporterNone:
		spanExporter = noopSpanExporter{}
	default:
		spanExporter, err = newOTLPExporter(ctx, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("build exporter: %w", err)
	}

	sampler := sdktrace.TraceIDRatioBased(opts.SampleRatio)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	return tp, nil
}

// Tracer exposes the configured tracer.
func Tracer() trace.Tracer {
	if manager == nil {
		return otel.Tracer("github.com/contestra/ai-ranker-v2-sub003/obs")
	}
	return manager.tracer
}

// Meter exposes the configured meter for custom instrumentation.
func Meter() metric.Meter {
	if manager == nil {
		return otel.Meter("github.com/contestra/ai-ranker-v2-sub003/obs")
	}
	return manager.meter
}

// RecordRequest records request-level metrics.
func RecordRequest(attrs ...attribute.KeyValue) {
	if manager == nil {
		return
	}
	recordRequest(attrs...)
}

// RecordUsage emits token metrics.
func RecordUsage(usageTokens UsageTokens, attrs ...attribute.KeyValue) {
	if manager == nil {
		return
	}
	recordUsage(usageTokens, attrs...)
}

// RecordGrounding emits grounding outcome metrics.
func RecordGrounding(effective bool, failedClosed bool, attrs ...attribute.KeyValue) {
	if manager == nil {
		return
	}
	recordGrounding(effective, failedClosed, attrs...)
}

// RecordVariantProbe counts variant-cache consultations and fallbacks.
func RecordVariantProbe(hit bool, fallback bool, attrs ...attribute.KeyValue) {
	if manager == nil {
		return
	}
	recordVariantProbe(hit, fallback, attrs...)
}

// EmitTelemetry fans a telemetry row out to configured sinks. Sink errors
// are swallowed to keep them off the hot path.
func EmitTelemetry(ctx context.Context, record core.TelemetryRecord) {
	if manager == nil {
		return
	}
	for _, sink := range manager.sinks {
		_ = sink.Record(ctx, record)
	}
}

// UsageTokens standardizes token metrics across sinks.
type UsageTokens struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// UsageFromCore converts normalized usage into the metrics form.
func UsageFromCore(usage core.Usage) UsageTokens {
	return UsageTokens{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}
}
