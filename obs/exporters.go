package obs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func newOTLPExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	httpOpts := []otlptracehttp.Option{}
	if opts.Endpoint != "" {
		httpOpts = append(httpOpts, otlptracehttp.WithEndpoint(opts.Endpoint))
	}
	if opts.Insecure {
		httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
	}
	if len(opts.Headers) > 0 {
		httpOpts = append(httpOpts, otlptracehttp.WithHeaders(opts.Headers))
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return otlptracehttp.New(ctx, httpOpts...)
}
