package vortex

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/vorthain/vorthain-vortex"

func defaultTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer(tracerName)
}

// startRequestSpan starts the client span that covers one Send call,
// retries included.
func startRequestSpan(ctx context.Context, tracer trace.Tracer, cfg *RequestConfig) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, cfg.Method+" "+cfg.Endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("http.request.method", cfg.Method),
		attribute.String("vortex.endpoint", cfg.Endpoint),
		attribute.String("vortex.request_id", cfg.RequestID),
	)
	return ctx, span
}

// endSpan finishes a span, recording error status if applicable.
func endSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		if ce, ok := AsClientError(err); ok {
			span.SetAttributes(attribute.String("vortex.error_type", string(ce.Type)))
			if ce.Status > 0 {
				span.SetAttributes(attribute.Int("http.response.status_code", ce.Status))
			}
		}
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// injectHeaders writes W3C trace context into outgoing headers.
func injectHeaders(ctx context.Context, propagator propagation.TextMapPropagator, headers http.Header) {
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}
	propagator.Inject(ctx, propagation.HeaderCarrier(headers))
}
