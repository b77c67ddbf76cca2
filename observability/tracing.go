// Package observability provides OpenTelemetry integration for decisionkit:
// tracing, Prometheus-exported metrics, trace-aware logging and an audit
// trail of answered queries.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// InstrumentationName is the tracer and meter scope used by decisionkit.
const InstrumentationName = "decisionkit.observability"

// TraceContextKey is the message metadata key carrying W3C trace headers.
const TraceContextKey = "trace_context"

// InitTracing installs a global tracer provider. Spans go to the OTLP gRPC
// endpoint when one is given and to stdout when consoleExport is set; with
// neither, spans are recorded but not exported.
func InitTracing(ctx context.Context, serviceName string, otlpEndpoint string, consoleExport bool) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if otlpEndpoint != "" {
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(otlpEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	if consoleExport {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create console exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}

// GetTracer returns a tracer from the current global tracer provider.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// ExtractTraceContext continues a trace carried in message metadata.
func ExtractTraceContext(ctx context.Context, metadata map[string]interface{}) context.Context {
	traceCtx, ok := metadata[TraceContextKey].(map[string]interface{})
	if !ok {
		return ctx
	}
	carrier := make(propagation.MapCarrier)
	for k, v := range traceCtx {
		if s, ok := v.(string); ok {
			carrier[k] = s
		}
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// InjectTraceContext writes the current trace headers into metadata.
func InjectTraceContext(ctx context.Context, metadata map[string]interface{}) map[string]interface{} {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	carrier := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) > 0 {
		traceCtx := make(map[string]interface{}, len(carrier))
		for k, v := range carrier {
			traceCtx[k] = v
		}
		metadata[TraceContextKey] = traceCtx
	}
	return metadata
}

// TracingMiddleware wraps an agent with a span per Process call. Routing
// metadata on the response (routed_domain, routed_agent, is_clear_match)
// is copied onto the span.
type TracingMiddleware struct {
	agent    decisionkit.Agent
	spanName string
	tracer   trace.Tracer
}

var _ decisionkit.Agent = (*TracingMiddleware)(nil)

// NewTracingMiddleware creates a new tracing middleware.
func NewTracingMiddleware(agent decisionkit.Agent, spanName string) *TracingMiddleware {
	if spanName == "" {
		spanName = fmt.Sprintf("agent.%s.process", agent.Name())
	}
	return &TracingMiddleware{
		agent:    agent,
		spanName: spanName,
		tracer:   GetTracer(InstrumentationName),
	}
}

// Name returns the agent name.
func (t *TracingMiddleware) Name() string { return t.agent.Name() }

// Capabilities returns the agent capabilities.
func (t *TracingMiddleware) Capabilities() []string { return t.agent.Capabilities() }

// Process processes a message with distributed tracing.
func (t *TracingMiddleware) Process(ctx context.Context, message *decisionkit.Message) (*decisionkit.Message, error) {
	ctx = ExtractTraceContext(ctx, message.Metadata)

	ctx, span := t.tracer.Start(ctx, t.spanName, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	span.SetAttributes(
		attribute.String("agent.name", t.agent.Name()),
		attribute.String("message.role", message.Role),
		attribute.Int("message.content_length", len(message.Content)),
	)
	if id := message.MetadataString("conversation_id"); id != "" {
		span.SetAttributes(attribute.String("conversation.id", id))
	}

	response, err := t.agent.Process(ctx, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	for _, key := range []string{"routed_domain", "routed_agent"} {
		if v := response.MetadataString(key); v != "" {
			span.SetAttributes(attribute.String("decisionkit."+key, v))
		}
	}
	if clear, ok := response.Metadata["is_clear_match"].(bool); ok {
		span.SetAttributes(attribute.Bool("decisionkit.is_clear_match", clear))
	}
	span.SetStatus(codes.Ok, "")

	response.Metadata = InjectTraceContext(ctx, response.Metadata)
	return response, nil
}
