package observability

import (
	"context"
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// InitMetrics installs a global meter provider whose readings are exported
// through the Prometheus registerer reg (nil = default registerer).
func InitMetrics(ctx context.Context, serviceName string, reg promclient.Registerer) (*sdkmetric.MeterProvider, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var opts []prometheus.Option
	if reg != nil {
		opts = append(opts, prometheus.WithRegisterer(reg))
	}
	exporter, err := prometheus.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)
	return provider, nil
}

// GetMeter returns a meter from the current global meter provider.
func GetMeter(name string) metric.Meter {
	return otel.Meter(name)
}

// MetricsMiddleware records request count, errors, latency, query size and
// the routed domain of every answer.
type MetricsMiddleware struct {
	agent            decisionkit.Agent
	requestCounter   metric.Int64Counter
	errorCounter     metric.Int64Counter
	routeCounter     metric.Int64Counter
	latencyHistogram metric.Float64Histogram
	messageSizeHist  metric.Int64Histogram
}

var _ decisionkit.Agent = (*MetricsMiddleware)(nil)

// NewMetricsMiddleware creates a new metrics middleware.
func NewMetricsMiddleware(agent decisionkit.Agent) (*MetricsMiddleware, error) {
	meter := GetMeter(InstrumentationName)
	m := &MetricsMiddleware{agent: agent}

	var err error
	if m.requestCounter, err = meter.Int64Counter("decisionkit.agent.requests",
		metric.WithDescription("Total number of agent requests"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	if m.errorCounter, err = meter.Int64Counter("decisionkit.agent.errors",
		metric.WithDescription("Total number of agent errors"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}
	if m.routeCounter, err = meter.Int64Counter("decisionkit.routing.decisions",
		metric.WithDescription("Queries answered per routed domain"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create routing counter: %w", err)
	}
	if m.latencyHistogram, err = meter.Float64Histogram("decisionkit.agent.latency",
		metric.WithDescription("Agent processing latency"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create latency histogram: %w", err)
	}
	if m.messageSizeHist, err = meter.Int64Histogram("decisionkit.agent.message_size",
		metric.WithDescription("Query content size"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, fmt.Errorf("failed to create message size histogram: %w", err)
	}
	return m, nil
}

// Name returns the agent name.
func (m *MetricsMiddleware) Name() string { return m.agent.Name() }

// Capabilities returns the agent capabilities.
func (m *MetricsMiddleware) Capabilities() []string { return m.agent.Capabilities() }

// Process processes a message with metrics collection.
func (m *MetricsMiddleware) Process(ctx context.Context, message *decisionkit.Message) (*decisionkit.Message, error) {
	start := time.Now()
	attrs := []attribute.KeyValue{attribute.String("agent.name", m.agent.Name())}

	m.messageSizeHist.Record(ctx, int64(len(message.Content)), metric.WithAttributes(attrs...))

	response, err := m.agent.Process(ctx, message)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		errorAttrs := append(attrs,
			attribute.String("status", "error"),
			attribute.String("error.type", fmt.Sprintf("%T", err)),
		)
		m.requestCounter.Add(ctx, 1, metric.WithAttributes(errorAttrs...))
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(errorAttrs...))
		m.latencyHistogram.Record(ctx, latencyMs, metric.WithAttributes(errorAttrs...))
		return nil, err
	}

	successAttrs := append(attrs, attribute.String("status", "success"))
	m.requestCounter.Add(ctx, 1, metric.WithAttributes(successAttrs...))
	m.latencyHistogram.Record(ctx, latencyMs, metric.WithAttributes(successAttrs...))

	if domain := response.MetadataString("routed_domain"); domain != "" {
		m.routeCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("domain", domain)))
	}
	return response, nil
}
