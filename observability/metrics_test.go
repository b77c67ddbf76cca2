package observability

import (
	"context"
	"strings"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

func setupTestMetrics(t *testing.T) *metric.ManualReader {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader
}

func findSum(t *testing.T, reader *metric.ManualReader, name string) metricdata.Sum[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !ok {
					t.Fatalf("%s is %T, want Sum[int64]", name, m.Data)
				}
				return sum
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return metricdata.Sum[int64]{}
}

func TestMetricsMiddlewareCountsRoutedDomains(t *testing.T) {
	reader := setupTestMetrics(t)

	agent, err := NewMetricsMiddleware(&routedAgent{domain: "logistics"})
	if err != nil {
		t.Fatalf("NewMetricsMiddleware failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := agent.Process(context.Background(), decisionkit.NewMessage("user", "stock?")); err != nil {
			t.Fatalf("Process failed: %v", err)
		}
	}

	routes := findSum(t, reader, "decisionkit.routing.decisions")
	if len(routes.DataPoints) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(routes.DataPoints))
	}
	dp := routes.DataPoints[0]
	if dp.Value != 2 {
		t.Errorf("expected 2 routed queries, got %d", dp.Value)
	}
	if v, ok := dp.Attributes.Value(attribute.Key("domain")); !ok || v.AsString() != "logistics" {
		t.Errorf("domain attribute = %v", v.AsString())
	}
}

func TestMetricsMiddlewareCountsErrors(t *testing.T) {
	reader := setupTestMetrics(t)

	agent, err := NewMetricsMiddleware(&routedAgent{err: errUpstream})
	if err != nil {
		t.Fatalf("NewMetricsMiddleware failed: %v", err)
	}
	if _, err := agent.Process(context.Background(), decisionkit.NewMessage("user", "q")); err == nil {
		t.Fatal("expected error")
	}

	errorsSum := findSum(t, reader, "decisionkit.agent.errors")
	if len(errorsSum.DataPoints) != 1 || errorsSum.DataPoints[0].Value != 1 {
		t.Errorf("expected one error, got %+v", errorsSum.DataPoints)
	}
}

func TestInitMetricsRegistersPrometheusCollector(t *testing.T) {
	reg := promclient.NewRegistry()
	provider, err := InitMetrics(context.Background(), "decisionkit-test", reg)
	if err != nil {
		t.Fatalf("InitMetrics failed: %v", err)
	}
	defer provider.Shutdown(context.Background())

	agent, err := NewMetricsMiddleware(&routedAgent{domain: "sales"})
	if err != nil {
		t.Fatalf("NewMetricsMiddleware failed: %v", err)
	}
	if _, err := agent.Process(context.Background(), decisionkit.NewMessage("user", "q")); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	found := false
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "decisionkit_routing_decisions") {
			found = true
		}
	}
	if !found {
		t.Error("routing counter not exported to Prometheus")
	}
}
