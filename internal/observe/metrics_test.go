package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumWhere returns the value of the data point whose attribute key equals
// value, and whether one was found.
func sumWhere(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) (int64, bool) {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value, true
		}
	}
	return 0, false
}

func TestHistograms(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFormat(ctx, 200*time.Microsecond)
	m.RecordFormat(ctx, 300*time.Microsecond)
	m.RecordRewrite(ctx, 800*time.Millisecond, "ok")
	m.RecordRewrite(ctx, 2*time.Second, "ok")

	rm := collect(t, reader)
	for _, name := range []string{"vibecoding.format.duration", "vibecoding.rewrite.duration"} {
		met := findMetric(rm, name)
		if met == nil {
			t.Fatalf("metric %q not found", name)
		}
		hist, ok := met.Data.(metricdata.Histogram[float64])
		if !ok {
			t.Fatalf("metric %q is not a histogram", name)
		}
		if len(hist.DataPoints) != 1 {
			t.Fatalf("metric %q has %d data points, want 1", name, len(hist.DataPoints))
		}
		if got := hist.DataPoints[0].Count; got != 2 {
			t.Errorf("%s sample count = %d, want 2", name, got)
		}
	}
}

func TestCounters(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCleanup(ctx, "rules", "ok")
	m.RecordCleanup(ctx, "rules", "ok")
	m.RecordCleanup(ctx, "llm", "ok")
	m.RecordFallback(ctx, "drift")
	m.RecordFallback(ctx, "drift")
	m.RecordFallback(ctx, "timeout")
	m.RecordProviderRequest(ctx, "openai", "ok")
	m.RecordProviderRequest(ctx, "openai", "error")
	m.RecordProviderError(ctx, "openai", "rate_limit")

	rm := collect(t, reader)

	tests := []struct {
		metric, key, value string
		want               int64
	}{
		{"vibecoding.cleanups", "method", "rules", 2},
		{"vibecoding.cleanups", "method", "llm", 1},
		{"vibecoding.rewrite.fallbacks", "reason", "drift", 2},
		{"vibecoding.rewrite.fallbacks", "reason", "timeout", 1},
		{"vibecoding.provider.requests", "status", "error", 1},
		{"vibecoding.provider.errors", "kind", "rate_limit", 1},
	}
	for _, tc := range tests {
		got, ok := sumWhere(t, rm, tc.metric, tc.key, tc.value)
		if !ok {
			t.Errorf("%s{%s=%q} not found", tc.metric, tc.key, tc.value)
			continue
		}
		if got != tc.want {
			t.Errorf("%s{%s=%q} = %d, want %d", tc.metric, tc.key, tc.value, got, tc.want)
		}
	}
}

func TestStreamActive(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.StreamActive.Add(ctx, 1)
	m.StreamActive.Add(ctx, 1)
	m.StreamActive.Add(ctx, -1)

	met := findMetric(collect(t, reader), "vibecoding.stream.active")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 {
		t.Fatal("metric is not a sum with data points")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("stream.active = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	t.Parallel()

	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different pointers")
	}
}
