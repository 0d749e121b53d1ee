package otel

import (
	"context"
	"errors"
	"sync"
	"testing"

	authkit "github.com/hilomagico/authkit"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// stubSource serves mutable metric values behind a mutex so tests can change
// them between collection cycles.
type stubSource struct {
	mu       sync.Mutex
	counters map[authkit.MetricID]uint64
	latency  []uint64
	dropped  uint64
}

func newStubSource() *stubSource {
	return &stubSource{counters: make(map[authkit.MetricID]uint64)}
}

func (s *stubSource) set(id authkit.MetricID, value uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[id] = value
}

func (s *stubSource) setLatency(buckets []uint64, dropped uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = append([]uint64(nil), buckets...)
	s.dropped = dropped
}

func (s *stubSource) MetricsSnapshot() authkit.MetricsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := authkit.MetricsSnapshot{
		Counters:   make(map[authkit.MetricID]uint64, len(s.counters)),
		Histograms: make(map[authkit.MetricID][]uint64, 1),
	}
	for id, value := range s.counters {
		out.Counters[id] = value
	}
	if s.latency != nil {
		out.Histograms[authkit.MetricVerifyLatency] = append([]uint64(nil), s.latency...)
	}
	return out
}

func (s *stubSource) AuditDropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, func(*testing.T, *stubSource) *Exporter) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("authkit-test")
	return reader, func(t *testing.T, src *stubSource) *Exporter {
		t.Helper()
		exp, err := NewExporterFromSource(meter, src)
		if err != nil {
			t.Fatalf("NewExporterFromSource failed: %v", err)
		}
		t.Cleanup(func() {
			if err := exp.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}
		})
		return exp
	}
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	return rm
}

// metricValue finds one named instrument in the collected output and sums its
// data points, regardless of whether the SDK reported it as a sum or a gauge.
func metricValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			var total int64
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
			default:
				t.Fatalf("metric %s collected with unexpected data type %T", name, m.Data)
			}
			return total
		}
	}
	t.Fatalf("metric %s was not collected", name)
	return 0
}

func TestExporterObservesCounterValues(t *testing.T) {
	reader, build := newTestMeter(t)
	src := newStubSource()
	src.set(authkit.MetricLoginSuccess, 3)
	src.set(authkit.MetricRefreshReuseDetected, 2)
	build(t, src)

	rm := collect(t, reader)

	if got := metricValue(t, rm, "authkit_login_success_total"); got != 3 {
		t.Fatalf("login_success = %d, want 3", got)
	}
	if got := metricValue(t, rm, "authkit_refresh_reuse_detected_total"); got != 2 {
		t.Fatalf("refresh_reuse_detected = %d, want 2", got)
	}
	// Untouched counters still register and report zero.
	if got := metricValue(t, rm, "authkit_logout_total"); got != 0 {
		t.Fatalf("logout = %d, want 0", got)
	}
}

func TestExporterHistogramBucketsAreCumulative(t *testing.T) {
	reader, build := newTestMeter(t)
	src := newStubSource()
	src.setLatency([]uint64{4, 2, 0, 0, 1, 0, 0, 0}, 7)
	build(t, src)

	rm := collect(t, reader)

	// Raw per-bucket counts {4,2,0,0,1,...} become running totals.
	if got := metricValue(t, rm, "authkit_verify_latency_seconds_bucket_le_0_005"); got != 4 {
		t.Fatalf("le_0_005 = %d, want 4", got)
	}
	if got := metricValue(t, rm, "authkit_verify_latency_seconds_bucket_le_0_01"); got != 6 {
		t.Fatalf("le_0_01 = %d, want 6", got)
	}
	if got := metricValue(t, rm, "authkit_verify_latency_seconds_bucket_le_inf"); got != 7 {
		t.Fatalf("le_inf = %d, want 7", got)
	}
	if got := metricValue(t, rm, "authkit_verify_latency_seconds_count"); got != 7 {
		t.Fatalf("count = %d, want 7", got)
	}
	if got := metricValue(t, rm, "authkit_audit_dropped_total"); got != 7 {
		t.Fatalf("audit_dropped = %d, want 7", got)
	}
}

func TestExporterReflectsSourceChangesBetweenCollections(t *testing.T) {
	reader, build := newTestMeter(t)
	src := newStubSource()
	src.set(authkit.MetricVerifySuccess, 1)
	build(t, src)

	first := collect(t, reader)
	if got := metricValue(t, first, "authkit_verify_success_total"); got != 1 {
		t.Fatalf("first collection = %d, want 1", got)
	}

	src.set(authkit.MetricVerifySuccess, 5)
	second := collect(t, reader)
	if got := metricValue(t, second, "authkit_verify_success_total"); got != 5 {
		t.Fatalf("second collection = %d, want 5", got)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("authkit-test")

	if _, err := NewExporterFromSource(nil, newStubSource()); !errors.Is(err, ErrNilMeter) {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewExporterFromSource(meter, nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
}

func TestExporterCloseStopsCollection(t *testing.T) {
	reader, build := newTestMeter(t)
	src := newStubSource()
	src.set(authkit.MetricLoginSuccess, 1)
	exp := build(t, src)

	if err := exp.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == "authkit_login_success_total" {
				switch data := m.Data.(type) {
				case metricdata.Sum[int64]:
					if len(data.DataPoints) != 0 {
						t.Fatal("unregistered callback must not produce data points")
					}
				}
			}
		}
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, build := newTestMeter(t)
	src := newStubSource()
	src.setLatency([]uint64{1, 0, 0, 0, 0, 0, 0, 0}, 0)
	build(t, src)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.set(authkit.MetricLoginSuccess, v)

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
