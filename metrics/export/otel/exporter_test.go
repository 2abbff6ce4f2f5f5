package otel

import (
	"context"
	"sync"
	"testing"

	goIdentity "github.com/MrEthical07/goIdentity"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type mutableSource struct {
	mu       sync.RWMutex
	counters map[goIdentity.MetricID]uint64
	latency  []uint64
	audit    goIdentity.AuditStats
}

func (s *mutableSource) MetricsSnapshot() goIdentity.MetricsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := goIdentity.MetricsSnapshot{
		Counters:   make(map[goIdentity.MetricID]uint64, len(s.counters)),
		Histograms: map[goIdentity.MetricID][]uint64{},
	}
	for k, v := range s.counters {
		out.Counters[k] = v
	}
	if s.latency != nil {
		out.Histograms[goIdentity.MetricValidateLatency] = append([]uint64(nil), s.latency...)
	}
	return out
}

func (s *mutableSource) AuditStats() goIdentity.AuditStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audit
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findSum(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) > 0 {
				return sum.DataPoints[0].Value, true
			}
		}
	}
	return 0, false
}

func TestExporterCollects(t *testing.T) {
	reader, provider := newReader()
	src := &mutableSource{
		counters: map[goIdentity.MetricID]uint64{goIdentity.MetricLoginSuccess: 3},
		latency:  []uint64{1, 1, 1, 1, 1, 1, 1, 1},
		audit:    goIdentity.AuditStats{Delivered: 9, Dropped: 1, SinkPanics: 2},
	}

	exp, err := NewExporter(provider.Meter("identity-test"), src)
	if err != nil {
		t.Fatalf("new exporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if v, ok := findSum(rm, "identity_login_success_total"); !ok || v != 3 {
		t.Fatalf("login counter = %d (found %v)", v, ok)
	}
	for name, want := range map[string]int64{
		"identity_audit_delivered_total":   9,
		"identity_audit_dropped_total":     1,
		"identity_audit_sink_panics_total": 2,
	} {
		if v, ok := findSum(rm, name); !ok || v != want {
			t.Fatalf("%s = %d (found %v), want %d", name, v, ok, want)
		}
	}
}

func TestExporterRejectsNil(t *testing.T) {
	_, provider := newReader()
	if _, err := NewExporter(provider.Meter("identity-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(nil, &mutableSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReader()
	src := &mutableSource{counters: map[goIdentity.MetricID]uint64{}}

	exp, err := NewExporter(provider.Meter("identity-test"), src)
	if err != nil {
		t.Fatalf("new exporter failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.counters[goIdentity.MetricRefreshSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
