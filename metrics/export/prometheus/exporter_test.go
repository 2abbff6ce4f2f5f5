package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goIdentity "github.com/MrEthical07/goIdentity"
)

type staticSource struct {
	snapshot goIdentity.MetricsSnapshot
	audit    goIdentity.AuditStats
}

func (s staticSource) MetricsSnapshot() goIdentity.MetricsSnapshot { return s.snapshot }
func (s staticSource) AuditStats() goIdentity.AuditStats           { return s.audit }

func emptySnapshot() goIdentity.MetricsSnapshot {
	return goIdentity.MetricsSnapshot{
		Counters:   map[goIdentity.MetricID]uint64{},
		Histograms: map[goIdentity.MetricID][]uint64{},
	}
}

func TestRenderDisabled(t *testing.T) {
	if got := NewExporter(staticSource{snapshot: emptySnapshot()}).Render(); got != "" {
		t.Fatalf("expected no output, got:\n%s", got)
	}
	var nilExporter *Exporter
	if nilExporter.Render() != "" {
		t.Fatal("nil exporter should render nothing")
	}
}

func TestRenderCountersAndHistogram(t *testing.T) {
	snap := emptySnapshot()
	snap.Counters[goIdentity.MetricLoginSuccess] = 7
	snap.Counters[goIdentity.MetricRefreshReplayDetected] = 1
	snap.Histograms[goIdentity.MetricValidateLatency] = []uint64{1, 2, 3, 4, 5, 6, 7, 8}

	out := NewExporter(staticSource{snapshot: snap, audit: goIdentity.AuditStats{Delivered: 40, Dropped: 2, SinkPanics: 1}}).Render()
	for _, want := range []string{
		"identity_login_success_total 7",
		"identity_refresh_replay_detected_total 1",
		"identity_login_failure_total 0",
		`identity_validate_latency_seconds_bucket{le="0.005"} 1`,
		`identity_validate_latency_seconds_bucket{le="+Inf"} 36`,
		"identity_validate_latency_seconds_count 36",
		"# TYPE identity_validate_latency_seconds histogram",
		"identity_audit_delivered_total 40",
		"identity_audit_dropped_total 2",
		"identity_audit_sink_panics_total 1",
		"# TYPE identity_audit_sink_panics_total counter",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderAuditOnly(t *testing.T) {
	out := NewExporter(staticSource{snapshot: emptySnapshot(), audit: goIdentity.AuditStats{Delivered: 3}}).Render()
	if !strings.Contains(out, "identity_audit_delivered_total 3") || !strings.Contains(out, "identity_login_success_total 0") {
		t.Fatalf("expected full exposition once audit delivered events, got:\n%s", out)
	}
}

func TestHandler(t *testing.T) {
	snap := emptySnapshot()
	snap.Counters[goIdentity.MetricLoginSuccess] = 1

	rec := httptest.NewRecorder()
	NewExporter(staticSource{snapshot: snap}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != ContentType {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "identity_login_success_total 1") {
		t.Fatal("counter missing from body")
	}
}

func BenchmarkRender(b *testing.B) {
	snap := emptySnapshot()
	for _, id := range []goIdentity.MetricID{goIdentity.MetricLoginSuccess, goIdentity.MetricRefreshSuccess, goIdentity.MetricLoginFailure} {
		snap.Counters[id] = 1000
	}
	snap.Histograms[goIdentity.MetricValidateLatency] = []uint64{10, 20, 30, 40, 50, 60, 70, 80}
	exp := NewExporter(staticSource{snapshot: snap})

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
