package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/metrics/export/internaldefs"
)

// Source is the read side of an engine.
type Source interface {
	MetricsSnapshot() goIdentity.MetricsSnapshot
	AuditStats() goIdentity.AuditStats
}

// Exporter renders a Source on demand.
type Exporter struct {
	source Source
}

func NewExporter(source Source) *Exporter {
	return &Exporter{source: source}
}

func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		_, _ = w.Write([]byte(p.Render()))
	})
}

// ContentType is the exposition format version written by Render.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// Render returns the exposition text, or "" when metrics are disabled and the audit stream
// has seen nothing.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}
	snapshot := p.source.MetricsSnapshot()
	audit := p.source.AuditStats()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && audit == (goIdentity.AuditStats{}) {
		return ""
	}

	var b strings.Builder
	b.Grow(64 * (len(internaldefs.CounterDefs) + len(internaldefs.AuditCounterDefs) + 16))
	for _, def := range internaldefs.CounterDefs {
		counter(&b, def.Name, def.Help, snapshot.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		histogram(&b, def.Name, def.Help, internaldefs.Cumulative(snapshot.Histograms[def.ID]))
	}
	for _, def := range internaldefs.AuditCounterDefs {
		counter(&b, def.Name, def.Help, def.Value(audit))
	}
	return b.String()
}

func header(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	b.WriteString("# TYPE " + name + " " + kind + "\n")
}

func counter(b *strings.Builder, name, help string, value uint64) {
	header(b, name, help, "counter")
	b.WriteString(name + " " + strconv.FormatUint(value, 10) + "\n")
}

func histogram(b *strings.Builder, name, help string, cumulative [internaldefs.BucketCount]uint64) {
	header(b, name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		b.WriteString(name + `_bucket{le="` + le + `"} ` + strconv.FormatUint(cumulative[i], 10) + "\n")
	}
	b.WriteString(name + "_count " + strconv.FormatUint(cumulative[internaldefs.BucketCount-1], 10) + "\n")
	// Samples are bucketed only; the sum is not tracked.
	b.WriteString(name + "_sum 0\n")
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func escapeHelp(help string) string {
	return helpEscaper.Replace(help)
}
