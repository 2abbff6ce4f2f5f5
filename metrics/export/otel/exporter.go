package otel

import (
	"context"
	"errors"
	"fmt"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("otel exporter: nil meter")
	ErrNilSource = errors.New("otel exporter: nil metrics source")
)

// Source is the read side of an engine.
type Source interface {
	MetricsSnapshot() goIdentity.MetricsSnapshot
	AuditStats() goIdentity.AuditStats
}

type counterBinding struct {
	id  goIdentity.MetricID
	ins metric.Int64ObservableCounter
}

type auditBinding struct {
	value func(goIdentity.AuditStats) uint64
	ins   metric.Int64ObservableCounter
}

type histogramBinding struct {
	id      goIdentity.MetricID
	buckets [internaldefs.BucketCount]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// Exporter keeps the callback registration alive until Close.
type Exporter struct {
	source       Source
	registration metric.Registration
	counters     []counterBinding
	histograms   []histogramBinding
	audit        []auditBinding
}

func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterBinding{id: def.ID, ins: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		hb := histogramBinding{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(def.Help+" Cumulative bucket."))
			if err != nil {
				return nil, fmt.Errorf("bucket %s: %w", name, err)
			}
			hb.buckets[i] = ins
			observables = append(observables, ins)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", def.Name, err)
		}
		hb.count = count
		observables = append(observables, count)
		e.histograms = append(e.histograms, hb)
	}

	for _, def := range internaldefs.AuditCounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.audit = append(e.audit, auditBinding{value: def.Value, ins: ins})
		observables = append(observables, ins)
	}

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.ins, int64(snap.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.Cumulative(snap.Histograms[h.id])
		for i, v := range cumulative {
			o.ObserveInt64(h.buckets[i], int64(v))
		}
		o.ObserveInt64(h.count, int64(cumulative[internaldefs.BucketCount-1]))
	}
	stats := e.source.AuditStats()
	for _, a := range e.audit {
		o.ObserveInt64(a.ins, int64(a.value(stats)))
	}
	return nil
}

// Close unregisters the callback. It is safe on a nil Exporter.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
