package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/qtdata/influxdb/authz"
	"github.com/qtdata/influxdb/tracker"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilGatherer is returned when no metric source is supplied.
	ErrNilGatherer = errors.New("nil gatherer")
)

// familyDef names a Prometheus family this module owns and exports.
type familyDef struct {
	Name string
	Help string
}

var (
	gaugeDefs = []familyDef{
		{Name: tracker.FreeSpaceMetric, Help: "The percentage amount of disk available."},
	}
	histogramDefs = []familyDef{
		{Name: authz.DurationMetric, Help: "Duration of authz permissions checks."},
	}
)

type observedGauge struct {
	name       string
	instrument metric.Float64ObservableGauge
}

type observedHistogram struct {
	name  string
	count metric.Int64ObservableCounter
	sum   metric.Float64ObservableCounter
}

// Exporter bridges the module's Prometheus families onto an OTel meter via a
// registered callback. Close unregisters the callback.
type Exporter struct {
	gatherer     prometheus.Gatherer
	registration metric.Registration
	gauges       []observedGauge
	histograms   []observedHistogram
}

// NewExporter creates the OTel instruments for every known family and
// registers a callback that observes their current values from gatherer on
// each collection.
func NewExporter(meter metric.Meter, gatherer prometheus.Gatherer) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if gatherer == nil {
		return nil, ErrNilGatherer
	}

	exporter := &Exporter{
		gatherer:   gatherer,
		gauges:     make([]observedGauge, 0, len(gaugeDefs)),
		histograms: make([]observedHistogram, 0, len(histogramDefs)),
	}

	observables := make([]metric.Observable, 0, len(gaugeDefs)+len(histogramDefs)*2)

	for _, def := range gaugeDefs {
		ins, err := meter.Float64ObservableGauge(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable gauge %s: %w", def.Name, err)
		}
		exporter.gauges = append(exporter.gauges, observedGauge{name: def.Name, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range histogramDefs {
		count, err := meter.Int64ObservableCounter(def.Name+"_count", metric.WithDescription("Total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count counter %s: %w", def.Name, err)
		}
		sum, err := meter.Float64ObservableCounter(def.Name+"_sum", metric.WithDescription("Sum of all observed values."))
		if err != nil {
			return nil, fmt.Errorf("create histogram sum counter %s: %w", def.Name, err)
		}
		exporter.histograms = append(exporter.histograms, observedHistogram{name: def.Name, count: count, sum: sum})
		observables = append(observables, count, sum)
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		families, err := exporter.gatherer.Gather()
		if err != nil {
			return fmt.Errorf("gather: %w", err)
		}
		byName := make(map[string]*dto.MetricFamily, len(families))
		for _, family := range families {
			byName[family.GetName()] = family
		}

		for _, g := range exporter.gauges {
			family := byName[g.name]
			if family == nil || family.GetType() != dto.MetricType_GAUGE {
				continue
			}
			for _, m := range family.GetMetric() {
				observer.ObserveFloat64(g.instrument, m.GetGauge().GetValue(), metric.WithAttributes(labelAttributes(m)...))
			}
		}

		for _, h := range exporter.histograms {
			family := byName[h.name]
			if family == nil || family.GetType() != dto.MetricType_HISTOGRAM {
				continue
			}
			for _, m := range family.GetMetric() {
				attrs := metric.WithAttributes(labelAttributes(m)...)
				observer.ObserveInt64(h.count, int64(m.GetHistogram().GetSampleCount()), attrs)
				observer.ObserveFloat64(h.sum, m.GetHistogram().GetSampleSum(), attrs)
			}
		}
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

func labelAttributes(m *dto.Metric) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(m.GetLabel()))
	for _, label := range m.GetLabel() {
		attrs = append(attrs, attribute.String(label.GetName(), label.GetValue()))
	}
	return attrs
}
