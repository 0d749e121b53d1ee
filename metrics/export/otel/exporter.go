package otel

import (
	"context"
	"errors"
	"fmt"

	authkit "github.com/hilomagico/authkit"
	"github.com/hilomagico/authkit/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// metricsSource is the slice of Engine the exporter needs. Tests substitute
// their own implementation.
type metricsSource interface {
	MetricsSnapshot() authkit.MetricsSnapshot
	AuditDropped() uint64
}

// view is one consistent read of the source, taken once per collection cycle
// so every instrument in the cycle reports from the same snapshot. Histogram
// buckets are already converted to cumulative form.
type view struct {
	counters   map[authkit.MetricID]uint64
	cumulative map[authkit.MetricID][8]uint64
	dropped    uint64
}

func snapshotView(source metricsSource) view {
	snapshot := source.MetricsSnapshot()
	v := view{
		counters:   snapshot.Counters,
		cumulative: make(map[authkit.MetricID][8]uint64, len(snapshot.Histograms)),
		dropped:    source.AuditDropped(),
	}
	for id, raw := range snapshot.Histograms {
		v.cumulative[id] = internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
	}
	return v
}

// binding pairs an OTel instrument with the function that extracts its value
// from a view. The callback is then a single loop over bindings.
type binding struct {
	instrument metric.Int64Observable
	read       func(view) int64
}

// Exporter bridges the engine's internal metrics onto an OTel meter through
// observable instruments; the SDK pulls values on collection, the engine is
// never touched between cycles.
type Exporter struct {
	registration metric.Registration
}

// NewExporter creates an Exporter backed by a built Engine.
func NewExporter(meter metric.Meter, engine *authkit.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource is the source-generic constructor behind NewExporter.
// Registering creates one observable instrument per counter definition, a
// gauge per cumulative histogram bucket plus a sample-count gauge, and an
// audit backpressure counter, all served by a single callback.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	bindings, err := buildBindings(meter)
	if err != nil {
		return nil, err
	}

	instruments := make([]metric.Observable, len(bindings))
	for i, b := range bindings {
		instruments[i] = b.instrument
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		v := snapshotView(source)
		for _, b := range bindings {
			observer.ObserveInt64(b.instrument, b.read(v))
		}
		return nil
	}, instruments...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	return &Exporter{registration: registration}, nil
}

func buildBindings(meter metric.Meter) ([]binding, error) {
	bindings := make([]binding, 0, len(internaldefs.CounterDefs)+len(internaldefs.HistogramDefs)*9+1)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		id := def.ID
		bindings = append(bindings, binding{
			instrument: ins,
			read:       func(v view) int64 { return int64(v.counters[id]) },
		})
	}

	for _, def := range internaldefs.HistogramDefs {
		id := def.ID
		for i := 0; i < len(internaldefs.HistogramBoundSuffix); i++ {
			name := def.Name + "_bucket_le_" + internaldefs.HistogramBoundSuffix[i]
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
			if err != nil {
				return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			idx := i
			bindings = append(bindings, binding{
				instrument: ins,
				read:       func(v view) int64 { return int64(v.cumulative[id][idx]) },
			})
		}

		countIns, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s_count: %w", def.Name, err)
		}
		last := len(internaldefs.HistogramBounds) - 1
		bindings = append(bindings, binding{
			instrument: countIns,
			read:       func(v view) int64 { return int64(v.cumulative[id][last]) },
		})
	}

	droppedIns, err := meter.Int64ObservableCounter(
		"authkit_audit_dropped_total",
		metric.WithDescription("Dropped audit events due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	bindings = append(bindings, binding{
		instrument: droppedIns,
		read:       func(v view) int64 { return int64(v.dropped) },
	})

	return bindings, nil
}

// Close unregisters the collection callback. Safe on a nil receiver.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
