package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// DefaultStateTimeout bounds the store read made on each collection.
const DefaultStateTimeout = 2 * time.Second

// observeFunc records one instrument family from the values read for a
// single collection.
type observeFunc func(o metric.Observer, snap adminauth.MetricsSnapshot, state *adminauth.StateSnapshot)

// Exporter owns the callback registration; Close unregisters it.
type Exporter struct {
	source       internaldefs.Source
	stateTimeout time.Duration
	registration metric.Registration
	observers    []observeFunc
	stateUp      metric.Int64ObservableGauge
}

// New registers instruments on meter that read from engine.
func New(meter metric.Meter, engine *adminauth.Engine) (*Exporter, error) {
	return NewFromSource(meter, engine)
}

// NewFromSource registers instruments that read from source.
func NewFromSource(meter metric.Meter, source internaldefs.Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	x := &Exporter{source: source, stateTimeout: DefaultStateTimeout}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		id := def.ID
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		observables = append(observables, ins)
		x.observers = append(x.observers, func(o metric.Observer, snap adminauth.MetricsSnapshot, _ *adminauth.StateSnapshot) {
			o.ObserveInt64(ins, int64(snap.Counters[id]))
		})
	}

	for _, def := range internaldefs.HistogramDefs {
		id := def.ID
		var buckets [8]metric.Int64ObservableGauge
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
			if err != nil {
				return nil, fmt.Errorf("create bucket gauge %s: %w", name, err)
			}
			buckets[i] = ins
			observables = append(observables, ins)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create count gauge %s: %w", def.Name, err)
		}
		observables = append(observables, count)
		x.observers = append(x.observers, func(o metric.Observer, snap adminauth.MetricsSnapshot, _ *adminauth.StateSnapshot) {
			cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[id]))
			for i := range cumulative {
				o.ObserveInt64(buckets[i], int64(cumulative[i]))
			}
			o.ObserveInt64(count, int64(cumulative[len(cumulative)-1]))
		})
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	observables = append(observables, dropped)
	x.observers = append(x.observers, func(o metric.Observer, _ adminauth.MetricsSnapshot, _ *adminauth.StateSnapshot) {
		o.ObserveInt64(dropped, int64(x.source.AuditDropped()))
	})

	requests, err := meter.Int64ObservableGauge(internaldefs.RequestsName, metric.WithDescription(internaldefs.RequestsHelp))
	if err != nil {
		return nil, fmt.Errorf("create requests gauge: %w", err)
	}
	sessions, err := meter.Int64ObservableGauge(internaldefs.ActiveSessionsName, metric.WithDescription(internaldefs.ActiveSessionsHelp))
	if err != nil {
		return nil, fmt.Errorf("create active sessions gauge: %w", err)
	}
	observables = append(observables, requests, sessions)
	x.observers = append(x.observers, func(o metric.Observer, _ adminauth.MetricsSnapshot, state *adminauth.StateSnapshot) {
		if state == nil {
			return
		}
		for _, status := range internaldefs.RequestStatuses {
			o.ObserveInt64(requests, state.Requests[status], metric.WithAttributes(attribute.String("status", string(status))))
		}
		o.ObserveInt64(sessions, state.ActiveSessions)
	})

	x.stateUp, err = meter.Int64ObservableGauge(internaldefs.StateUpName, metric.WithDescription(internaldefs.StateUpHelp))
	if err != nil {
		return nil, fmt.Errorf("create state up gauge: %w", err)
	}
	observables = append(observables, x.stateUp)

	x.registration, err = meter.RegisterCallback(x.collect, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return x, nil
}

func (x *Exporter) collect(ctx context.Context, o metric.Observer) error {
	snap := x.source.MetricsSnapshot()
	state := x.readState(ctx)
	if state != nil {
		o.ObserveInt64(x.stateUp, 1)
	} else {
		o.ObserveInt64(x.stateUp, 0)
	}
	for _, observe := range x.observers {
		observe(o, snap, state)
	}
	return nil
}

// readState returns nil when the store could not be read in time.
func (x *Exporter) readState(ctx context.Context) *adminauth.StateSnapshot {
	if x.stateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.stateTimeout)
		defer cancel()
	}
	state, err := x.source.StateSnapshot(ctx)
	if err != nil {
		return nil
	}
	return &state
}

func (x *Exporter) Close() error {
	if x == nil || x.registration == nil {
		return nil
	}
	return x.registration.Unregister()
}
