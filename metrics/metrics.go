// Package metrics holds the prometheus collectors exported by the pose tracking pipeline.
package metrics

import (
	stderrors "errors"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "turtlenav"

// Metrics are the counters and gauges shared by the localization path and the control loop.
type Metrics struct {
	SamplesTotal     prometheus.Counter
	MalformedSamples prometheus.Counter
	Revolutions      prometheus.Gauge

	Ticks         prometheus.Counter
	TickOverruns  prometheus.Counter
	StalledTicks  prometheus.Counter
	DriveErrors   prometheus.Counter
	SinkErrors    prometheus.Counter
	TickDuration  prometheus.Histogram
	LoopState     prometheus.Gauge
	ActionsIssued *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. Registering twice against the same
// registry is an error.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		SamplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "localization",
			Name:      "samples_total",
			Help:      "Localization samples received",
		}),
		MalformedSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "localization",
			Name:      "malformed_samples_total",
			Help:      "Samples whose orientation or position could not be used",
		}),
		Revolutions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "localization",
			Name:      "heading_revolutions",
			Help:      "Signed number of full turns counted by the heading unwrapper",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "ticks_total",
			Help:      "Control loop ticks, including ticks spent waiting for the first pose",
		}),
		TickOverruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "tick_overruns_total",
			Help:      "Ticks that ran past the next period boundary",
		}),
		StalledTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "stalled_ticks_total",
			Help:      "Ticks spent waiting for a valid transformed state",
		}),
		DriveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "drive_errors_total",
			Help:      "Commands the drive interface rejected",
		}),
		SinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "sink_errors_total",
			Help:      "Telemetry records that could not be written",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "tick_duration_seconds",
			Help:      "Time spent computing and dispatching one tick",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		LoopState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "loop_state",
			Help:      "Control loop state (0=idle, 1=waiting for first pose, 2=running, 3=stopped)",
		}),
		ActionsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "actions_total",
			Help:      "Actions dispatched to the drive, by control mode",
		}, []string{"mode"}),
	}

	for _, c := range []prometheus.Collector{
		m.SamplesTotal, m.MalformedSamples, m.Revolutions,
		m.Ticks, m.TickOverruns, m.StalledTicks, m.DriveErrors, m.SinkErrors,
		m.TickDuration, m.LoopState, m.ActionsIssued,
	} {
		if err := reg.Register(c); err != nil {
			var alreadyRegErr prometheus.AlreadyRegisteredError
			if stderrors.As(err, &alreadyRegErr) {
				return nil, errors.Wrap(err, "metrics already registered")
			}
			return nil, errors.Wrap(err, "failed to register collector")
		}
	}
	return m, nil
}

// NewUnregistered returns collectors attached to a private registry, for tests and tools that do
// not export metrics.
func NewUnregistered() *Metrics {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		// a fresh registry cannot already hold these collectors
		panic(err)
	}
	return m
}
