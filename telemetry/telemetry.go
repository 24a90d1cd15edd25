// Package telemetry persists one flat record per control tick.
package telemetry

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/rcognita/turtlenav/spatialmath"
)

// Record is what the control loop reports after dispatching an action.
type Record struct {
	RunID string
	// Time is the elapsed time since the loop started, in seconds.
	Time                 float64
	X                    float64
	Y                    float64
	Theta                float64
	RunningObjective     float64
	AccumulatedObjective float64
	V                    float64
	Omega                float64
}

// RunInfo describes a run. Sinks that write a preamble or a run table use it.
type RunInfo struct {
	RunID   string
	System  string
	Mode    string
	Period  time.Duration
	Goal    spatialmath.Pose2D
	Initial spatialmath.Pose2D
	Weights []float64
	Started time.Time
}

// A Sink stores records. Write is called from a single goroutine.
type Sink interface {
	Write(ctx context.Context, r Record) error
	Close() error
}

type multiSink []Sink

// Multi returns a sink writing every record to each of sinks. All sinks are written even if one
// fails.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (ms multiSink) Write(ctx context.Context, r Record) error {
	var err error
	for _, s := range ms {
		err = multierr.Append(err, s.Write(ctx, r))
	}
	return err
}

func (ms multiSink) Close() error {
	var err error
	for _, s := range ms {
		err = multierr.Append(err, s.Close())
	}
	return err
}
