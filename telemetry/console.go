package telemetry

import (
	"context"

	"github.com/rcognita/turtlenav/logging"
)

// ConsoleSink prints each step through a logger.
type ConsoleSink struct {
	logger logging.Logger
}

// NewConsoleSink returns a sink logging at info level.
func NewConsoleSink(logger logging.Logger) *ConsoleSink {
	return &ConsoleSink{logger: logger}
}

// Write logs r.
func (cs *ConsoleSink) Write(ctx context.Context, r Record) error {
	cs.logger.Infow("step",
		"t", r.Time,
		"x", r.X,
		"y", r.Y,
		"alpha", r.Theta,
		"stage_obj", r.RunningObjective,
		"accum_obj", r.AccumulatedObjective,
		"v", r.V,
		"omega", r.Omega,
	)
	return nil
}

// Close syncs the logger.
func (cs *ConsoleSink) Close() error {
	return cs.logger.Sync()
}
