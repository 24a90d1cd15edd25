// Package fake implements localization sources that need no hardware: a unicycle simulated from
// the last velocity command, or a fixed script of samples.
package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/rcognita/turtlenav/localization"
	"github.com/rcognita/turtlenav/logging"
	"github.com/rcognita/turtlenav/spatialmath"
	"github.com/rcognita/turtlenav/utils"
)

// ErrAlreadyStarted is returned when Start is called twice on the same source.
var ErrAlreadyStarted = errors.New("localization source already started")

// Source emits a sample every interval.
type Source struct {
	interval time.Duration
	clock    clock.Clock
	logger   logging.Logger

	mu      sync.Mutex
	pose    spatialmath.Pose2D
	linear  float64
	angular float64
	script  []localization.RawPoseSample
	workers *utils.StoppableWorkers
}

// NewSource returns a simulated unicycle starting at initial. It stands still until SetVelocity is
// called.
func NewSource(initial spatialmath.Pose2D, interval time.Duration, logger logging.Logger) *Source {
	return &Source{interval: interval, clock: clock.New(), logger: logger, pose: initial}
}

// NewScriptedSource returns a source that emits samples in order, one per interval, and then goes
// quiet.
func NewScriptedSource(samples []localization.RawPoseSample, interval time.Duration, logger logging.Logger) *Source {
	script := make([]localization.RawPoseSample, len(samples))
	copy(script, samples)
	return &Source{interval: interval, clock: clock.New(), logger: logger, script: script}
}

// WithClock replaces the clock used for pacing. It must be called before Start.
func (s *Source) WithClock(c clock.Clock) *Source {
	s.clock = c
	return s
}

// SetVelocity sets the body velocities integrated on every following step.
func (s *Source) SetVelocity(linear, angular float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linear, s.angular = linear, angular
}

// Pose returns the simulated world pose with heading in (-π, π].
func (s *Source) Pose() spatialmath.Pose2D {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pose
}

// Start begins emitting samples to handler from a background goroutine.
func (s *Source) Start(ctx context.Context, handler localization.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workers != nil {
		return ErrAlreadyStarted
	}
	ticker := s.clock.Ticker(s.interval)
	s.workers = utils.NewStoppableWorkers(ctx, func(ctx context.Context) {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			sample, ok := s.step()
			if !ok {
				s.logger.Debug("localization script exhausted")
				return
			}
			handler(sample)
		}
	})
	return nil
}

func (s *Source) step() (localization.RawPoseSample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if s.script != nil {
		if len(s.script) == 0 {
			return localization.RawPoseSample{}, false
		}
		sample := s.script[0]
		s.script = s.script[1:]
		if sample.Stamp.IsZero() {
			sample.Stamp = now
		}
		return sample, true
	}

	dt := s.interval.Seconds()
	s.pose.X += s.linear * math.Cos(s.pose.Theta) * dt
	s.pose.Y += s.linear * math.Sin(s.pose.Theta) * dt
	s.pose.Theta = spatialmath.WrapAngle(s.pose.Theta + s.angular*dt)
	return localization.RawPoseSample{
		X:           s.pose.X,
		Y:           s.pose.Y,
		Orientation: spatialmath.NewQuaternionFromYaw(s.pose.Theta),
		Stamp:       now,
	}, true
}

// Close stops emitting and waits for the emitting goroutine to return.
func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	workers := s.workers
	s.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	return nil
}
