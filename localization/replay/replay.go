// Package replay feeds recorded odometry back through a localization handler, keeping the recorded
// spacing between samples.
package replay

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/rcognita/turtlenav/localization"
	"github.com/rcognita/turtlenav/logging"
	"github.com/rcognita/turtlenav/utils"
)

// Source replays a fixed list of samples.
type Source struct {
	samples []localization.RawPoseSample
	speed   float64
	clock   clock.Clock
	logger  logging.Logger

	mu      sync.Mutex
	workers *utils.StoppableWorkers
	done    chan struct{}
}

// NewSource replays samples at speed times the recorded rate. A non positive speed replays
// at the recorded rate.
func NewSource(samples []localization.RawPoseSample, speed float64, logger logging.Logger) *Source {
	if speed <= 0 {
		speed = 1
	}
	return &Source{samples: samples, speed: speed, clock: clock.New(), logger: logger, done: make(chan struct{})}
}

// WithClock replaces the clock used for pacing. It must be called before Start.
func (s *Source) WithClock(c clock.Clock) *Source {
	s.clock = c
	return s
}

// Start replays in the background. Samples with out of order or missing stamps are delivered
// without delay.
func (s *Source) Start(ctx context.Context, handler localization.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workers != nil {
		return errors.New("replay already started")
	}
	s.workers = utils.NewStoppableWorkers(ctx)
	started := s.workers.Add(func(ctx context.Context) {
		defer close(s.done)
		for i, sample := range s.samples {
			if i > 0 {
				if wait := s.gap(s.samples[i-1], sample); wait > 0 {
					if !goutils.SelectContextOrWaitChan(ctx, s.clock.Timer(wait).C) {
						return
					}
				}
			}
			if ctx.Err() != nil {
				return
			}
			handler(sample)
		}
		s.logger.Infow("replay finished", "samples", len(s.samples))
	})
	if !started {
		close(s.done)
		return errors.Wrap(ctx.Err(), "replay not started")
	}
	return nil
}

func (s *Source) gap(prev, next localization.RawPoseSample) time.Duration {
	if prev.Stamp.IsZero() || next.Stamp.IsZero() {
		return 0
	}
	return time.Duration(float64(next.Stamp.Sub(prev.Stamp)) / s.speed)
}

// Done is closed once every sample was delivered or the replay was stopped.
func (s *Source) Done() <-chan struct{} {
	return s.done
}

// Close stops the replay.
func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	workers := s.workers
	s.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	return nil
}
