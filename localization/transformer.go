package localization

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rcognita/turtlenav/config"
	"github.com/rcognita/turtlenav/logging"
	"github.com/rcognita/turtlenav/metrics"
	"github.com/rcognita/turtlenav/spatialmath"
)

// Transformer unwraps headings and expresses every sample in the goal frame. Samples may arrive on
// any goroutine while the state is read from another; the unwrapper and the published state are
// only touched under mu, so readers never see a position from one sample with the heading of
// another.
type Transformer struct {
	frame   *spatialmath.GoalFrame
	logger  logging.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	unwrapper *spatialmath.HeadingUnwrapper
	state     State
	raw       spatialmath.Pose2D
	samples   int
	malformed int

	malformedWarning rate.Sometimes
}

// NewTransformer returns a transformer for cfg.Goal. If m is nil the transformer counts into
// private collectors.
func NewTransformer(cfg *config.Config, logger logging.Logger, m *metrics.Metrics) (*Transformer, error) {
	frame, err := spatialmath.NewGoalFrame(cfg.Goal)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &Transformer{
		frame:            frame,
		logger:           logger,
		metrics:          m,
		unwrapper:        spatialmath.NewHeadingUnwrapper(cfg.WrapThreshold),
		malformedWarning: rate.Sometimes{First: 3, Interval: 5 * time.Second},
	}, nil
}

// OnLocalizationSample consumes one sample. It never fails: an unusable orientation is replaced
// by a heading of 0 and counted, and a sample without a finite position is counted and dropped.
func (t *Transformer) OnLocalizationSample(sample RawPoseSample) {
	t.metrics.SamplesTotal.Inc()

	if !isFinite(sample.X) || !isFinite(sample.Y) {
		t.mu.Lock()
		t.samples++
		t.malformed++
		t.mu.Unlock()
		t.metrics.MalformedSamples.Inc()
		t.malformedWarning.Do(func() {
			t.logger.Warnw("dropping localization sample with non-finite position", "x", sample.X, "y", sample.Y)
		})
		return
	}

	heading, yawErr := sample.Orientation.Yaw()
	if yawErr != nil {
		heading = 0
	}

	t.mu.Lock()
	continuous := t.unwrapper.Unwrap(heading)
	t.state = t.expressLocked(sample.X, sample.Y, continuous)
	t.raw = spatialmath.Pose2D{X: sample.X, Y: sample.Y, Theta: continuous}
	t.samples++
	if yawErr != nil {
		t.malformed++
	}
	revolutions := t.unwrapper.Revolutions()
	t.mu.Unlock()

	t.metrics.Revolutions.Set(float64(revolutions))
	if yawErr != nil {
		t.metrics.MalformedSamples.Inc()
		t.malformedWarning.Do(func() {
			t.logger.Warnw("substituting heading 0 for malformed orientation", "error", yawErr, "orientation", sample.Orientation)
		})
	}
}

func (t *Transformer) expressLocked(x, y, heading float64) State {
	p := t.frame.Express(x, y, heading)
	return State{X: p.X, Y: p.Y, Theta: p.Theta, Valid: true}
}

// State returns a consistent snapshot of the latest transformed state.
func (t *Transformer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// RawPose returns the latest world frame position with its continuous heading.
func (t *Transformer) RawPose() spatialmath.Pose2D {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.raw
}

// Goal returns the pose states are expressed relative to.
func (t *Transformer) Goal() spatialmath.Pose2D {
	return t.frame.Goal()
}

// Samples is the number of samples received, malformed ones included.
func (t *Transformer) Samples() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.samples
}

// MalformedSamples is the number of samples whose orientation or position could not be used.
func (t *Transformer) MalformedSamples() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.malformed
}

// Revolutions is the signed number of full turns counted so far.
func (t *Transformer) Revolutions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unwrapper.Revolutions()
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
