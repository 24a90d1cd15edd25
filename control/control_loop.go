// Package control runs the fixed rate loop that turns goal frame states into drive commands.
package control

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	goutils "go.viam.com/utils"
	"golang.org/x/time/rate"

	"github.com/rcognita/turtlenav/config"
	"github.com/rcognita/turtlenav/drive"
	"github.com/rcognita/turtlenav/localization"
	"github.com/rcognita/turtlenav/logging"
	"github.com/rcognita/turtlenav/metrics"
	"github.com/rcognita/turtlenav/telemetry"
)

// ErrAlreadyStarted is returned by Run on a loop that has run before.
var ErrAlreadyStarted = errors.New("control loop already started")

// LoopState is the lifecycle stage of a Loop.
type LoopState int32

// Loop states, in the only order they are entered.
const (
	StateIdle LoopState = iota
	StateWaitingForFirstPose
	StateRunning
	StateStopped
)

func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitingForFirstPose:
		return "waiting_for_first_pose"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StateSource provides consistent snapshots of the goal frame state.
type StateSource interface {
	State() localization.State
}

// LoopDeps are the collaborators of a Loop. Sink, Metrics, Clock and RunID are optional.
type LoopDeps struct {
	// RunID tags telemetry records. A random one is generated when empty.
	RunID    string
	States   StateSource
	Selector *Selector
	Drive    drive.Drive
	Sink     telemetry.Sink
	Metrics  *metrics.Metrics
	Clock    clock.Clock
}

// Loop polls the state once per period and, once a valid state exists, dispatches the selected
// controller's action to the drive. It runs at most once.
type Loop struct {
	cfg       *config.Config
	period    time.Duration
	mode      Mode
	runID     string
	states    StateSource
	selector  *Selector
	drive     drive.Drive
	sink      telemetry.Sink
	objective *Objective
	clock     clock.Clock
	logger    logging.Logger
	metrics   *metrics.Metrics

	state   atomic.Int32
	started atomic.Bool

	// only touched by the goroutine in Run
	stalledTicks int
	dispatched   int
	tickStats    tickStats
	stallWarning rate.Sometimes
}

// NewLoop validates the loop parameters of cfg and returns an idle loop.
func NewLoop(cfg *config.Config, deps LoopDeps, logger logging.Logger) (*Loop, error) {
	if cfg.Rate <= 0 || cfg.Rate > config.MaxRate {
		return nil, errors.Errorf("loop frequency shouldn't be 0 or above %dHz", config.MaxRate)
	}
	if deps.States == nil || deps.Selector == nil || deps.Drive == nil {
		return nil, errors.New("control loop needs a state source, a selector and a drive")
	}
	mode, err := ParseMode(cfg.Control.Mode)
	if err != nil {
		return nil, err
	}
	if !deps.Selector.Has(mode) {
		return nil, errors.Wrapf(ErrUnknownMode, "no controller registered for %q", mode)
	}
	objective, err := NewObjective(cfg.Control.ObjectiveWeights, cfg.Period())
	if err != nil {
		return nil, err
	}
	if deps.Sink == nil {
		deps.Sink = telemetry.Multi()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewUnregistered()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.RunID == "" {
		deps.RunID = uuid.NewString()
	}
	l := &Loop{
		cfg:          cfg,
		period:       cfg.Period(),
		mode:         mode,
		runID:        deps.RunID,
		states:       deps.States,
		selector:     deps.Selector,
		drive:        deps.Drive,
		sink:         deps.Sink,
		objective:    objective,
		clock:        deps.Clock,
		logger:       logger,
		metrics:      deps.Metrics,
		stallWarning: rate.Sometimes{First: 1, Interval: 5 * time.Second},
	}
	l.setState(StateIdle)
	return l, nil
}

// RunID identifies this loop's records.
func (l *Loop) RunID() string {
	return l.runID
}

// Mode is the control mode actions are selected with.
func (l *Loop) Mode() Mode {
	return l.mode
}

// State returns the current lifecycle stage.
func (l *Loop) State() LoopState {
	return LoopState(l.state.Load())
}

func (l *Loop) setState(s LoopState) {
	l.state.Store(int32(s))
	l.metrics.LoopState.Set(float64(s))
}

// Run blocks until ctx is done or the maximum duration has elapsed. A tick in progress always
// completes; once Run returns no further command reaches the drive.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	l.setState(StateWaitingForFirstPose)
	l.logger.Infof("Running loop on %1.4f Hz %+v", l.cfg.Rate, l.period)

	start := l.clock.Now()
	interrupted := false
	var tick int64
	for {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		elapsed := l.clock.Since(start)
		if elapsed >= l.cfg.MaxDuration {
			break
		}
		l.tick(ctx, elapsed)

		now := l.clock.Since(start)
		next, skipped := nextTick(now, l.period, tick)
		if skipped > 0 {
			l.metrics.TickOverruns.Add(float64(skipped))
			l.logger.Debugw("tick overran its period", "tick", tick, "skipped", skipped)
		}
		tick = next
		timer := l.clock.Timer(time.Duration(next)*l.period - now)
		if !goutils.SelectContextOrWaitChan(ctx, timer.C) {
			timer.Stop()
			interrupted = true
			break
		}
	}
	l.stop(ctx, interrupted, l.clock.Since(start))
	return nil
}

// nextTick returns the index of the next period boundary after elapsed, given that tick current
// just ran, and how many boundaries were missed.
func nextTick(elapsed, period time.Duration, current int64) (next, skipped int64) {
	next = current + 1
	if elapsed > time.Duration(next)*period {
		missed := int64(elapsed/period) + 1
		return missed, missed - next
	}
	return next, 0
}

func (l *Loop) tick(ctx context.Context, elapsed time.Duration) {
	ctx, span := trace.StartSpan(ctx, "control::Loop::tick")
	defer span.End()

	tickStart := l.clock.Now()
	defer func() {
		d := l.clock.Since(tickStart)
		l.tickStats.add(d)
		l.metrics.TickDuration.Observe(d.Seconds())
	}()
	l.metrics.Ticks.Inc()

	s := l.states.State()
	if !s.Valid {
		l.stalledTicks++
		l.metrics.StalledTicks.Inc()
		if l.stalledTicks >= l.cfg.StallTicks {
			l.stallWarning.Do(func() {
				l.logger.Warnw("no localization state yet, still waiting", "ticks", l.stalledTicks)
			})
		}
		return
	}
	if l.State() == StateWaitingForFirstPose {
		l.setState(StateRunning)
		l.logger.Infow("first localization state received", "after_ticks", l.stalledTicks, "x", s.X, "y", s.Y, "theta", s.Theta)
	}

	// once a state is snapshotted the tick runs to completion even if ctx is cancelled meanwhile
	ctx = context.WithoutCancel(ctx)
	t := elapsed.Seconds()
	action, err := l.selector.Select(t, s, l.mode)
	if err != nil {
		span.SetStatus(trace.Status{Code: trace.StatusCodeInternal, Message: err.Error()})
		l.logger.Errorw("cannot compute action", "error", err)
		return
	}

	linear, angular := drive.Vectors(action.V, action.Omega)
	if err := l.drive.SetVelocity(ctx, linear, angular, nil); err != nil {
		l.metrics.DriveErrors.Inc()
		l.logger.Warnw("drive rejected command", "error", err)
	}
	l.dispatched++
	l.metrics.ActionsIssued.WithLabelValues(string(l.mode)).Inc()

	stage, accumulated := l.objective.Update(s, action)
	if err := l.sink.Write(ctx, telemetry.Record{
		RunID:                l.runID,
		Time:                 t,
		X:                    s.X,
		Y:                    s.Y,
		Theta:                s.Theta,
		RunningObjective:     stage,
		AccumulatedObjective: accumulated,
		V:                    action.V,
		Omega:                action.Omega,
	}); err != nil {
		l.metrics.SinkErrors.Inc()
		l.logger.Warnw("cannot write telemetry", "error", err)
	}
}

func (l *Loop) stop(ctx context.Context, interrupted bool, elapsed time.Duration) {
	l.setState(StateStopped)

	if l.dispatched > 0 {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := l.drive.Stop(stopCtx, nil); err != nil {
			l.logger.Warnw("cannot stop drive", "error", err)
		}
	}

	reason := "max duration reached"
	if interrupted {
		reason = "interrupted"
	}
	fields := []interface{}{
		"reason", reason,
		"elapsed", elapsed,
		"ticks", l.tickStats.count,
		"actions", l.dispatched,
		"accum_obj", l.objective.Accumulated(),
	}
	fields = append(fields, l.tickStats.fields()...)
	l.logger.Infow("task completed or interrupted", fields...)
}
