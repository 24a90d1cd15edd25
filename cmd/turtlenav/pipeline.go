package main

import (
	"context"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/rcognita/turtlenav/config"
	"github.com/rcognita/turtlenav/control"
	"github.com/rcognita/turtlenav/drive"
	fakedrive "github.com/rcognita/turtlenav/drive/fake"
	"github.com/rcognita/turtlenav/localization"
	fakesource "github.com/rcognita/turtlenav/localization/fake"
	"github.com/rcognita/turtlenav/localization/replay"
	"github.com/rcognita/turtlenav/logging"
	"github.com/rcognita/turtlenav/metrics"
	"github.com/rcognita/turtlenav/spatialmath"
	"github.com/rcognita/turtlenav/telemetry"
	"github.com/rcognita/turtlenav/trajectory"
	"github.com/rcognita/turtlenav/transport/natsbus"
	"github.com/rcognita/turtlenav/utils"
)

// slowCloseWarning is how long closing a component may take before it is reported.
const slowCloseWarning = 2 * time.Second

// pipeline is one fully wired run: a localization source feeding the transformer, and the control
// loop reading it and commanding the drive.
type pipeline struct {
	cfg         *config.Config
	logger      logging.Logger
	runID       string
	transformer *localization.Transformer
	source      localization.Source
	drive       drive.Drive
	sink        telemetry.Sink
	loop        *control.Loop
	conn        *nats.Conn
}

type pipelineOptions struct {
	metrics     *metrics.Metrics
	replaySpeed float64
	started     time.Time
}

func newPipeline(ctx context.Context, cfg *config.Config, opts pipelineOptions, logger logging.Logger) (_ *pipeline, err error) {
	if opts.metrics == nil {
		opts.metrics = metrics.NewUnregistered()
	}
	if opts.started.IsZero() {
		opts.started = time.Now()
	}
	p := &pipeline{cfg: cfg, logger: logger, runID: uuid.NewString()}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, p.close(ctx))
		}
	}()

	p.transformer, err = localization.NewTransformer(cfg, logger.Sublogger("localization"), opts.metrics)
	if err != nil {
		return nil, err
	}

	initial, err := p.wireSourceAndDrive(cfg, opts, logger)
	if err != nil {
		return nil, err
	}

	selector, err := newSelector(cfg)
	if err != nil {
		return nil, err
	}

	p.sink, err = newSink(ctx, cfg, telemetry.RunInfo{
		RunID:   p.runID,
		System:  cfg.Telemetry.System,
		Mode:    cfg.Control.Mode,
		Period:  cfg.Period(),
		Goal:    cfg.Goal,
		Initial: initial,
		Weights: cfg.Control.ObjectiveWeights,
		Started: opts.started,
	}, logger)
	if err != nil {
		return nil, err
	}

	p.loop, err = control.NewLoop(cfg, control.LoopDeps{
		RunID:    p.runID,
		States:   p.transformer,
		Selector: selector,
		Drive:    p.drive,
		Sink:     p.sink,
		Metrics:  opts.metrics,
	}, logger.Sublogger("control"))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// wireSourceAndDrive builds the source selected by cfg and the drive its commands go to. It returns
// the best known initial pose for the run preamble.
func (p *pipeline) wireSourceAndDrive(cfg *config.Config, opts pipelineOptions, logger logging.Logger) (spatialmath.Pose2D, error) {
	switch cfg.Source.Type {
	case config.SourceFake:
		sim := fakesource.NewSource(cfg.Source.Initial, cfg.Source.Interval, logger.Sublogger("sim"))
		p.source = sim
		p.drive = &fakedrive.Drive{OnVelocity: func(linear, angular r3.Vector) {
			sim.SetVelocity(linear.X, angular.Z)
		}}
		return cfg.Source.Initial, nil
	case config.SourceRosbag:
		samples, err := replay.LoadBag(cfg.Source.BagPath, cfg.Source.Topic)
		if err != nil {
			return spatialmath.Pose2D{}, err
		}
		if len(samples) == 0 {
			return spatialmath.Pose2D{}, errors.Errorf("no odometry on topic %s in %s", cfg.Source.Topic, cfg.Source.BagPath)
		}
		p.source = replay.NewSource(samples, opts.replaySpeed, logger.Sublogger("replay"))
		// a replayed run cannot be steered; commands are only recorded
		p.drive = &fakedrive.Drive{}
		first := samples[0]
		yaw, err := first.Orientation.Yaw()
		if err != nil {
			yaw = 0
		}
		return spatialmath.Pose2D{X: first.X, Y: first.Y, Theta: yaw}, nil
	case config.SourceNATS:
		conn, err := natsbus.Connect(cfg.Source.NATSURL, "turtlenav", logger.Sublogger("nats"))
		if err != nil {
			return spatialmath.Pose2D{}, err
		}
		p.conn = conn
		p.source = natsbus.NewOdometrySource(conn, cfg.Source.OdomSubject, logger.Sublogger("odom"))
		p.drive = natsbus.NewPublisher(conn, cfg.Source.CmdVelSubject)
		return cfg.Source.Initial, nil
	default:
		return spatialmath.Pose2D{}, errors.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

func newSelector(cfg *config.Config) (*control.Selector, error) {
	bounds := control.BoundsFromConfig(&cfg.Control)
	path, err := trajectory.Build(cfg.Path.StartX, cfg.Path.StartY, cfg.Path.Points)
	if err != nil {
		return nil, err
	}
	nominal, err := control.NewNominalController(path, cfg.Path.StartIndex, &cfg.Control)
	if err != nil {
		return nil, err
	}
	manual := control.NewManualController(control.Action{
		V:     cfg.Control.ManualAction[0],
		Omega: cfg.Control.ManualAction[1],
	}, bounds)
	return control.NewSelector().
		Register(control.ModeManual, manual).
		Register(control.ModeNominal, nominal), nil
}

func newSink(ctx context.Context, cfg *config.Config, info telemetry.RunInfo, logger logging.Logger) (telemetry.Sink, error) {
	var sinks []telemetry.Sink
	fail := func(err error) (telemetry.Sink, error) {
		return nil, multierr.Combine(err, telemetry.Multi(sinks...).Close())
	}
	if cfg.Telemetry.PrintStep {
		sinks = append(sinks, telemetry.NewConsoleSink(logger.Sublogger("step")))
	}
	if cfg.Telemetry.LogData {
		csvSink, err := telemetry.NewCSVSink(cfg.Telemetry.DataDir, info, cfg.Telemetry.MaxSizeMB)
		if err != nil {
			return fail(err)
		}
		logger.Infow("logging run data", "path", csvSink.Path())
		sinks = append(sinks, csvSink)
	}
	if cfg.Telemetry.SQLitePath != "" {
		sqliteSink, err := telemetry.NewSQLiteSink(ctx, cfg.Telemetry.SQLitePath, info)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, sqliteSink)
	}
	return telemetry.Multi(sinks...), nil
}

// run starts the source and blocks until the loop stops.
func (p *pipeline) run(ctx context.Context) error {
	if err := p.source.Start(ctx, p.transformer.OnLocalizationSample); err != nil {
		return errors.Wrap(err, "cannot start localization source")
	}
	err := p.loop.Run(ctx)
	p.logger.Infow("run finished",
		"run_id", p.runID,
		"samples", p.transformer.Samples(),
		"malformed_samples", p.transformer.MalformedSamples(),
		"revolutions", p.transformer.Revolutions(),
	)
	return err
}

// close releases everything newPipeline acquired. It is safe on a partially built pipeline.
func (p *pipeline) close(ctx context.Context) error {
	var err error
	if p.source != nil {
		done := utils.SlowLogger(ctx, slowCloseWarning, "waiting for localization source to close", p.logger)
		err = multierr.Append(err, p.source.Close(ctx))
		done()
	}
	if p.sink != nil {
		done := utils.SlowLogger(ctx, slowCloseWarning, "waiting for telemetry to flush", p.logger)
		err = multierr.Append(err, p.sink.Close())
		done()
	}
	if p.conn != nil {
		err = multierr.Append(err, p.conn.Drain())
	}
	return err
}
