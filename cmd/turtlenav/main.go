// Package main runs the goal seeking control loop of a differential drive robot.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/rcognita/turtlenav/config"
	"github.com/rcognita/turtlenav/logging"
	"github.com/rcognita/turtlenav/metrics"
	"github.com/rcognita/turtlenav/trajectory"
)

const (
	// Flags.
	flagConfig      = "config"
	flagDebug       = "debug"
	flagCtrlMode    = "ctrl-mode"
	flagRate        = "rate"
	flagGoalX       = "goal-x"
	flagGoalY       = "goal-y"
	flagGoalTheta   = "goal-theta"
	flagMaxDuration = "max-duration"
	flagSource      = "source"
	flagBag         = "bag"
	flagTopic       = "topic"
	flagReplaySpeed = "replay-speed"
	flagNATSURL     = "nats-url"
	flagLogData     = "log-data"
	flagDataDir     = "data-dir"
	flagPrintStep   = "print-step"
	flagSQLite      = "sqlite"
	flagMetricsAddr = "metrics-addr"

	flagStartX     = "start-x"
	flagStartY     = "start-y"
	flagPoints     = "points"
	flagLemniscate = "lemniscate"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "turtlenav",
		Usage:     "drive a differential drive robot to a goal pose",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the control loop until the maximum duration elapses or it is interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagCtrlMode, Usage: "control mode, manual or nominal"},
					&cli.Float64Flag{Name: flagRate, Usage: "control rate in Hz"},
					&cli.Float64Flag{Name: flagGoalX, Usage: "goal x in meters"},
					&cli.Float64Flag{Name: flagGoalY, Usage: "goal y in meters"},
					&cli.Float64Flag{Name: flagGoalTheta, Usage: "goal heading in radians"},
					&cli.DurationFlag{Name: flagMaxDuration, Usage: "stop after this long"},
					&cli.StringFlag{Name: flagSource, Usage: "localization source, fake, rosbag or nats"},
					&cli.StringFlag{Name: flagBag, Usage: "rosbag `FILE` to replay, implies --source rosbag"},
					&cli.StringFlag{Name: flagTopic, Usage: "odometry topic in the rosbag"},
					&cli.Float64Flag{Name: flagReplaySpeed, Value: 1, Usage: "rosbag replay speed multiplier"},
					&cli.StringFlag{Name: flagNATSURL, Usage: "NATS server URL, implies --source nats"},
					&cli.BoolFlag{Name: flagLogData, Usage: "write a CSV file per run"},
					&cli.StringFlag{Name: flagDataDir, Usage: "directory for CSV files"},
					&cli.BoolFlag{Name: flagPrintStep, Usage: "log every tick's record"},
					&cli.StringFlag{Name: flagSQLite, Usage: "also record runs into this sqlite `FILE`"},
					&cli.StringFlag{Name: flagMetricsAddr, Usage: "serve prometheus metrics on `ADDR`"},
				},
				Action: runAction,
			},
			{
				Name:  "path",
				Usage: "print the reference path as JSON",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: flagStartX, Usage: "path start x"},
					&cli.Float64Flag{Name: flagStartY, Usage: "path start y"},
					&cli.IntFlag{Name: flagPoints, Usage: "number of waypoints"},
					&cli.Float64Flag{Name: flagLemniscate, Usage: "print a figure eight of this scale instead"},
				},
				Action: pathAction,
			},
		},
	}
}

// loadConfig reads --config if given and applies command line overrides on top of it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet(flagCtrlMode) {
		cfg.Control.Mode = c.String(flagCtrlMode)
	}
	if c.IsSet(flagRate) {
		cfg.Rate = c.Float64(flagRate)
	}
	if c.IsSet(flagGoalX) {
		cfg.Goal.X = c.Float64(flagGoalX)
	}
	if c.IsSet(flagGoalY) {
		cfg.Goal.Y = c.Float64(flagGoalY)
	}
	if c.IsSet(flagGoalTheta) {
		cfg.Goal.Theta = c.Float64(flagGoalTheta)
	}
	if c.IsSet(flagMaxDuration) {
		cfg.MaxDuration = c.Duration(flagMaxDuration)
	}
	if c.IsSet(flagBag) {
		cfg.Source.Type = config.SourceRosbag
		cfg.Source.BagPath = c.String(flagBag)
	}
	if c.IsSet(flagTopic) {
		cfg.Source.Topic = c.String(flagTopic)
	}
	if c.IsSet(flagNATSURL) {
		cfg.Source.Type = config.SourceNATS
		cfg.Source.NATSURL = c.String(flagNATSURL)
	}
	if c.IsSet(flagSource) {
		cfg.Source.Type = c.String(flagSource)
	}
	if c.IsSet(flagLogData) {
		cfg.Telemetry.LogData = c.Bool(flagLogData)
	}
	if c.IsSet(flagDataDir) {
		cfg.Telemetry.DataDir = c.String(flagDataDir)
	}
	if c.IsSet(flagPrintStep) {
		cfg.Telemetry.PrintStep = c.Bool(flagPrintStep)
	}
	if c.IsSet(flagSQLite) {
		cfg.Telemetry.SQLitePath = c.String(flagSQLite)
	}
	if c.Bool(flagDebug) {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate("turtlenav"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := logging.LevelFromString(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	registry := logging.NewRegistry()
	if err := registry.UpdateConfig(level, cfg.LogPatterns); err != nil {
		return nil, err
	}
	return registry.NewLogger("turtlenav"), nil
}

func runAction(c *cli.Context) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		//nolint:errcheck
		logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := pipelineOptions{replaySpeed: c.Float64(flagReplaySpeed)}
	if addr := c.String(flagMetricsAddr); addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		if opts.metrics, err = metrics.New(reg); err != nil {
			return err
		}
		metricsCtx, cancelMetrics := context.WithCancel(context.Background())
		var served <-chan struct{}
		if _, served, err = metrics.Serve(metricsCtx, addr, reg, logger.Sublogger("metrics")); err != nil {
			cancelMetrics()
			return err
		}
		defer func() {
			cancelMetrics()
			<-served
		}()
	}

	p, err := newPipeline(ctx, cfg, opts, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, p.close(context.Background()))
	}()

	logger.Infow("starting",
		"run_id", p.runID,
		"mode", cfg.Control.Mode,
		"source", cfg.Source.Type,
		"goal", fmt.Sprintf("%+v", cfg.Goal),
		"rate", cfg.Rate,
	)
	if err := p.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func pathAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	var path *trajectory.Path
	if scale := c.Float64(flagLemniscate); scale != 0 {
		points := cfg.Path.Points
		if c.IsSet(flagPoints) {
			points = c.Int(flagPoints)
		}
		path, err = trajectory.BuildLemniscate(scale, points)
	} else {
		x, y, points := cfg.Path.StartX, cfg.Path.StartY, cfg.Path.Points
		if c.IsSet(flagStartX) {
			x = c.Float64(flagStartX)
		}
		if c.IsSet(flagStartY) {
			y = c.Float64(flagStartY)
		}
		if c.IsSet(flagPoints) {
			points = c.Int(flagPoints)
		}
		path, err = trajectory.Build(x, y, points)
	}
	if err != nil {
		return err
	}

	waypoints := make([]trajectory.Waypoint, 0, path.Len())
	for i := 0; i < path.Len(); i++ {
		waypoints = append(waypoints, path.At(i))
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(waypoints)
}
