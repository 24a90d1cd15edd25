package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/rcognita/turtlenav/logging"
	"github.com/rcognita/turtlenav/spatialmath"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Validate("turtlenav"), test.ShouldBeNil)
	test.That(t, cfg.Period(), test.ShouldEqual, 20*time.Millisecond)
	test.That(t, cfg.Goal, test.ShouldResemble, spatialmath.Pose2D{X: 3, Y: 3, Theta: 0.001})
	test.That(t, cfg.Path.Points, test.ShouldEqual, 29)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
		errStr string
	}{
		{"zero rate", func(c *Config) { c.Rate = 0 }, "rate"},
		{"rate too high", func(c *Config) { c.Rate = MaxRate + 1 }, "rate"},
		{"nan goal", func(c *Config) { c.Goal.Y = math.NaN() }, "goal"},
		{"no max duration", func(c *Config) { c.MaxDuration = 0 }, "max_duration"},
		{"no stall ticks", func(c *Config) { c.StallTicks = 0 }, "stall_ticks"},
		{"wrap threshold", func(c *Config) { c.WrapThreshold = 4 }, "wrap_threshold"},
		{"zero start x", func(c *Config) { c.Path.StartX = 0 }, "start_x"},
		{"one point", func(c *Config) { c.Path.Points = 1 }, "points"},
		{"start index", func(c *Config) { c.Path.StartIndex = 29 }, "start_index"},
		{"no mode", func(c *Config) { c.Control.Mode = "" }, "mode"},
		{"manual action", func(c *Config) { c.Control.ManualAction = []float64{1} }, "manual_action"},
		{"bounds order", func(c *Config) { c.Control.LinearBounds = []float64{1, -1} }, "linear_bounds"},
		{"weights", func(c *Config) { c.Control.ObjectiveWeights = []float64{1, 2} }, "objective_weights"},
		{"data dir", func(c *Config) { c.Telemetry.LogData = true; c.Telemetry.DataDir = "" }, "data_dir"},
		{"source type", func(c *Config) { c.Source.Type = "carrier pigeon" }, "carrier pigeon"},
		{"bag path", func(c *Config) { c.Source.Type = SourceRosbag }, "bag_path"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "loud"},
		{"log pattern", func(c *Config) {
			c.LogPatterns = []logging.LoggerPatternConfig{{Pattern: "turtlenav..x", Level: "debug"}}
		}, "log_patterns"},
		{"nats subject", func(c *Config) { c.Source.Type = SourceNATS; c.Source.OdomSubject = "" }, "odom_subject"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate("turtlenav")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errStr)
		})
	}
}

func TestFromReaderOverlaysDefaults(t *testing.T) {
	cfg, err := FromReader(strings.NewReader(`{
		"rate": 10,
		"goal": {"x": 1, "y": -2, "theta": 0.5},
		"max_duration": "3s",
		"control": {"mode": "manual", "objective_weights": [1, 1, 1, 1, 1]},
		"path": {"points": 40},
		"log_patterns": [{"pattern": "turtlenav.control", "level": "debug"}]
	}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Rate, test.ShouldEqual, 10.0)
	test.That(t, cfg.Goal, test.ShouldResemble, spatialmath.Pose2D{X: 1, Y: -2, Theta: 0.5})
	test.That(t, cfg.MaxDuration, test.ShouldEqual, 3*time.Second)
	test.That(t, cfg.Control.Mode, test.ShouldEqual, "manual")
	test.That(t, cfg.Control.ObjectiveWeights, test.ShouldResemble, []float64{1, 1, 1, 1, 1})
	test.That(t, cfg.Path.Points, test.ShouldEqual, 40)
	test.That(t, cfg.LogPatterns, test.ShouldResemble,
		[]logging.LoggerPatternConfig{{Pattern: "turtlenav.control", Level: "debug"}})

	// untouched fields keep their defaults
	test.That(t, cfg.Path.StartX, test.ShouldEqual, 5.0)
	test.That(t, cfg.Control.ManualAction, test.ShouldResemble, []float64{-5, -3})
	test.That(t, cfg.Source.Type, test.ShouldEqual, SourceFake)
}

func TestFromReaderErrors(t *testing.T) {
	_, err := FromReader(strings.NewReader(`{"rate": `))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to decode")

	_, err = FromReader(strings.NewReader(`{"rat": 10}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "rat")

	_, err = FromReader(strings.NewReader(`{"stall_ticks": 2.5}`))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = FromReader(strings.NewReader(`{"rate": 500}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "rate")
}

func TestReadExpandsEnv(t *testing.T) {
	t.Setenv("TURTLENAV_TEST_NATS", "nats://example:4222")
	path := filepath.Join(t.TempDir(), "cfg.json")
	err := os.WriteFile(path, []byte(`{"source": {"type": "nats", "nats_url": "${TURTLENAV_TEST_NATS}"}}`), 0o600)
	test.That(t, err, test.ShouldBeNil)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Source.Type, test.ShouldEqual, SourceNATS)
	test.That(t, cfg.Source.NATSURL, test.ShouldEqual, "nats://example:4222")
	test.That(t, cfg.Source.OdomSubject, test.ShouldEqual, "odom")

	_, err = Read(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}
