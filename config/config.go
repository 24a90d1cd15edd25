// Package config defines the single immutable configuration handed to every turtlenav component.
package config

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/rcognita/turtlenav/logging"
	"github.com/rcognita/turtlenav/spatialmath"
)

// Source types.
const (
	SourceFake   = "fake"
	SourceRosbag = "rosbag"
	SourceNATS   = "nats"
)

// MaxRate is the highest control rate accepted, in Hz.
const MaxRate = 200

// Config is built once at startup and never modified afterward. Components receive it by pointer
// and must not write to it.
type Config struct {
	// Rate is the control loop frequency in Hz.
	Rate float64 `json:"rate"`
	// Goal is the pose all transformed states are expressed relative to.
	Goal spatialmath.Pose2D `json:"goal"`
	// MaxDuration bounds how long the control loop may run.
	MaxDuration time.Duration `json:"max_duration"`
	// StallTicks is how many ticks without a valid pose are tolerated before warning.
	StallTicks int `json:"stall_ticks"`
	// WrapThreshold is the ε of the heading unwrapper, in radians.
	WrapThreshold float64 `json:"wrap_threshold"`

	Path      PathConfig      `json:"path"`
	Control   ControlConfig   `json:"control"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Source    SourceConfig    `json:"source"`

	LogLevel string `json:"log_level"`
	// LogPatterns override LogLevel for the loggers they match.
	LogPatterns []logging.LoggerPatternConfig `json:"log_patterns"`
}

// PathConfig configures the reference path.
type PathConfig struct {
	StartX     float64 `json:"start_x"`
	StartY     float64 `json:"start_y"`
	Points     int     `json:"points"`
	StartIndex int     `json:"start_index"`
}

// ControlConfig configures action selection.
type ControlConfig struct {
	Mode         string    `json:"mode"`
	ManualAction []float64 `json:"manual_action"`
	// LinearBounds and AngularBounds are [min, max] in m/s and rad/s.
	LinearBounds  []float64 `json:"linear_bounds"`
	AngularBounds []float64 `json:"angular_bounds"`
	// ObjectiveWeights is the diagonal of R1 over [x, y, theta, v, omega].
	ObjectiveWeights []float64 `json:"objective_weights"`
	LinearGain       float64   `json:"linear_gain"`
	HeadingGain      float64   `json:"heading_gain"`
}

// TelemetryConfig configures the per tick record sinks.
type TelemetryConfig struct {
	System     string `json:"system"`
	PrintStep  bool   `json:"print_step"`
	LogData    bool   `json:"log_data"`
	DataDir    string `json:"data_dir"`
	MaxSizeMB  int    `json:"max_size_mb"`
	SQLitePath string `json:"sqlite_path"`
}

// SourceConfig selects and configures the localization source.
type SourceConfig struct {
	Type          string             `json:"type"`
	Initial       spatialmath.Pose2D `json:"initial"`
	Interval      time.Duration      `json:"interval"`
	BagPath       string             `json:"bag_path"`
	Topic         string             `json:"topic"`
	NATSURL       string             `json:"nats_url"`
	OdomSubject   string             `json:"odom_subject"`
	CmdVelSubject string             `json:"cmd_vel_subject"`
}

// Default returns the configuration of the turtlebot preset.
func Default() *Config {
	return &Config{
		Rate:          50,
		Goal:          spatialmath.Pose2D{X: 3, Y: 3, Theta: 0.001},
		MaxDuration:   100 * time.Second,
		StallTicks:    100,
		WrapThreshold: spatialmath.DefaultWrapThreshold,
		Path: PathConfig{
			StartX: 5,
			StartY: 5,
			Points: 29,
		},
		Control: ControlConfig{
			Mode:             "nominal",
			ManualAction:     []float64{-5, -3},
			LinearBounds:     []float64{-25, 25},
			AngularBounds:    []float64{-5, 5},
			ObjectiveWeights: []float64{1, 10, 1, 0, 0},
			LinearGain:       0.5,
			HeadingGain:      1.5,
		},
		Telemetry: TelemetryConfig{
			System:    "3wrobotNI",
			PrintStep: true,
			DataDir:   "simdata",
			MaxSizeMB: 100,
		},
		Source: SourceConfig{
			Type:          SourceFake,
			Initial:       spatialmath.Pose2D{X: 5, Y: 5, Theta: -3 * math.Pi / 4},
			Interval:      20 * time.Millisecond,
			Topic:         "/odom",
			NATSURL:       "nats://127.0.0.1:4222",
			OdomSubject:   "odom",
			CmdVelSubject: "cmd_vel",
		},
		LogLevel: "info",
	}
}

// Period is the duration of one control tick.
func (c *Config) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.Rate)
}

// Validate returns the first problem found in the configuration.
func (c *Config) Validate(path string) error {
	if c.Rate <= 0 || c.Rate > MaxRate {
		return utils.NewConfigValidationError(path, errors.Errorf("rate must be in (0, %d] Hz, got %v", MaxRate, c.Rate))
	}
	for _, v := range []float64{c.Goal.X, c.Goal.Y, c.Goal.Theta} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return utils.NewConfigValidationError(path, errors.Errorf("goal must be finite, got %+v", c.Goal))
		}
	}
	if c.MaxDuration <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "max_duration")
	}
	if c.StallTicks <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "stall_ticks")
	}
	if c.WrapThreshold <= 0 || c.WrapThreshold > math.Pi {
		return utils.NewConfigValidationError(path, errors.Errorf("wrap_threshold must be in (0, π], got %v", c.WrapThreshold))
	}
	if _, err := logging.LevelFromString(c.LogLevel); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	for _, lpc := range c.LogPatterns {
		if err := lpc.Validate(); err != nil {
			return utils.NewConfigValidationError(path+".log_patterns", err)
		}
	}
	if err := c.Path.Validate(path + ".path"); err != nil {
		return err
	}
	if err := c.Control.Validate(path + ".control"); err != nil {
		return err
	}
	if err := c.Telemetry.Validate(path + ".telemetry"); err != nil {
		return err
	}
	return c.Source.Validate(path + ".source")
}

// Validate checks the path parameters. A zero start x would divide by zero when building the path.
func (pc *PathConfig) Validate(path string) error {
	if pc.StartX == 0 {
		return utils.NewConfigValidationError(path, errors.New("start_x must not be zero"))
	}
	if pc.Points < 2 {
		return utils.NewConfigValidationError(path, errors.Errorf("points must be at least 2, got %d", pc.Points))
	}
	if pc.StartIndex < 0 || pc.StartIndex >= pc.Points {
		return utils.NewConfigValidationError(path, errors.Errorf("start_index %d outside [0, %d)", pc.StartIndex, pc.Points))
	}
	return nil
}

// Validate checks action selection parameters.
func (cc *ControlConfig) Validate(path string) error {
	if cc.Mode == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "mode")
	}
	if len(cc.ManualAction) != 2 {
		return utils.NewConfigValidationError(path, errors.Errorf("manual_action needs 2 values, got %d", len(cc.ManualAction)))
	}
	for name, bounds := range map[string][]float64{"linear_bounds": cc.LinearBounds, "angular_bounds": cc.AngularBounds} {
		if len(bounds) != 2 || bounds[0] > bounds[1] {
			return utils.NewConfigValidationError(path, errors.Errorf("%s must be [min, max], got %v", name, bounds))
		}
	}
	if len(cc.ObjectiveWeights) != 5 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("objective_weights needs 5 values (x, y, theta, v, omega), got %d", len(cc.ObjectiveWeights)))
	}
	return nil
}

// Validate checks telemetry parameters.
func (tc *TelemetryConfig) Validate(path string) error {
	if tc.LogData && tc.DataDir == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "data_dir")
	}
	if tc.MaxSizeMB < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("max_size_mb must not be negative, got %d", tc.MaxSizeMB))
	}
	return nil
}

// Validate checks the source specific fields for the selected source type.
func (sc *SourceConfig) Validate(path string) error {
	switch sc.Type {
	case SourceFake:
		if sc.Interval <= 0 {
			return utils.NewConfigValidationFieldRequiredError(path, "interval")
		}
	case SourceRosbag:
		if sc.BagPath == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "bag_path")
		}
		if sc.Topic == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "topic")
		}
	case SourceNATS:
		if sc.NATSURL == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "nats_url")
		}
		if sc.OdomSubject == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "odom_subject")
		}
		if sc.CmdVelSubject == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "cmd_vel_subject")
		}
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown source type %q", sc.Type))
	}
	return nil
}
