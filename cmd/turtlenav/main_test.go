package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/rcognita/turtlenav/config"
	fakedrive "github.com/rcognita/turtlenav/drive/fake"
	"github.com/rcognita/turtlenav/logging"
	"github.com/rcognita/turtlenav/trajectory"
)

func TestPathCommand(t *testing.T) {
	var out bytes.Buffer
	err := newApp(&out).Run([]string{"turtlenav", "path", "--points", "5", "--start-x", "4", "--start-y", "2"})
	test.That(t, err, test.ShouldBeNil)

	var waypoints []trajectory.Waypoint
	test.That(t, json.Unmarshal(out.Bytes(), &waypoints), test.ShouldBeNil)
	test.That(t, waypoints, test.ShouldHaveLength, 5)
	test.That(t, waypoints[0].X, test.ShouldAlmostEqual, 4.0, 1e-9)
	test.That(t, waypoints[0].Y, test.ShouldAlmostEqual, 2.0, 1e-9)

	err = newApp(&out).Run([]string{"turtlenav", "path", "--start-x", "0"})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRunCommandRejectsBadFlags(t *testing.T) {
	var out bytes.Buffer
	err := newApp(&out).Run([]string{"turtlenav", "run", "--rate", "1000"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "rate")

	err = newApp(&out).Run([]string{"turtlenav", "run", "--source", "carrier pigeon"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "carrier pigeon")
}

func TestRunCommandWritesTelemetry(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	var out bytes.Buffer
	err := newApp(&out).Run([]string{
		"turtlenav", "run",
		"--ctrl-mode", "manual",
		"--max-duration", "300ms",
		"--print-step=false",
		"--log-data",
		"--data-dir", dir,
		"--sqlite", dbPath,
	})
	test.That(t, err, test.ShouldBeNil)

	matches, err := filepath.Glob(filepath.Join(dir, "3wrobotNI__manual__*__run01.csv"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, matches, test.ShouldHaveLength, 1)
	contents, err := os.ReadFile(matches[0])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(contents), test.ShouldStartWith, "System,3wrobotNI\n")
	test.That(t, strings.Count(string(contents), "\n"), test.ShouldBeGreaterThan, 8)

	db, err := sql.Open("sqlite", dbPath)
	test.That(t, err, test.ShouldBeNil)
	defer db.Close()
	var runs, steps int
	test.That(t, db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&runs), test.ShouldBeNil)
	test.That(t, db.QueryRow(`SELECT COUNT(*) FROM steps`).Scan(&steps), test.ShouldBeNil)
	test.That(t, runs, test.ShouldEqual, 1)
	test.That(t, steps, test.ShouldBeGreaterThan, 0)
}

func TestPipelineDrivesSimulator(t *testing.T) {
	cfg := config.Default()
	cfg.Control.Mode = "manual"
	cfg.Control.ManualAction = []float64{1, 0}
	cfg.MaxDuration = 200 * time.Millisecond
	cfg.Telemetry.PrintStep = false
	cfg.Source.Initial.Theta = 0
	cfg.Source.Interval = 5 * time.Millisecond

	ctx := context.Background()
	p, err := newPipeline(ctx, cfg, pipelineOptions{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.run(ctx), test.ShouldBeNil)
	test.That(t, p.close(ctx), test.ShouldBeNil)

	d := p.drive.(*fakedrive.Drive)
	test.That(t, d.StopCount(), test.ShouldEqual, 1)
	test.That(t, len(d.Commands()), test.ShouldBeGreaterThan, 1)
	test.That(t, p.transformer.Samples(), test.ShouldBeGreaterThan, 0)
	// driving along +x from (5, 5) moves away from the goal at (3, 3)
	test.That(t, p.transformer.RawPose().X, test.ShouldBeGreaterThan, 5.0)
}

func TestPipelineSourceErrors(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	cfg := config.Default()
	cfg.Source.Type = config.SourceRosbag
	cfg.Source.BagPath = filepath.Join(t.TempDir(), "missing.bag")
	_, err := newPipeline(ctx, cfg, pipelineOptions{}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	cfg = config.Default()
	cfg.Source.Type = config.SourceNATS
	cfg.Source.NATSURL = "nats://127.0.0.1:1"
	_, err = newPipeline(ctx, cfg, pipelineOptions{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot connect to NATS")
}

func TestPipelineSinkErrorsCloseSource(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	notADir := filepath.Join(t.TempDir(), "file")
	test.That(t, os.WriteFile(notADir, []byte("x"), 0o600), test.ShouldBeNil)

	cfg := config.Default()
	cfg.Telemetry.LogData = true
	cfg.Telemetry.DataDir = filepath.Join(notADir, "data")
	p, err := newPipeline(ctx, cfg, pipelineOptions{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot create data directory")
	test.That(t, p, test.ShouldBeNil)

	cfg = config.Default()
	cfg.Telemetry.SQLitePath = filepath.Join(notADir, "runs.db")
	p, err = newPipeline(ctx, cfg, pipelineOptions{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, p, test.ShouldBeNil)

	cfg = config.Default()
	cfg.Control.Mode = "optimal"
	_, err = newPipeline(ctx, cfg, pipelineOptions{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "optimal")
}
