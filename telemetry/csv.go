package telemetry

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/natefinch/lumberjack.v2"
)

// CSVHeader is the column row written after the preamble.
var CSVHeader = []string{"t [s]", "x [m]", "y [m]", "alpha [rad]", "stage_obj", "accum_obj", "v [m/s]", "omega [rad/s]"}

// CSVFileName names the data file of run number run, e.g.
// 3wrobotNI__nominal__2024-05-01__13h04m05s__run01.csv.
func CSVFileName(info RunInfo, run int) string {
	return fmt.Sprintf("%s__%s__%s__%s__run%02d.csv",
		info.System, info.Mode, info.Started.Format("2006-01-02"), info.Started.Format("15h04m05s"), run)
}

// CSVSink writes a preamble describing the run followed by one row per record. The file rotates
// once it grows past maxSizeMB; rotated files keep their preamble, later files start at the
// first row after rotation.
type CSVSink struct {
	mu   sync.Mutex
	path string
	out  *lumberjack.Logger
	w    *csv.Writer
}

// NewCSVSink creates dir if needed and opens the run's data file in it.
func NewCSVSink(dir string, info RunInfo, maxSizeMB int) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "cannot create data directory %q", dir)
	}
	path := filepath.Join(dir, CSVFileName(info, 1))
	out := &lumberjack.Logger{Filename: path, MaxSize: maxSizeMB}
	cs := &CSVSink{path: path, out: out, w: csv.NewWriter(out)}

	weights := make([]string, 0, len(info.Weights))
	for _, w := range info.Weights {
		weights = append(weights, formatFloat(w))
	}
	rows := [][]string{
		{"System", info.System},
		{"Controller", info.Mode},
		{"dt", formatFloat(info.Period.Seconds())},
		{"state_init", fmt.Sprintf("[%s %s %s]", formatFloat(info.Initial.X), formatFloat(info.Initial.Y), formatFloat(info.Initial.Theta))},
		{"state_goal", fmt.Sprintf("[%s %s %s]", formatFloat(info.Goal.X), formatFloat(info.Goal.Y), formatFloat(info.Goal.Theta))},
		{"R1_diag", fmt.Sprintf("%v", weights)},
		{"run_id", info.RunID},
		CSVHeader,
	}
	if err := cs.w.WriteAll(rows); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "cannot write csv preamble"), out.Close())
	}
	return cs, nil
}

// Path is the file being written.
func (cs *CSVSink) Path() string {
	return cs.path
}

// Write appends r and flushes it to disk.
func (cs *CSVSink) Write(ctx context.Context, r Record) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	row := []string{
		formatFloat(r.Time),
		formatFloat(r.X),
		formatFloat(r.Y),
		formatFloat(r.Theta),
		formatFloat(r.RunningObjective),
		formatFloat(r.AccumulatedObjective),
		formatFloat(r.V),
		formatFloat(r.Omega),
	}
	if err := cs.w.Write(row); err != nil {
		return err
	}
	cs.w.Flush()
	return cs.w.Error()
}

// Close flushes and closes the file.
func (cs *CSVSink) Close() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.w.Flush()
	return multierr.Combine(cs.w.Error(), cs.out.Close())
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
