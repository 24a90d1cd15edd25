package control

import (
	"time"

	"github.com/montanaflynn/stats"
)

// recentTicks is how many tick durations the percentile is computed over.
const recentTicks = 1024

// tickStats summarizes tick durations in milliseconds with bounded memory: count, mean and max
// cover the whole run, the 99th percentile covers the most recent ticks.
type tickStats struct {
	count  int
	sum    float64
	max    float64
	recent []float64
	next   int
}

func (ts *tickStats) add(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	ts.count++
	ts.sum += ms
	if ts.count == 1 || ms > ts.max {
		ts.max = ms
	}
	if len(ts.recent) < recentTicks {
		ts.recent = append(ts.recent, ms)
		return
	}
	ts.recent[ts.next] = ms
	ts.next = (ts.next + 1) % recentTicks
}

// fields returns log key/value pairs. It is empty before the first tick.
func (ts *tickStats) fields() []interface{} {
	if ts.count == 0 {
		return nil
	}
	p99, err := stats.Percentile(stats.Float64Data(ts.recent), 99)
	if err != nil {
		p99 = ts.max
	}
	return []interface{}{
		"tick_mean_ms", ts.sum / float64(ts.count),
		"tick_p99_ms", p99,
		"tick_max_ms", ts.max,
	}
}
