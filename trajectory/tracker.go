package trajectory

import (
	"math"

	"github.com/pkg/errors"
)

// Tracker reports the waypoint a robot should aim for. The reported index never moves backward,
// even when an earlier waypoint is geometrically closer (noise, self intersecting paths).
//
// A Tracker is not safe for concurrent use.
type Tracker struct {
	path      *Path
	lastIndex int
}

// NewTracker returns a tracker over path whose cursor starts at startIndex.
func NewTracker(path *Path, startIndex int) (*Tracker, error) {
	if path == nil || path.Len() < 2 {
		return nil, ErrTooFewPoints
	}
	if startIndex < 0 || startIndex >= path.Len() {
		return nil, errors.Errorf("start index %d outside path of %d waypoints", startIndex, path.Len())
	}
	return &Tracker{path: path, lastIndex: startIndex}, nil
}

// Nearest returns the waypoint closest to (x, y), clamped so it is never before the waypoint
// returned by the previous call, along with its index.
func (tr *Tracker) Nearest(x, y float64) (Waypoint, int) {
	idx := 0
	best := math.Inf(1)
	for i := range tr.path.Xs {
		d := math.Hypot(x-tr.path.Xs[i], y-tr.path.Ys[i])
		if d < best {
			best = d
			idx = i
		}
	}

	if idx < tr.lastIndex {
		idx = tr.lastIndex
	}
	tr.lastIndex = idx
	return tr.path.At(idx), idx
}

// LastIndex is the index returned by the most recent Nearest call, or the start index.
func (tr *Tracker) LastIndex() int {
	return tr.lastIndex
}

// Done reports whether the cursor has reached the final waypoint.
func (tr *Tracker) Done() bool {
	return tr.lastIndex == tr.path.Len()-1
}

// Path returns the tracked path.
func (tr *Tracker) Path() *Path {
	return tr.path
}
