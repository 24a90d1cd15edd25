// Package trajectory builds reference waypoint paths and tracks a robot's progress along them.
package trajectory

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrZeroStartX is returned when a path would need the slope y0/x0 with x0 == 0.
	ErrZeroStartX = errors.New("path start x must not be zero")
	// ErrTooFewPoints is returned when fewer than two waypoints are requested.
	ErrTooFewPoints = errors.New("a path needs at least two waypoints")
)

// Waypoint is a single target on a path.
type Waypoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// Path is an index aligned sequence of waypoints. Paths are never modified after they are built.
type Path struct {
	Xs     []float64
	Ys     []float64
	Thetas []float64
}

// Len returns the number of waypoints.
func (p *Path) Len() int {
	return len(p.Xs)
}

// At returns waypoint i.
func (p *Path) At(i int) Waypoint {
	return Waypoint{X: p.Xs[i], Y: p.Ys[i], Theta: p.Thetas[i]}
}

// Build returns n waypoints running in a straight line from (x0, y0) to the origin, offset
// sideways by one full period of a sine wave.
func Build(x0, y0 float64, n int) (*Path, error) {
	if x0 == 0 {
		return nil, ErrZeroStartX
	}
	if n < 2 {
		return nil, errors.Wrapf(ErrTooFewPoints, "got %d", n)
	}

	xs := floats.Span(make([]float64, n), x0, 0)
	xs[0], xs[n-1] = x0, 0
	perturbation := floats.Span(make([]float64, n), 0, 2*math.Pi)
	slope := y0 / x0

	ys := make([]float64, n)
	for i := range ys {
		ys[i] = slope*xs[i] + math.Sin(perturbation[i])
	}

	return &Path{Xs: xs, Ys: ys, Thetas: segmentHeadings(xs, ys)}, nil
}

// BuildLemniscate returns n waypoints on a lemniscate of Bernoulli with half width scale·√2,
// centered on the origin.
func BuildLemniscate(scale float64, n int) (*Path, error) {
	if n < 2 {
		return nil, errors.Wrapf(ErrTooFewPoints, "got %d", n)
	}
	if scale <= 0 {
		return nil, errors.Errorf("lemniscate scale must be positive, got %v", scale)
	}

	ts := floats.Span(make([]float64, n), 0, 2*math.Pi)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, t := range ts {
		denom := math.Pow(math.Sin(t), 2) + 1
		xs[i] = scale * math.Sqrt2 * math.Cos(t) / denom
		ys[i] = scale * math.Sqrt2 * math.Cos(t) * math.Sin(t) / denom
	}

	return &Path{Xs: xs, Ys: ys, Thetas: segmentHeadings(xs, ys)}, nil
}

// segmentHeadings gives each waypoint the direction of the segment arriving at it. The first
// waypoint has no incoming segment and gets 0.
func segmentHeadings(xs, ys []float64) []float64 {
	thetas := make([]float64, len(xs))
	for i := 1; i < len(xs); i++ {
		thetas[i] = math.Atan2(ys[i]-ys[i-1], xs[i]-xs[i-1])
	}
	return thetas
}
