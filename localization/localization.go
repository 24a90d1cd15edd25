// Package localization turns asynchronous pose estimates into a goal relative control state.
package localization

import (
	"context"
	"time"

	"github.com/rcognita/turtlenav/spatialmath"
)

// RawPoseSample is one position and orientation estimate as produced by a localization source.
type RawPoseSample struct {
	X           float64
	Y           float64
	Orientation spatialmath.Quaternion
	// Stamp is when the estimate was generated. It may be zero if the source does not know.
	Stamp time.Time
}

// Handler receives samples from a Source in generation order.
type Handler func(RawPoseSample)

// A Source delivers localization samples to a handler until it is closed or ctx is done.
// Implementations must not call the handler concurrently with itself.
type Source interface {
	Start(ctx context.Context, handler Handler) error
	Close(ctx context.Context) error
}

// State is the robot pose expressed in the goal frame. Theta is continuous and may exceed ±π.
// The zero value, with Valid unset, means no sample has been transformed yet.
type State struct {
	X     float64
	Y     float64
	Theta float64
	Valid bool
}

// Vector returns [x, y, theta].
func (s State) Vector() []float64 {
	return []float64{s.X, s.Y, s.Theta}
}
