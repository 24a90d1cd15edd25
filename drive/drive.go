// Package drive defines the velocity interface of a differential-drive base.
package drive

import (
	"context"

	"github.com/golang/geo/r3"
)

// A Drive accepts velocity commands. Commands are fire and forget; an error only reports that the
// command could not be handed off.
type Drive interface {
	// SetVelocity sets linear velocity in m/s and angular velocity in rad/s. A differential-drive
	// base only honours linear.X and angular.Z.
	SetVelocity(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error
	Stop(ctx context.Context, extra map[string]interface{}) error
}

// Vectors maps a planar action (v, ω) onto the velocity vectors of SetVelocity.
func Vectors(v, omega float64) (linear, angular r3.Vector) {
	return r3.Vector{X: v}, r3.Vector{Z: omega}
}
