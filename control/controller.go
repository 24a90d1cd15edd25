package control

import (
	"math"

	"github.com/pkg/errors"

	"github.com/rcognita/turtlenav/config"
	"github.com/rcognita/turtlenav/localization"
	"github.com/rcognita/turtlenav/spatialmath"
	"github.com/rcognita/turtlenav/trajectory"
)

// Action is a planar velocity command: V in m/s along the body x axis, Omega in rad/s about z.
type Action struct {
	V     float64
	Omega float64
}

// Vector returns [v, omega].
func (a Action) Vector() []float64 {
	return []float64{a.V, a.Omega}
}

// A Controller computes the action for elapsed time t (seconds) and a valid goal frame state.
type Controller interface {
	Action(t float64, s localization.State) (Action, error)
}

// Bounds are the inclusive limits applied to every action.
type Bounds struct {
	VMin, VMax         float64
	OmegaMin, OmegaMax float64
}

// BoundsFromConfig reads the action limits of cc.
func BoundsFromConfig(cc *config.ControlConfig) Bounds {
	return Bounds{
		VMin: cc.LinearBounds[0], VMax: cc.LinearBounds[1],
		OmegaMin: cc.AngularBounds[0], OmegaMax: cc.AngularBounds[1],
	}
}

// Clip returns a limited to b.
func (b Bounds) Clip(a Action) Action {
	return Action{
		V:     math.Max(b.VMin, math.Min(b.VMax, a.V)),
		Omega: math.Max(b.OmegaMin, math.Min(b.OmegaMax, a.Omega)),
	}
}

type manualController struct {
	action Action
}

// NewManualController returns a controller that always answers action, clipped to bounds.
func NewManualController(action Action, bounds Bounds) Controller {
	return &manualController{action: bounds.Clip(action)}
}

func (mc *manualController) Action(t float64, s localization.State) (Action, error) {
	return mc.action, nil
}

// arrivalTolerance is how close to the final waypoint, in meters, counts as arrived.
const arrivalTolerance = 0.05

// NominalController drives a unicycle along a reference path expressed in the goal frame. It
// aims one waypoint past the tracked one, and once on the final waypoint it turns in place to the
// goal heading. It keeps a tracker and is not safe for concurrent use.
type NominalController struct {
	tracker     *trajectory.Tracker
	bounds      Bounds
	linearGain  float64
	headingGain float64
}

// NewNominalController follows path starting at the tracker's start index.
func NewNominalController(path *trajectory.Path, startIndex int, cc *config.ControlConfig) (*NominalController, error) {
	tracker, err := trajectory.NewTracker(path, startIndex)
	if err != nil {
		return nil, err
	}
	if cc.LinearGain <= 0 || cc.HeadingGain <= 0 {
		return nil, errors.Errorf("nominal controller gains must be positive, got %v and %v", cc.LinearGain, cc.HeadingGain)
	}
	return &NominalController{
		tracker:     tracker,
		bounds:      BoundsFromConfig(cc),
		linearGain:  cc.LinearGain,
		headingGain: cc.HeadingGain,
	}, nil
}

// Action steers towards the next waypoint.
func (nc *NominalController) Action(t float64, s localization.State) (Action, error) {
	if !s.Valid {
		return Action{}, errors.New("nominal controller needs a valid state")
	}
	_, idx := nc.tracker.Nearest(s.X, s.Y)
	path := nc.tracker.Path()
	target := path.At(min(idx+1, path.Len()-1))

	dx, dy := target.X-s.X, target.Y-s.Y
	distance := math.Hypot(dx, dy)
	if nc.tracker.Done() && distance < arrivalTolerance {
		// the goal frame heading of the goal itself is 0
		return nc.bounds.Clip(Action{Omega: -nc.headingGain * spatialmath.WrapAngle(s.Theta)}), nil
	}

	headingError := spatialmath.WrapAngle(math.Atan2(dy, dx) - s.Theta)
	return nc.bounds.Clip(Action{
		V:     nc.linearGain * distance * math.Cos(headingError),
		Omega: nc.headingGain * headingError,
	}), nil
}

// Tracker exposes the waypoint tracker, for progress reporting.
func (nc *NominalController) Tracker() *trajectory.Tracker {
	return nc.tracker
}
