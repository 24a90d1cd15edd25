package spatialmath

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Pose2D is a planar pose: position in meters, heading in radians.
type Pose2D struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// Transform2D is a 3x3 homogeneous transform of the plane.
type Transform2D struct {
	m *mat.Dense
}

// NewTransform2D returns the transform placing a frame at pose p in its parent frame:
//
//	| cosθ  -sinθ  x |
//	| sinθ   cosθ  y |
//	|  0      0    1 |
func NewTransform2D(p Pose2D) *Transform2D {
	c, s := math.Cos(p.Theta), math.Sin(p.Theta)
	return &Transform2D{m: mat.NewDense(3, 3, []float64{
		c, -s, p.X,
		s, c, p.Y,
		0, 0, 1,
	})}
}

// Inverse returns the transform mapping parent frame coordinates into this frame.
func (t *Transform2D) Inverse() (*Transform2D, error) {
	var inv mat.Dense
	if err := inv.Inverse(t.m); err != nil {
		return nil, errors.Wrap(err, "cannot invert homogeneous transform")
	}
	return &Transform2D{m: &inv}, nil
}

// Apply maps the point (x, y) through t.
func (t *Transform2D) Apply(x, y float64) (float64, float64) {
	var out mat.VecDense
	out.MulVec(t.m, mat.NewVecDense(3, []float64{x, y, 1}))
	return out.AtVec(0) / out.AtVec(2), out.AtVec(1) / out.AtVec(2)
}

// GoalFrame converts world frame positions into the frame anchored at a goal pose. The inverse is
// computed once at construction since the goal never changes.
type GoalFrame struct {
	goal    Pose2D
	inverse *Transform2D
}

// NewGoalFrame builds the frame for goal.
func NewGoalFrame(goal Pose2D) (*GoalFrame, error) {
	inv, err := NewTransform2D(goal).Inverse()
	if err != nil {
		return nil, err
	}
	return &GoalFrame{goal: goal, inverse: inv}, nil
}

// Goal returns the goal pose in the world frame.
func (gf *GoalFrame) Goal() Pose2D {
	return gf.goal
}

// Express returns the world pose (x, y, heading) relative to the goal. Heading is not wrapped.
func (gf *GoalFrame) Express(x, y, heading float64) Pose2D {
	gx, gy := gf.inverse.Apply(x, y)
	return Pose2D{X: gx, Y: gy, Theta: heading - gf.goal.Theta}
}
