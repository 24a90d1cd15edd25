package control

import (
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/rcognita/turtlenav/config"
	"github.com/rcognita/turtlenav/localization"
	"github.com/rcognita/turtlenav/trajectory"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Nominal")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m, test.ShouldEqual, ModeNominal)
	m, err = ParseMode("manual")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m, test.ShouldEqual, ModeManual)

	_, err = ParseMode("MPC")
	test.That(t, errors.Is(err, ErrUnknownMode), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "MPC")
}

func TestBoundsClip(t *testing.T) {
	b := BoundsFromConfig(&config.Default().Control)
	test.That(t, b.Clip(Action{V: 30, Omega: -7}), test.ShouldResemble, Action{V: 25, Omega: -5})
	test.That(t, b.Clip(Action{V: -1, Omega: 2}), test.ShouldResemble, Action{V: -1, Omega: 2})
}

func TestManualController(t *testing.T) {
	bounds := Bounds{VMin: -1, VMax: 1, OmegaMin: -5, OmegaMax: 5}
	c := NewManualController(Action{V: -5, Omega: -3}, bounds)
	for _, s := range []localization.State{{}, {X: 4, Y: -2, Theta: 9, Valid: true}} {
		a, err := c.Action(1.5, s)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, a, test.ShouldResemble, Action{V: -1, Omega: -3})
	}
}

func TestSelector(t *testing.T) {
	sel := NewSelector().Register(ModeManual, NewManualController(Action{V: 1}, Bounds{VMax: 2}))
	test.That(t, sel.Has(ModeManual), test.ShouldBeTrue)
	test.That(t, sel.Has(ModeNominal), test.ShouldBeFalse)

	a, err := sel.Select(0, localization.State{Valid: true}, ModeManual)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.V, test.ShouldEqual, 1.0)
	test.That(t, a.Vector(), test.ShouldResemble, []float64{1, 0})

	_, err = sel.Select(0, localization.State{Valid: true}, ModeNominal)
	test.That(t, errors.Is(err, ErrUnknownMode), test.ShouldBeTrue)
}

func TestNominalControllerSteersAlongPath(t *testing.T) {
	cc := config.Default().Control
	path, err := trajectory.Build(2, 2, 5)
	test.That(t, err, test.ShouldBeNil)
	nc, err := NewNominalController(path, 0, &cc)
	test.That(t, err, test.ShouldBeNil)

	// sitting on the first waypoint and facing the second one: straight ahead, no turn
	first, second := path.At(0), path.At(1)
	heading := math.Atan2(second.Y-first.Y, second.X-first.X)
	a, err := nc.Action(0, localization.State{X: first.X, Y: first.Y, Theta: heading, Valid: true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.V, test.ShouldAlmostEqual, cc.LinearGain*math.Hypot(second.X-first.X, second.Y-first.Y), 1e-9)
	test.That(t, a.Omega, test.ShouldAlmostEqual, 0, 1e-9)

	// facing away: turn towards it and back off instead of driving forward
	a, err = nc.Action(0, localization.State{X: first.X, Y: first.Y, Theta: heading + math.Pi, Valid: true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.V, test.ShouldBeLessThan, 0)
	test.That(t, math.Abs(a.Omega), test.ShouldAlmostEqual, cc.HeadingGain*math.Pi, 1e-9)
	test.That(t, nc.Tracker().LastIndex(), test.ShouldEqual, 0)

	_, err = nc.Action(0, localization.State{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNominalControllerAlignsAtGoal(t *testing.T) {
	cc := config.Default().Control
	path, err := trajectory.Build(2, 2, 5)
	test.That(t, err, test.ShouldBeNil)
	nc, err := NewNominalController(path, 0, &cc)
	test.That(t, err, test.ShouldBeNil)

	a, err := nc.Action(0, localization.State{X: 0.01, Y: -0.01, Theta: 0.4, Valid: true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, nc.Tracker().Done(), test.ShouldBeTrue)
	test.That(t, a.V, test.ShouldEqual, 0.0)
	test.That(t, a.Omega, test.ShouldAlmostEqual, -cc.HeadingGain*0.4, 1e-12)

	// a full extra turn of continuous heading is the same orientation
	a, err = nc.Action(0, localization.State{X: 0, Y: 0, Theta: 0.4 + 2*math.Pi, Valid: true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.Omega, test.ShouldAlmostEqual, -cc.HeadingGain*0.4, 1e-9)
}

func TestNominalControllerConfigErrors(t *testing.T) {
	cc := config.Default().Control
	path, err := trajectory.Build(2, 2, 5)
	test.That(t, err, test.ShouldBeNil)

	_, err = NewNominalController(path, 9, &cc)
	test.That(t, err, test.ShouldNotBeNil)

	cc.HeadingGain = 0
	_, err = NewNominalController(path, 0, &cc)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestObjective(t *testing.T) {
	o, err := NewObjective([]float64{1, 10, 1, 0, 0}, 20*time.Millisecond)
	test.That(t, err, test.ShouldBeNil)

	s := localization.State{X: 1, Y: 2, Theta: -3, Valid: true}
	a := Action{V: 4, Omega: 5}
	test.That(t, o.Stage(s, a), test.ShouldAlmostEqual, 1+40+9, 1e-12)

	stage, accumulated := o.Update(s, a)
	test.That(t, stage, test.ShouldAlmostEqual, 50, 1e-12)
	test.That(t, accumulated, test.ShouldAlmostEqual, 1, 1e-12)
	_, accumulated = o.Update(localization.State{Valid: true}, Action{V: 4})
	test.That(t, accumulated, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, o.Accumulated(), test.ShouldAlmostEqual, 1, 1e-12)

	_, err = NewObjective([]float64{1, 2, 3}, time.Second)
	test.That(t, err, test.ShouldNotBeNil)
}
