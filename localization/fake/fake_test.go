package fake

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/rcognita/turtlenav/localization"
	"github.com/rcognita/turtlenav/logging"
	"github.com/rcognita/turtlenav/spatialmath"
)

func receive(t *testing.T, ch <-chan localization.RawPoseSample) localization.RawPoseSample {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sample")
	}
	return localization.RawPoseSample{}
}

func TestUnicycleSource(t *testing.T) {
	logger := logging.NewTestLogger(t)
	mock := clock.NewMock()
	src := NewSource(spatialmath.Pose2D{X: 1, Y: 2, Theta: 0}, 100*time.Millisecond, logger).WithClock(mock)

	samples := make(chan localization.RawPoseSample, 1)
	test.That(t, src.Start(context.Background(), func(s localization.RawPoseSample) { samples <- s }), test.ShouldBeNil)
	defer func() { test.That(t, src.Close(context.Background()), test.ShouldBeNil) }()
	test.That(t, src.Start(context.Background(), nil), test.ShouldEqual, ErrAlreadyStarted)

	mock.Add(100 * time.Millisecond)
	s := receive(t, samples)
	test.That(t, s.X, test.ShouldEqual, 1.0)
	test.That(t, s.Y, test.ShouldEqual, 2.0)

	src.SetVelocity(2, 0)
	mock.Add(100 * time.Millisecond)
	s = receive(t, samples)
	test.That(t, s.X, test.ShouldAlmostEqual, 1.2, 1e-12)
	test.That(t, s.Y, test.ShouldAlmostEqual, 2.0, 1e-12)
	test.That(t, s.Stamp, test.ShouldEqual, mock.Now())

	src.SetVelocity(0, math.Pi)
	for i := 0; i < 10; i++ {
		mock.Add(100 * time.Millisecond)
		s = receive(t, samples)
	}
	// half a turn lands on the seam, which is reported as +π
	yaw, err := s.Orientation.Yaw()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.Abs(yaw), test.ShouldAlmostEqual, math.Pi, 1e-9)
	test.That(t, src.Pose().X, test.ShouldAlmostEqual, 1.2, 1e-12)
}

func TestScriptedSource(t *testing.T) {
	script := []localization.RawPoseSample{
		{X: 1, Orientation: spatialmath.NewQuaternionFromYaw(0.1)},
		{X: 2, Orientation: spatialmath.NewQuaternionFromYaw(0.2)},
		{X: 3, Orientation: spatialmath.NewQuaternionFromYaw(0.3)},
	}
	src := NewScriptedSource(script, time.Millisecond, logging.NewTestLogger(t))

	samples := make(chan localization.RawPoseSample, len(script))
	test.That(t, src.Start(context.Background(), func(s localization.RawPoseSample) { samples <- s }), test.ShouldBeNil)
	for _, want := range script {
		got := receive(t, samples)
		test.That(t, got.X, test.ShouldEqual, want.X)
		test.That(t, got.Orientation, test.ShouldResemble, want.Orientation)
		test.That(t, got.Stamp.IsZero(), test.ShouldBeFalse)
	}
	test.That(t, src.Close(context.Background()), test.ShouldBeNil)
	test.That(t, len(samples), test.ShouldEqual, 0)
}

func TestEmptyScriptStaysQuiet(t *testing.T) {
	src := NewScriptedSource(nil, time.Millisecond, logging.NewTestLogger(t))
	called := make(chan struct{}, 1)
	test.That(t, src.Start(context.Background(), func(localization.RawPoseSample) { called <- struct{}{} }), test.ShouldBeNil)
	time.Sleep(20 * time.Millisecond)
	test.That(t, src.Close(context.Background()), test.ShouldBeNil)
	test.That(t, len(called), test.ShouldEqual, 0)
}
