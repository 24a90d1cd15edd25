package natsbus

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/nats-io/nats.go"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/rcognita/turtlenav/drive"
	"github.com/rcognita/turtlenav/localization"
	"github.com/rcognita/turtlenav/logging"
	"github.com/rcognita/turtlenav/spatialmath"
)

var (
	_ localization.Source = &OdometrySource{}
	_ drive.Drive         = &Publisher{}
)

func TestDecodeOdometry(t *testing.T) {
	data := []byte(`{
		"header": {"seq": 4, "stamp": {"secs": 12, "nsecs": 500}, "frame_id": "odom"},
		"child_frame_id": "base_footprint",
		"pose": {"pose": {
			"position": {"x": 1.5, "y": -2, "z": 0},
			"orientation": {"x": 0, "y": 0, "z": 0.7071067811865476, "w": 0.7071067811865476}
		}}
	}`)
	sample, err := DecodeOdometry(data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sample.X, test.ShouldEqual, 1.5)
	test.That(t, sample.Y, test.ShouldEqual, -2.0)
	test.That(t, sample.Stamp.Equal(time.Unix(12, 500)), test.ShouldBeTrue)
	yaw, err := sample.Orientation.Yaw()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, yaw, test.ShouldAlmostEqual, math.Pi/2, 1e-9)

	sample, err = DecodeOdometry([]byte(`{"pose": {"pose": {"position": {"x": 1}}}}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sample.Stamp.IsZero(), test.ShouldBeTrue)

	_, err = DecodeOdometry([]byte(`not json`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "invalid odometry message")
}

func TestEncodeOdometryRoundTrip(t *testing.T) {
	in := localization.RawPoseSample{
		X:           3,
		Y:           4,
		Orientation: spatialmath.NewQuaternionFromYaw(-1),
		Stamp:       time.Unix(100, 42),
	}
	data, err := EncodeOdometry(in, "odom")
	test.That(t, err, test.ShouldBeNil)
	out, err := DecodeOdometry(data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.X, test.ShouldEqual, 3.0)
	test.That(t, out.Y, test.ShouldEqual, 4.0)
	test.That(t, out.Stamp.Equal(in.Stamp), test.ShouldBeTrue)
	yaw, err := out.Orientation.Yaw()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, yaw, test.ShouldAlmostEqual, -1, 1e-9)
}

func TestTwistJSON(t *testing.T) {
	data, err := json.Marshal(NewTwist(r3.Vector{X: 0.25}, r3.Vector{Z: -1.5}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldEqual,
		`{"linear":{"x":0.25,"y":0,"z":0},"angular":{"x":0,"y":0,"z":-1.5}}`)
}

// TestRoundTripThroughServer needs a running NATS server, e.g. TURTLENAV_TEST_NATS_URL=nats://127.0.0.1:4222.
func TestRoundTripThroughServer(t *testing.T) {
	url := os.Getenv("TURTLENAV_TEST_NATS_URL")
	if url == "" {
		t.Skip("TURTLENAV_TEST_NATS_URL not set")
	}
	logger := logging.NewTestLogger(t)
	conn, err := Connect(url, "turtlenav-test", logger)
	test.That(t, err, test.ShouldBeNil)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan localization.RawPoseSample, 4)
	src := NewOdometrySource(conn, "test.odom", logger)
	test.That(t, src.Start(ctx, func(s localization.RawPoseSample) { received <- s }), test.ShouldBeNil)
	defer func() { test.That(t, src.Close(ctx), test.ShouldBeNil) }()
	test.That(t, src.Start(ctx, func(localization.RawPoseSample) {}), test.ShouldNotBeNil)

	test.That(t, conn.Publish("test.odom", []byte("garbage")), test.ShouldBeNil)
	data, err := EncodeOdometry(localization.RawPoseSample{X: 1, Y: 2, Orientation: spatialmath.NewQuaternionFromYaw(0)}, "odom")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conn.Publish("test.odom", data), test.ShouldBeNil)

	select {
	case s := <-received:
		test.That(t, s.X, test.ShouldEqual, 1.0)
		test.That(t, s.Y, test.ShouldEqual, 2.0)
	case <-time.After(5 * time.Second):
		t.Fatal("no odometry received")
	}

	twists := make(chan *nats.Msg, 4)
	sub, err := conn.ChanSubscribe("test.cmd_vel", twists)
	test.That(t, err, test.ShouldBeNil)
	defer sub.Unsubscribe()

	pub := NewPublisher(conn, "test.cmd_vel")
	test.That(t, pub.SetVelocity(ctx, r3.Vector{X: 1}, r3.Vector{Z: 2}, nil), test.ShouldBeNil)
	test.That(t, pub.Stop(ctx, nil), test.ShouldBeNil)

	var got []Twist
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		for {
			select {
			case msg := <-twists:
				var tw Twist
				test.That(tb, json.Unmarshal(msg.Data, &tw), test.ShouldBeNil)
				got = append(got, tw)
				continue
			default:
			}
			break
		}
		test.That(tb, len(got), test.ShouldEqual, 2)
	})
	test.That(t, got[0].Linear.X, test.ShouldEqual, 1.0)
	test.That(t, got[0].Angular.Z, test.ShouldEqual, 2.0)
	test.That(t, got[1], test.ShouldResemble, Twist{})
}
