package natsbus

import (
	"encoding/json"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/rcognita/turtlenav/localization"
	"github.com/rcognita/turtlenav/spatialmath"
)

// Vector3 is a geometry_msgs/Vector3.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Twist is a geometry_msgs/Twist as published on the velocity command subject.
type Twist struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// NewTwist converts drive velocity vectors.
func NewTwist(linear, angular r3.Vector) Twist {
	return Twist{
		Linear:  Vector3{X: linear.X, Y: linear.Y, Z: linear.Z},
		Angular: Vector3{X: angular.X, Y: angular.Y, Z: angular.Z},
	}
}

// Stamp is a ROS time.
type Stamp struct {
	Secs  int64 `json:"secs"`
	Nsecs int64 `json:"nsecs"`
}

// Odometry is the subset of nav_msgs/Odometry carried on the odometry subject.
type Odometry struct {
	Header struct {
		Seq     uint32 `json:"seq"`
		Stamp   Stamp  `json:"stamp"`
		FrameID string `json:"frame_id"`
	} `json:"header"`
	ChildFrameID string `json:"child_frame_id"`
	Pose         struct {
		Pose struct {
			Position    Vector3                `json:"position"`
			Orientation spatialmath.Quaternion `json:"orientation"`
		} `json:"pose"`
	} `json:"pose"`
}

// DecodeOdometry parses one odometry message. A message without a stamp gets a zero Stamp.
func DecodeOdometry(data []byte) (localization.RawPoseSample, error) {
	var odom Odometry
	if err := json.Unmarshal(data, &odom); err != nil {
		return localization.RawPoseSample{}, errors.Wrap(err, "invalid odometry message")
	}
	sample := localization.RawPoseSample{
		X:           odom.Pose.Pose.Position.X,
		Y:           odom.Pose.Pose.Position.Y,
		Orientation: odom.Pose.Pose.Orientation,
	}
	if st := odom.Header.Stamp; st.Secs != 0 || st.Nsecs != 0 {
		sample.Stamp = time.Unix(st.Secs, st.Nsecs)
	}
	return sample, nil
}

// EncodeOdometry is the inverse of DecodeOdometry, used by simulators and tests publishing poses.
func EncodeOdometry(sample localization.RawPoseSample, frameID string) ([]byte, error) {
	var odom Odometry
	odom.Header.FrameID = frameID
	if !sample.Stamp.IsZero() {
		odom.Header.Stamp = Stamp{Secs: sample.Stamp.Unix(), Nsecs: int64(sample.Stamp.Nanosecond())}
	}
	odom.Pose.Pose.Position = Vector3{X: sample.X, Y: sample.Y}
	odom.Pose.Pose.Orientation = sample.Orientation
	return json.Marshal(odom)
}
