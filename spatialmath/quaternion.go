package spatialmath

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// ErrMalformedQuaternion is returned for quaternions that cannot describe a rotation.
var ErrMalformedQuaternion = errors.New("malformed orientation quaternion")

// Quaternion is an orientation as delivered by ROS style localization messages, (x, y, z, w)
// with w the real part.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// NewQuaternionFromYaw returns the rotation of yaw radians about +Z.
func NewQuaternionFromYaw(yaw float64) Quaternion {
	return Quaternion{Z: math.Sin(yaw / 2), W: math.Cos(yaw / 2)}
}

// Number returns the gonum representation of q.
func (q Quaternion) Number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

// Normalized returns q scaled to unit length. Any non finite component or a zero length
// quaternion is an ErrMalformedQuaternion.
func (q Quaternion) Normalized() (Quaternion, error) {
	for _, v := range []float64{q.X, q.Y, q.Z, q.W} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Quaternion{}, errors.Wrapf(ErrMalformedQuaternion, "non finite component in %+v", q)
		}
	}
	norm := quat.Abs(q.Number())
	if norm < 1e-12 || math.IsInf(norm, 0) {
		return Quaternion{}, errors.Wrapf(ErrMalformedQuaternion, "norm %v", norm)
	}
	n := quat.Scale(1/norm, q.Number())
	return Quaternion{X: n.Imag, Y: n.Jmag, Z: n.Kmag, W: n.Real}, nil
}

// EulerAngles converts q into roll, pitch and yaw, intrinsic Z-Y-X order.
func (q Quaternion) EulerAngles() (*EulerAngles, error) {
	n, err := q.Normalized()
	if err != nil {
		return nil, err
	}

	sinrCosp := 2 * (n.W*n.X + n.Y*n.Z)
	cosrCosp := 1 - 2*(n.X*n.X+n.Y*n.Y)

	sinp := 2 * (n.W*n.Y - n.Z*n.X)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	sinyCosp := 2 * (n.W*n.Z + n.X*n.Y)
	cosyCosp := 1 - 2*(n.Y*n.Y+n.Z*n.Z)

	return &EulerAngles{
		Roll:  math.Atan2(sinrCosp, cosrCosp),
		Pitch: pitch,
		Yaw:   CanonicalAngle(math.Atan2(sinyCosp, cosyCosp)),
	}, nil
}

// Yaw returns the planar heading of q in (-π, π]. Roll and pitch are discarded.
func (q Quaternion) Yaw() (float64, error) {
	ea, err := q.EulerAngles()
	if err != nil {
		return 0, err
	}
	return ea.Yaw, nil
}
