package spatialmath

import "math"

// EulerAngles are roll, pitch and yaw in radians.
type EulerAngles struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// CanonicalAngle maps -π onto +π so the seam has a single representation. Other values pass
// through unchanged.
func CanonicalAngle(rads float64) float64 {
	if rads == -math.Pi {
		return math.Pi
	}
	return rads
}

// WrapAngle folds any angle into (-π, π].
func WrapAngle(rads float64) float64 {
	return CanonicalAngle(math.Atan2(math.Sin(rads), math.Cos(rads)))
}
