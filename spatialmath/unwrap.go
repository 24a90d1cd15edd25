package spatialmath

import "math"

// DefaultWrapThreshold is how close to ±π (in radians) both headings of a sign flip must be for
// the flip to count as a wrap. Anything closer to zero is treated as an ordinary small rotation.
const DefaultWrapThreshold = math.Pi / 2

// HeadingUnwrapper turns headings bounded to (-π, π] into a continuous heading by counting
// crossings of the ±π seam. Samples must be fed in generation order; it is not safe for
// concurrent use.
type HeadingUnwrapper struct {
	threshold   float64
	previous    float64
	revolutions int
}

// NewHeadingUnwrapper returns an unwrapper with no revolutions and a previous heading of 0.
// A non positive or larger than π threshold falls back to DefaultWrapThreshold.
func NewHeadingUnwrapper(threshold float64) *HeadingUnwrapper {
	if threshold <= 0 || threshold > math.Pi {
		threshold = DefaultWrapThreshold
	}
	return &HeadingUnwrapper{threshold: threshold}
}

// Unwrap records heading and returns it shifted by the accumulated number of full turns.
//
// Going counter-clockwise past +π the raw heading jumps from just below +π to just above -π, so
// one turn is added to keep the output continuous. Going clockwise past -π is the mirror image.
func (u *HeadingUnwrapper) Unwrap(heading float64) float64 {
	heading = CanonicalAngle(heading)
	seam := math.Pi - u.threshold
	if math.Signbit(u.previous) != math.Signbit(heading) &&
		math.Abs(u.previous) > seam && math.Abs(heading) > seam {
		if u.previous > 0 {
			u.revolutions++
		} else {
			u.revolutions--
		}
	}
	u.previous = heading
	return heading + 2*math.Pi*float64(u.revolutions)
}

// Revolutions is the signed number of seam crossings seen so far.
func (u *HeadingUnwrapper) Revolutions() int {
	return u.revolutions
}

// Previous is the last raw heading recorded.
func (u *HeadingUnwrapper) Previous() float64 {
	return u.previous
}
