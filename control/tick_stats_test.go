package control

import (
	"testing"
	"time"

	"go.viam.com/test"
)

func TestTickStatsBounded(t *testing.T) {
	var ts tickStats
	test.That(t, ts.fields(), test.ShouldBeNil)

	for i := 1; i <= 3*recentTicks; i++ {
		ts.add(time.Duration(i) * time.Millisecond)
	}
	test.That(t, ts.count, test.ShouldEqual, 3*recentTicks)
	test.That(t, len(ts.recent), test.ShouldEqual, recentTicks)
	test.That(t, cap(ts.recent), test.ShouldBeLessThanOrEqualTo, 2*recentTicks)

	fields := ts.fields()
	test.That(t, fields, test.ShouldHaveLength, 6)
	test.That(t, fields[1], test.ShouldAlmostEqual, float64(3*recentTicks+1)/2)
	test.That(t, fields[5], test.ShouldEqual, float64(3*recentTicks))
	// only the last window contributes to the percentile
	test.That(t, fields[3], test.ShouldBeGreaterThan, float64(2*recentTicks))
}
