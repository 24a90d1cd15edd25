package utils

import (
	"context"
	"time"

	goutils "go.viam.com/utils"

	"github.com/rcognita/turtlenav/logging"
)

// SlowLogger starts a goroutine that warns with msg every few seconds until the returned function
// is called or ctx is done. The first warning comes after initial, later ones back off to
// 5*initial/2.
func SlowLogger(ctx context.Context, initial time.Duration, msg string, logger logging.Logger, keysAndValues ...interface{}) func() {
	slowTicker := time.NewTicker(initial)
	firstTick := true

	ctxWithCancel, cancel := context.WithCancel(ctx)
	startTime := time.Now()
	goutils.PanicCapturingGo(func() {
		for {
			select {
			case <-slowTicker.C:
				elapsed := time.Since(startTime).Round(time.Millisecond).String()
				logger.Warnw(msg, append(keysAndValues, "time_elapsed", elapsed)...)
				if firstTick {
					slowTicker.Reset(initial * 5 / 2)
					firstTick = false
				}
			case <-ctxWithCancel.Done():
				return
			}
		}
	})
	return func() { slowTicker.Stop(); cancel() }
}
