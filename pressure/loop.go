package pressure

import (
	"context"
	"time"
)

// every calls fn each time interval elapses after the previous call returned,
// until ctx is done. The timer is re-armed only once fn has finished, so a
// slow fn stretches the spacing instead of stacking up calls.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		fn(ctx)
		timer.Reset(interval)
	}
}
