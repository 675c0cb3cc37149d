package cleanup

import (
	"context"
	"time"
)

// Scheduler invokes task periodically until ctx is done.
type Scheduler interface {
	Run(ctx context.Context, task func(context.Context))
}

// TickerScheduler runs task every Interval. The first run happens after one Interval.
type TickerScheduler struct {
	Interval time.Duration
}

// Run blocks until ctx is canceled. Ticks that arrive while task is still running are dropped by the ticker.
func (s TickerScheduler) Run(ctx context.Context, task func(context.Context)) {
	if s.Interval <= 0 {
		return
	}
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			task(ctx)
		}
	}
}
