package lock

import (
	"context"
	"fmt"

	warperrors "github.com/mirkobrombin/go-warp-sync/v1/errors"
	"github.com/mirkobrombin/go-warp-sync/v1/metrics"
)

// poll calls attempt until it succeeds, fails, or the wait budget runs out.
// The budget is checked before it is charged, so a timeout of t allows
// t/interval sleeps.
func poll(ctx context.Context, o options, w waitOptions, key string, attempt func(context.Context) (bool, error)) error {
	start := o.clock.Now()
	budget := w.timeout
	waiting := false
	defer func() {
		if waiting {
			metrics.WaitersGauge.Dec()
		}
	}()

	for {
		ok, err := attempt(ctx)
		if err != nil {
			return err
		}
		if ok {
			if waiting {
				metrics.AcquireWaitHistogram.Observe(o.clock.Since(start).Seconds())
			}
			return nil
		}

		if w.bounded {
			if budget <= 0 {
				metrics.AcquireTimeoutCounter.Inc()
				o.logger.Debug("warp: wait timed out", "key", key, "timeout", w.timeout)
				return fmt.Errorf("%w: waited %s on %q", warperrors.ErrTimeout, w.timeout, key)
			}
			budget -= o.pollInterval
		}

		if !waiting {
			waiting = true
			metrics.WaitersGauge.Inc()
			o.logger.Debug("warp: waiting", "key", key, "interval", o.pollInterval)
		}

		select {
		case <-o.clock.After(o.pollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
