package engine

import (
	"context"
	"log/slog"
	"time"
)

// nextWake returns the next instant at hour:minute in loc, rolling to
// tomorrow when today's slot has already passed.
func nextWake(now time.Time, hour, minute int, loc *time.Location) time.Time {
	now = now.In(loc)
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
	if !now.Before(target) {
		target = target.AddDate(0, 0, 1)
	}
	return target
}

// sleepUntil blocks until the next hour:minute in loc, sleeping in one-minute
// chunks so shutdown is observed promptly. Returns ctx.Err() on cancellation.
func sleepUntil(ctx context.Context, hour, minute int, loc *time.Location) error {
	target := nextWake(time.Now(), hour, minute, loc)
	slog.Info("sleeping until next exit check", "wake", target.Format("2006-01-02 15:04 MST"))
	for {
		remaining := time.Until(target)
		if remaining <= 0 {
			return nil
		}
		chunk := time.Minute
		if remaining < chunk {
			chunk = remaining
		}
		if err := waitFor(ctx, chunk); err != nil {
			return err
		}
	}
}

// waitFor sleeps for delay or until ctx is cancelled.
func waitFor(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
