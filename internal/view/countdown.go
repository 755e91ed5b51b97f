package view

import (
	"context"
	"time"
)

// Countdown calls tick with the remaining time, first with total and then
// once per interval, ending with 0. It returns ctx.Err() if canceled first.
func Countdown(ctx context.Context, total, interval time.Duration, tick func(remaining time.Duration)) error {
	if interval <= 0 {
		interval = time.Second
	}
	remaining := total
	tick(remaining)
	if remaining <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			remaining -= interval
			if remaining < 0 {
				remaining = 0
			}
			tick(remaining)
			if remaining == 0 {
				return nil
			}
		}
	}
}
