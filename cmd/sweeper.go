package cmd

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ScheduleSweeper is the background job that retires past showtimes.
type ScheduleSweeper interface {
	DeactivatePast(ctx context.Context) (int64, error)
}

// RunScheduleSweeper calls DeactivatePast every interval until ctx ends.
// A non-positive interval disables the sweeper.
func RunScheduleSweeper(ctx context.Context, sweeper ScheduleSweeper, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		logger.Info("Schedule sweeper disabled")
		return
	}

	log := logger.With(zap.String("job", "schedule-sweeper"))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sweeper.DeactivatePast(ctx); err != nil && ctx.Err() == nil {
				log.Error("Failed to deactivate past schedules", zap.Error(err))
			}
		}
	}
}
