package notification

import (
	"context"

	"go.uber.org/zap"
)

// Dispatcher hands one event to a delivery channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, event BookingConfirmedEvent) error
	Close() error
}

// LogDispatcher writes events to the log. Used when no broker is configured.
type LogDispatcher struct {
	log *zap.Logger
}

func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	return &LogDispatcher{log: log.With(zap.String("dispatcher", "log"))}
}

func (d *LogDispatcher) Dispatch(_ context.Context, event BookingConfirmedEvent) error {
	d.log.Info("Booking confirmed",
		zap.String("recipient", event.Recipient),
		zap.String("booking_code", event.BookingCode),
		zap.String("movie_title", event.MovieTitle),
		zap.String("show_date", event.ShowDate),
		zap.String("show_time", event.ShowTime),
		zap.String("theater", event.Theater),
		zap.Strings("seats", event.Seats),
		zap.Float64("total_price", event.TotalPrice),
		zap.Bool("has_checkin_image", event.CheckInImage != ""),
	)
	return nil
}

func (d *LogDispatcher) Close() error { return nil }
