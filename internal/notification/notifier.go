package notification

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cinema-ticketing/pkg/apperror"
	"cinema-ticketing/pkg/utils"

	"go.uber.org/zap"
)

const defaultDispatchTimeout = 10 * time.Second

// Notifier dispatches events in the background. A failed dispatch is logged
// and counted; it is never retried and never reported to the caller.
type Notifier struct {
	dispatcher Dispatcher
	timeout    time.Duration
	log        *zap.Logger

	wg       sync.WaitGroup
	failures atomic.Int64
}

func NewNotifier(dispatcher Dispatcher, timeout time.Duration, log *zap.Logger) *Notifier {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Notifier{
		dispatcher: dispatcher,
		timeout:    timeout,
		log:        log.With(zap.String("component", "notifier")),
	}
}

// Notify returns immediately. The check-in image is rendered in the
// background when the event carries a payload but no image.
func (n *Notifier) Notify(event BookingConfirmedEvent) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliver(event)
	}()
}

func (n *Notifier) deliver(event BookingConfirmedEvent) {
	defer func() {
		if r := recover(); r != nil {
			n.fail(event, fmt.Errorf("dispatcher panic: %v", r))
		}
	}()

	if event.CheckInImage == "" && event.CheckInPayload != "" {
		image, err := utils.RenderCheckInQR(event.CheckInPayload)
		if err != nil {
			n.log.Warn("Failed to render check-in image",
				zap.Error(err),
				zap.String("booking_code", event.BookingCode),
			)
		}
		event.CheckInImage = image
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.dispatcher.Dispatch(ctx, event); err != nil {
		n.fail(event, err)
	}
}

func (n *Notifier) fail(event BookingConfirmedEvent, err error) {
	n.failures.Add(1)
	n.log.Warn("Booking confirmation not delivered",
		zap.Error(apperror.Notification(err)),
		zap.String("kind", string(apperror.KindNotification)),
		zap.String("booking_code", event.BookingCode),
		zap.String("recipient", event.Recipient),
	)
}

// Failures reports how many dispatches have failed since start.
func (n *Notifier) Failures() int64 {
	return n.failures.Load()
}

// Wait blocks until in-flight dispatches finish or ctx ends.
func (n *Notifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close waits for in-flight dispatches and closes the dispatcher.
func (n *Notifier) Close(ctx context.Context) error {
	if err := n.Wait(ctx); err != nil {
		n.log.Warn("Notifier closed with dispatches in flight", zap.Error(err))
	}
	return n.dispatcher.Close()
}
