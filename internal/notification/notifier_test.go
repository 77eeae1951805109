package notification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []BookingConfirmedEvent
	err    error
	block  chan struct{}
	closed bool
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, event BookingConfirmedEvent) error {
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return d.err
}

func (d *recordingDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func sampleEvent() BookingConfirmedEvent {
	return BookingConfirmedEvent{
		Recipient:      "budi@example.com",
		RecipientName:  "Budi",
		BookingCode:    "AB12CD34EF",
		MovieTitle:     "Inception",
		ShowDate:       "2030-01-01",
		ShowTime:       "19:00",
		Theater:        "Studio 1",
		Seats:          []string{"A1", "A2"},
		TotalPrice:     100000,
		CheckInPayload: "CINEMOX|AB12CD34EF|Inception|2030-01-01|19:00",
		ConfirmedAt:    time.Now(),
	}
}

func TestNotifierRendersImageAndDispatches(t *testing.T) {
	d := &recordingDispatcher{}
	n := NewNotifier(d, time.Second, zaptest.NewLogger(t))

	n.Notify(sampleEvent())
	if err := n.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	if len(d.events) != 1 {
		t.Fatalf("expected one dispatched event, got %d", len(d.events))
	}
	if !strings.HasPrefix(d.events[0].CheckInImage, "data:image/png;base64,") {
		t.Fatalf("expected a rendered check-in image")
	}
	if n.Failures() != 0 {
		t.Fatalf("expected no failures, got %d", n.Failures())
	}
}

func TestNotifierRecordsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := &recordingDispatcher{err: errors.New("broker unreachable")}
	n := NewNotifier(d, time.Second, zap.New(core))

	n.Notify(sampleEvent())
	n.Notify(sampleEvent())
	_ = n.Wait(context.Background())

	if n.Failures() != 2 {
		t.Fatalf("expected 2 failures, got %d", n.Failures())
	}
	entries := logs.FilterMessage("Booking confirmation not delivered").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 failure logs, got %d", len(entries))
	}
	if entries[0].ContextMap()["kind"] != "NOTIFICATION_FAILURE" {
		t.Fatalf("failure log should carry the notification kind: %v", entries[0].ContextMap())
	}
}

func TestNotifierTimesOutSlowDispatch(t *testing.T) {
	d := &recordingDispatcher{block: make(chan struct{})}
	n := NewNotifier(d, 20*time.Millisecond, zaptest.NewLogger(t))

	ev := sampleEvent()
	ev.CheckInImage = "data:image/png;base64,AAAA"
	n.Notify(ev)
	_ = n.Wait(context.Background())

	if n.Failures() != 1 {
		t.Fatalf("expected the timed out dispatch to count as a failure, got %d", n.Failures())
	}
}

func TestNotifierWaitHonoursContext(t *testing.T) {
	d := &recordingDispatcher{block: make(chan struct{})}
	n := NewNotifier(d, time.Minute, zaptest.NewLogger(t))
	n.Notify(sampleEvent())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := n.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	close(d.block)
	if err := n.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !d.closed {
		t.Fatalf("dispatcher should be closed")
	}
}

type panickingDispatcher struct{}

func (panickingDispatcher) Dispatch(context.Context, BookingConfirmedEvent) error { panic("boom") }
func (panickingDispatcher) Close() error                                          { return nil }

func TestNotifierSurvivesDispatcherPanic(t *testing.T) {
	n := NewNotifier(panickingDispatcher{}, time.Second, zaptest.NewLogger(t))
	n.Notify(sampleEvent())
	_ = n.Wait(context.Background())

	if n.Failures() != 1 {
		t.Fatalf("expected panic to be recorded as a failure, got %d", n.Failures())
	}
}

func TestLogDispatcher(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	d := NewLogDispatcher(zap.New(core))

	if err := d.Dispatch(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if logs.FilterField(zap.String("booking_code", "AB12CD34EF")).Len() != 1 {
		t.Fatalf("expected the event to be logged")
	}
}
