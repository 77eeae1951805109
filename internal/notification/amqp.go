package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPDispatcher publishes events as persistent JSON messages to a durable
// queue on the default exchange. The connection is dialled on first use and
// re-dialled after the broker drops it.
type AMQPDispatcher struct {
	url   string
	queue string
	log   *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPDispatcher(url, queue string, log *zap.Logger) *AMQPDispatcher {
	if queue == "" {
		queue = BookingConfirmedQueue
	}
	return &AMQPDispatcher{
		url:   url,
		queue: queue,
		log:   log.With(zap.String("dispatcher", "amqp"), zap.String("queue", queue)),
	}
}

func (d *AMQPDispatcher) Dispatch(ctx context.Context, event BookingConfirmedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal booking event: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ch, err := d.channel()
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    event.BookingCode,
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", d.queue, false, false, pub); err != nil {
		d.reset()
		return fmt.Errorf("publish to %s: %w", d.queue, err)
	}

	d.log.Debug("Booking event published", zap.String("booking_code", event.BookingCode))
	return nil
}

// channel returns an open channel with the queue declared. Callers hold mu.
func (d *AMQPDispatcher) channel() (*amqp.Channel, error) {
	if d.ch != nil && !d.ch.IsClosed() {
		return d.ch, nil
	}

	if d.conn == nil || d.conn.IsClosed() {
		conn, err := amqp.Dial(d.url)
		if err != nil {
			return nil, fmt.Errorf("dial broker: %w", err)
		}
		d.conn = conn
		d.log.Info("Connected to broker")
	}

	ch, err := d.conn.Channel()
	if err != nil {
		d.reset()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(d.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		d.reset()
		return nil, fmt.Errorf("declare queue %s: %w", d.queue, err)
	}

	d.ch = ch
	return ch, nil
}

func (d *AMQPDispatcher) reset() {
	if d.ch != nil {
		_ = d.ch.Close()
		d.ch = nil
	}
	if d.conn != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
}

func (d *AMQPDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	if d.ch != nil {
		err = d.ch.Close()
		d.ch = nil
	}
	if d.conn != nil {
		if cerr := d.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
		d.conn = nil
	}
	return err
}
