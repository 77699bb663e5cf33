package rabbitmq

import (
	"context"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/devassist/internal/jobs"
)

// Consume opens a dedicated channel with prefetch set to concurrency and
// adapts its deliveries. The stream ends when ctx is done or the broker
// closes the channel.
func (q *Queue) Consume(ctx context.Context) (<-chan jobs.Delivery, error) {
	return q.ConsumeN(ctx, 1)
}

func (q *Queue) ConsumeN(ctx context.Context, concurrency int) (<-chan jobs.Delivery, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbit channel: %w", err)
	}
	// strict concurrency control
	if err := ch.Qos(concurrency, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("qos: %w", err)
	}
	msgs, err := ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume %s: %w", q.queue, err)
	}

	out := make(chan jobs.Delivery)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- q.adapt(d):
				case <-ctx.Done():
					// unacked messages return to the queue when the channel closes
					return
				}
			}
		}
	}()
	return out, nil
}

const (
	// MaxRetries bounds trips through the retry queue before a message is dead-lettered.
	MaxRetries = 3
	// RetryDelay is the first redelivery delay; it doubles on every attempt.
	RetryDelay = 2 * time.Second

	retryHeader = "x-retry-count"
)

func (q *Queue) adapt(d amqp.Delivery) jobs.Delivery {
	return jobs.Delivery{
		Body:  d.Body,
		Ack:   func() error { return d.Ack(false) },
		Nack:  func() error { return d.Nack(false, false) },
		Retry: func() error { return q.retry(d) },
	}
}

func retryCount(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func retryDelay(attempt int) time.Duration {
	return RetryDelay << attempt
}

// retry republishes d to the retry queue with a per-message TTL. When the TTL
// expires the broker dead-letters it back onto the main queue. Messages that
// used up MaxRetries go to the DLQ instead.
func (q *Queue) retry(d amqp.Delivery) error {
	n := retryCount(d.Headers)
	if n >= MaxRetries {
		return d.Nack(false, false)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	q.mu.Lock()
	err := q.ch.PublishWithContext(ctx,
		"",
		RetryQueue(q.queue),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         d.Body,
			Timestamp:    time.Now(),
			Expiration:   strconv.FormatInt(retryDelay(n).Milliseconds(), 10),
			Headers:      amqp.Table{retryHeader: int32(n + 1)},
		},
	)
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", RetryQueue(q.queue), err)
	}
	return d.Ack(false)
}
