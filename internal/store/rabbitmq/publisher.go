// Package rabbitmq carries job IDs over RabbitMQ. Queue implements
// jobs.Queue for both the API process (publish) and the worker (consume).
package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/devassist/internal/jobs"
)

type Queue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	// publishes share one channel
	mu sync.Mutex
}

var _ jobs.Queue = (*Queue)(nil)

// Names of the queues declared for main.
func RetryQueue(main string) string { return main + ".retry" }
func DeadLetterQueue(main string) string { return main + ".dlq" }

func Dial(url, queue string) (*Queue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbit dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbit channel: %w", err)
	}
	if err := declare(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Queue{conn: conn, ch: ch, queue: queue}, nil
}

// declare sets up main, retry and dead-letter queues. Producer and consumer
// must agree on these arguments or the broker rejects the redeclare.
func declare(ch *amqp.Channel, mainQ string) error {
	retryQ := RetryQueue(mainQ)
	dlqQ := DeadLetterQueue(mainQ)

	// DLQ
	if _, err := ch.QueueDeclare(
		dlqQ,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare %s: %w", dlqQ, err)
	}

	// Retry queue: message TTL -> dead-letter back to main queue
	if _, err := ch.QueueDeclare(
		retryQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": mainQ,
		},
	); err != nil {
		return fmt.Errorf("declare %s: %w", retryQ, err)
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false)
	if _, err := ch.QueueDeclare(
		mainQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlqQ,
		},
	); err != nil {
		return fmt.Errorf("declare %s: %w", mainQ, err)
	}
	return nil
}

func (q *Queue) Close() error {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

func (q *Queue) PublishJob(ctx context.Context, jobID string) error {
	body, err := jobs.EncodeMessage(jobID)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ch.PublishWithContext(cctx,
		"",      // default exchange
		q.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
