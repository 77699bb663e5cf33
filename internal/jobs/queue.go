// Package jobs runs optimize and score requests in the background. A job row
// is written first, its ID is published on a Queue, and a Worker pool picks
// it up, runs it and records the outcome.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
)

var ErrQueueClosed = errors.New("queue closed")

// Message is the body published for every job.
type Message struct {
	JobID string `json:"job_id"`
}

func EncodeMessage(jobID string) ([]byte, error) {
	return json.Marshal(Message{JobID: jobID})
}

func DecodeMessage(body []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, err
	}
	if m.JobID == "" {
		return Message{}, errors.New("missing job_id")
	}
	return m, nil
}

// Delivery is one received message. Exactly one of Ack or Nack is called.
type Delivery struct {
	Body []byte
	Ack  func() error
	// Nack rejects the message without requeueing it.
	Nack func() error
	// Retry schedules a later redelivery and settles this one. nil means
	// the queue cannot retry and Nack is used instead.
	Retry func() error
}

type Publisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type Queue interface {
	Publisher
	// Consume returns the delivery stream. It is closed when the queue closes.
	Consume(ctx context.Context) (<-chan Delivery, error)
	Close() error
}

// ChanQueue is an in-process Queue on a buffered channel.
type ChanQueue struct {
	mu     sync.RWMutex
	ch     chan Delivery
	closed bool
}

func NewChanQueue(size int) *ChanQueue {
	if size <= 0 {
		size = 64
	}
	return &ChanQueue{ch: make(chan Delivery, size)}
}

func (q *ChanQueue) PublishJob(ctx context.Context, jobID string) error {
	body, err := EncodeMessage(jobID)
	if err != nil {
		return err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	d := Delivery{
		Body: body,
		Ack:  func() error { return nil },
		Nack: func() error {
			log.Printf("[jobs] dropped message job_id=%s", jobID)
			return nil
		},
	}
	select {
	case q.ch <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ChanQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	return q.ch, nil
}

func (q *ChanQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	return nil
}
