package rabbitmq

import (
	"context"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/devassist/internal/jobs"
)

func TestQueueNames(t *testing.T) {
	if RetryQueue("code_jobs") != "code_jobs.retry" || DeadLetterQueue("code_jobs") != "code_jobs.dlq" {
		t.Fatalf("unexpected queue names")
	}
}

func TestAdapt(t *testing.T) {
	q := &Queue{queue: "code_jobs"}
	d := q.adapt(amqp.Delivery{Body: []byte(`{"job_id":"abc"}`)})
	m, err := jobs.DecodeMessage(d.Body)
	if err != nil || m.JobID != "abc" {
		t.Fatalf("decode: %+v %v", m, err)
	}
	if d.Retry == nil {
		t.Fatalf("rabbit deliveries must support retry")
	}
}

func TestRetryBackoff(t *testing.T) {
	cases := []struct {
		headers amqp.Table
		want    int
	}{
		{nil, 0},
		{amqp.Table{retryHeader: int32(2)}, 2},
		{amqp.Table{retryHeader: int64(1)}, 1},
		{amqp.Table{retryHeader: "x"}, 0},
	}
	for _, tc := range cases {
		if got := retryCount(tc.headers); got != tc.want {
			t.Errorf("retryCount(%v) = %d, want %d", tc.headers, got, tc.want)
		}
	}
	if retryDelay(0) != RetryDelay || retryDelay(2) != 4*RetryDelay {
		t.Fatalf("unexpected backoff %s %s", retryDelay(0), retryDelay(2))
	}
}

// Needs a live broker; set RABBIT_TEST_URL to run.
func TestPublishConsume(t *testing.T) {
	url := os.Getenv("RABBIT_TEST_URL")
	if url == "" {
		t.Skip("RABBIT_TEST_URL not set")
	}
	q, err := Dial(url, "devassist_test_jobs")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	deliveries, err := q.ConsumeN(ctx, 1)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := q.PublishJob(ctx, "job-1"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case d := <-deliveries:
		m, err := jobs.DecodeMessage(d.Body)
		if err != nil || m.JobID != "job-1" {
			t.Fatalf("unexpected message %s", d.Body)
		}
		_ = d.Ack()
	case <-ctx.Done():
		t.Fatalf("no delivery")
	}
}

// Needs a live broker; set RABBIT_TEST_URL to run.
func TestRetryRedelivers(t *testing.T) {
	url := os.Getenv("RABBIT_TEST_URL")
	if url == "" {
		t.Skip("RABBIT_TEST_URL not set")
	}
	q, err := Dial(url, "devassist_test_retry")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), RetryDelay+5*time.Second)
	defer cancel()

	deliveries, err := q.ConsumeN(ctx, 1)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := q.PublishJob(ctx, "job-retry"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	first := <-deliveries
	if err := first.Retry(); err != nil {
		t.Fatalf("retry: %v", err)
	}
	select {
	case d := <-deliveries:
		m, err := jobs.DecodeMessage(d.Body)
		if err != nil || m.JobID != "job-retry" {
			t.Fatalf("unexpected message %s", d.Body)
		}
		_ = d.Ack()
	case <-ctx.Done():
		t.Fatalf("message did not come back from the retry queue")
	}
}
