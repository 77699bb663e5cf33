package jobs

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/suPer8Hu/devassist/internal/models"
	"github.com/suPer8Hu/devassist/internal/store"
)

// Runner executes a job and returns its JSON result.
type Runner interface {
	RunJob(ctx context.Context, j *models.Job) ([]byte, error)
}

type Worker struct {
	store       store.Jobs
	runner      Runner
	concurrency int
}

func NewWorker(st store.Jobs, r Runner, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = 2
	}
	return &Worker{store: st, runner: r, concurrency: concurrency}
}

// Run feeds deliveries to the pool until ctx is done or deliveries closes,
// then waits for in-flight jobs.
func (w *Worker) Run(ctx context.Context, deliveries <-chan Delivery) {
	jobs := make(chan Delivery, w.concurrency*2)

	var wg sync.WaitGroup
	wg.Add(w.concurrency)
	for i := 0; i < w.concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				w.process(ctx, workerID, d)
			}
		}(i)
	}

	defer func() {
		close(jobs)
		wg.Wait()
	}()

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("[worker] shutting down")
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Printf("[worker] delivery channel closed")
				return
			}
			jobs <- d
		}
	}
}

func (w *Worker) process(ctx context.Context, workerID int, d Delivery) {
	m, err := DecodeMessage(d.Body)
	if err != nil {
		log.Printf("[worker] worker=%d bad message: %v", workerID, err)
		_ = d.Nack()
		return
	}

	start := time.Now()
	if err := w.HandleJob(ctx, m.JobID); err != nil {
		log.Printf("[worker] worker=%d job %s failed cost=%s err=%v", workerID, m.JobID, time.Since(start), err)
		// a missing job row will not appear on redelivery
		if d.Retry == nil || errors.Is(err, store.ErrNotFound) {
			_ = d.Nack()
			return
		}
		if rerr := d.Retry(); rerr != nil {
			log.Printf("[worker] worker=%d retry failed job=%s err=%v", workerID, m.JobID, rerr)
			_ = d.Nack()
		}
		return
	}
	if err := d.Ack(); err != nil {
		log.Printf("[worker] worker=%d ack failed job=%s err=%v", workerID, m.JobID, err)
	}
}

// HandleJob marks the job running, runs it and records the outcome. Jobs
// that already finished are skipped.
func (w *Worker) HandleJob(ctx context.Context, jobID string) error {
	jobStart := time.Now()

	j, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return nil
	}
	if err := w.store.UpdateJobStatusRunning(ctx, jobID); err != nil {
		return err
	}

	t0 := time.Now()
	result, err := w.runner.RunJob(ctx, j)
	runCost := time.Since(t0)

	if err != nil {
		if markErr := w.store.MarkJobFailed(ctx, jobID, err.Error()); markErr != nil {
			log.Printf("[worker] job_timing_failed job=%s run=%s total=%s err=%v markErr=%v",
				jobID, runCost, time.Since(jobStart), err, markErr,
			)
			return markErr
		}
		log.Printf("[worker] job_failed job=%s kind=%s run=%s err=%v", jobID, j.Kind, runCost, err)
		// the outcome is recorded, so the message itself is done
		return nil
	}

	if err := w.store.MarkJobSucceeded(ctx, jobID, result); err != nil {
		log.Printf("[worker] job_timing_failed job=%s run=%s total=%s err=%v", jobID, runCost, time.Since(jobStart), err)
		return err
	}

	if total := time.Since(jobStart); total > 2*time.Second {
		log.Printf("[worker] job_timing job=%s kind=%s run=%s total=%s", jobID, j.Kind, runCost, total)
	}
	return nil
}
