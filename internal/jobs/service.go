package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/suPer8Hu/devassist/internal/common"
	"github.com/suPer8Hu/devassist/internal/models"
	"github.com/suPer8Hu/devassist/internal/store"
)

// defaultPendingWait bounds how long a duplicate submission waits for the
// first submission's job row to appear.
const defaultPendingWait = 500 * time.Millisecond

type Service struct {
	store       store.Jobs
	queue       Publisher
	idem        Idempotency
	pendingWait time.Duration
}

func NewService(st store.Jobs, q Publisher, idem Idempotency) *Service {
	if idem == nil {
		idem = NewMemIdempotency()
	}
	return &Service{store: st, queue: q, idem: idem, pendingWait: defaultPendingWait}
}

// SubmitRequest describes one async job. IdempotencyKey is optional.
type SubmitRequest struct {
	Kind           models.JobKind
	Code           string
	Language       string
	SnippetID      *uint64
	IdempotencyKey string
}

// Submit creates a queued job and publishes it. A request repeating an
// earlier idempotency key returns the earlier job with created=false and
// publishes nothing.
func (s *Service) Submit(ctx context.Context, userID uint64, req SubmitRequest) (*models.Job, bool, error) {
	key := strings.TrimSpace(req.IdempotencyKey)
	if len(key) > MaxIdempotencyKeyLen {
		return nil, false, fmt.Errorf("idempotency key too long: %w", store.ErrInvalid)
	}
	if req.Kind != models.JobOptimize && req.Kind != models.JobScore {
		return nil, false, fmt.Errorf("job kind %q: %w", req.Kind, store.ErrInvalid)
	}
	if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.Language) == "" {
		return nil, false, fmt.Errorf("code and language are required: %w", store.ErrInvalid)
	}

	jobID, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}

	var keyPtr *string
	if key != "" {
		existing, reserved, err := s.idem.Reserve(ctx, userID, key, jobID)
		if err != nil {
			return nil, false, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if !reserved {
			j, err := s.existingJob(ctx, existing)
			if err != nil {
				return nil, false, err
			}
			return j, false, nil
		}
		keyPtr = &key
	}

	j := &models.Job{
		ID:             jobID,
		UserID:         userID,
		Kind:           req.Kind,
		Code:           req.Code,
		Language:       req.Language,
		SnippetID:      req.SnippetID,
		IdempotencyKey: keyPtr,
		Status:         models.JobQueued,
	}
	if err := s.store.CreateJob(ctx, j); err != nil {
		s.release(ctx, userID, key)
		return nil, false, err
	}

	if err := s.queue.PublishJob(ctx, j.ID); err != nil {
		log.Printf("[jobs] publish failed uid=%d job_id=%s err=%v", userID, j.ID, err)
		_ = s.store.MarkJobFailed(ctx, j.ID, "enqueue failed")
		s.release(ctx, userID, key)
		return nil, false, fmt.Errorf("enqueue job %s: %w", j.ID, err)
	}
	return j, true, nil
}

// existingJob loads the job a repeated key points at. The first submission
// may not have written its row yet, so a missing job is retried until
// pendingWait runs out and then reported as ErrConflict.
func (s *Service) existingJob(ctx context.Context, id string) (*models.Job, error) {
	deadline := time.Now().Add(s.pendingWait)
	for {
		j, err := s.store.GetJob(ctx, id)
		if err == nil {
			return j, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("a request with this idempotency key is still being processed: %w", store.ErrConflict)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (s *Service) release(ctx context.Context, userID uint64, key string) {
	if key == "" {
		return
	}
	if err := s.idem.Release(ctx, userID, key); err != nil {
		log.Printf("[jobs] release idempotency key failed uid=%d err=%v", userID, err)
	}
}

// Get hides other users' jobs behind ErrNotFound.
func (s *Service) Get(ctx context.Context, userID uint64, id string) (*models.Job, error) {
	j, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.UserID != userID {
		return nil, fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	return j, nil
}
