package jobs

import (
	"context"
	"fmt"
	"sync"
)

// MaxIdempotencyKeyLen bounds the Idempotency-Key header.
const MaxIdempotencyKeyLen = 128

// Idempotency maps (user, key) to the first job submitted with it.
type Idempotency interface {
	// Reserve records jobID for the key unless one is already recorded.
	// It returns the recorded job ID and whether this call recorded it.
	Reserve(ctx context.Context, userID uint64, key, jobID string) (string, bool, error)
	// Release forgets the key, so a failed submission can be retried.
	Release(ctx context.Context, userID uint64, key string) error
}

func idempotencyKey(userID uint64, key string) string {
	return fmt.Sprintf("idem:job:%d:%s", userID, key)
}

type MemIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func NewMemIdempotency() *MemIdempotency {
	return &MemIdempotency{keys: map[string]string{}}
}

func (m *MemIdempotency) Reserve(ctx context.Context, userID uint64, key, jobID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := idempotencyKey(userID, key)
	if existing, ok := m.keys[k]; ok {
		return existing, false, nil
	}
	m.keys[k] = jobID
	return jobID, true, nil
}

func (m *MemIdempotency) Release(ctx context.Context, userID uint64, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, idempotencyKey(userID, key))
	return nil
}
