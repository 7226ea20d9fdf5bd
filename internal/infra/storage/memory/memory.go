package memory

import (
	"context"
	"sync"

	"github.com/vietddude/landplan/internal/core/domain"
)

// DefaultFailedCallCapacity bounds the in-memory failure log.
const DefaultFailedCallCapacity = 200

// FailedCallRepo is an in-memory ring of failed calls.
type FailedCallRepo struct {
	mu       sync.RWMutex
	calls    []*domain.FailedCall
	capacity int
}

// NewFailedCallRepo creates a repo keeping at most capacity records.
func NewFailedCallRepo(capacity int) *FailedCallRepo {
	if capacity <= 0 {
		capacity = DefaultFailedCallCapacity
	}
	return &FailedCallRepo{
		calls:    make([]*domain.FailedCall, 0, capacity),
		capacity: capacity,
	}
}

func (r *FailedCallRepo) Add(ctx context.Context, fc *domain.FailedCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.calls) >= r.capacity {
		// Shift elements left, drop oldest
		copy(r.calls, r.calls[1:])
		r.calls[len(r.calls)-1] = fc
		return nil
	}
	r.calls = append(r.calls, fc)
	return nil
}

func (r *FailedCallRepo) Recent(ctx context.Context, limit int) ([]*domain.FailedCall, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.calls) {
		limit = len(r.calls)
	}

	out := make([]*domain.FailedCall, 0, limit)
	for i := len(r.calls) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.calls[i])
	}
	return out, nil
}
