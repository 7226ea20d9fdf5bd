package storage

import (
	"context"

	"github.com/vietddude/landplan/internal/core/domain"
)

// FailedCallRepository keeps a short-lived log of calls that ended in a
// terminal classified error.
type FailedCallRepository interface {
	// Add records a failed call
	Add(ctx context.Context, fc *domain.FailedCall) error

	// Recent returns up to limit records, newest first
	Recent(ctx context.Context, limit int) ([]*domain.FailedCall, error)
}
