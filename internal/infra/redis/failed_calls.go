package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vietddude/landplan/internal/core/domain"
)

const (
	// DefaultFailedCallTTL is how long records are kept.
	DefaultFailedCallTTL = 24 * time.Hour
	// DefaultFailedCallMax caps the log length.
	DefaultFailedCallMax = 500
)

// FailedCallRepo implements storage.FailedCallRepository using Redis.
type FailedCallRepo struct {
	rdb       *redis.Client
	namespace string
	ttl       time.Duration
	max       int64
}

// NewFailedCallRepo creates a new Redis-backed failed call log.
func NewFailedCallRepo(client *Client, namespace string) *FailedCallRepo {
	return &FailedCallRepo{
		rdb:       client.rdb,
		namespace: namespace,
		ttl:       DefaultFailedCallTTL,
		max:       DefaultFailedCallMax,
	}
}

// Key helpers
func (r *FailedCallRepo) listKey() string {
	return fmt.Sprintf("failed_calls:%s", r.namespace)
}

func (r *FailedCallRepo) callKey(id string) string {
	return fmt.Sprintf("failed_call:%s:%s", r.namespace, id)
}

// Add stores the record and pushes its ID onto the newest-first list.
func (r *FailedCallRepo) Add(ctx context.Context, fc *domain.FailedCall) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("failed to marshal failed call: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.callKey(fc.ID), data, r.ttl)
	pipe.LPush(ctx, r.listKey(), fc.ID)
	pipe.LTrim(ctx, r.listKey(), 0, r.max-1)
	pipe.Expire(ctx, r.listKey(), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store failed call: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first. IDs whose record has
// expired are skipped and pruned from the list.
func (r *FailedCallRepo) Recent(ctx context.Context, limit int) ([]*domain.FailedCall, error) {
	if limit <= 0 {
		limit = int(r.max)
	}

	ids, err := r.rdb.LRange(ctx, r.listKey(), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.callKey(id)
	}
	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget failed: %w", err)
	}

	out := make([]*domain.FailedCall, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// Data expired but ID still in list, remove it
			r.rdb.LRem(ctx, r.listKey(), 0, ids[i])
			continue
		}
		var fc domain.FailedCall
		if err := json.Unmarshal([]byte(s), &fc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal failed call %s: %w", ids[i], err)
		}
		out = append(out, &fc)
	}
	return out, nil
}
