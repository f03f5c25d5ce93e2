package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupStore records webhook event ids with SET NX so duplicate deliveries of
// the same billing event are detected and dropped.
type DedupStore struct {
	client redis.UniversalClient
	prefix string
}

// NewDedupStore creates a dedup store with the default key prefix.
func NewDedupStore(client redis.UniversalClient) *DedupStore {
	return &DedupStore{client: client, prefix: "authd:webhook:"}
}

// MarkProcessed atomically records the event id. Returns true when this
// delivery is the first, false when the id was already claimed.
func (d *DedupStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if eventID == "" {
		return false, fmt.Errorf("event id cannot be empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	ok, err := d.client.SetNX(ctx, d.prefix+eventID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}
