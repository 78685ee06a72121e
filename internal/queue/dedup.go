package queue

import (
	"context"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const dedupPrefix = "paygate:dedup:transfer:"

// Deduper rejects redelivered transfer events at the queue boundary.
// The indexer offers at-least-once delivery; the transaction hash is the
// identity of a transfer, so SET NX is enough.
type Deduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDeduperWithTTL(client *redis.Client, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Deduper{client: client, ttl: ttl}
}

// FirstSeen returns true exactly once per hash within the TTL window.
func (d *Deduper) FirstSeen(ctx context.Context, hash string) (bool, error) {
	key := dedupPrefix + strings.ToLower(strings.TrimSpace(hash))
	return d.client.SetNX(ctx, key, "1", d.ttl).Result()
}

// Forget releases a hash marked by FirstSeen. Callers use it to undo the
// mark when the work guarded by it never happened, so the indexer's next
// replay is accepted instead of answered as a duplicate.
func (d *Deduper) Forget(ctx context.Context, hash string) error {
	key := dedupPrefix + strings.ToLower(strings.TrimSpace(hash))
	return d.client.Del(ctx, key).Err()
}
