package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	TransferQueueName = "transfers"
	WebhookQueueName  = "webhooks"

	keyPrefix = "paygate:q:"
)

// Job is the envelope carried on the wire. Attempts counts completed
// executions, so a job observed with Attempts == n has already failed n
// times.
type Job struct {
	ID         string          `json:"id"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Options controls the retry policy of a queue. Backoff grows
// exponentially from BackoffBase, capped at BackoffCap.
type Options struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 5 * time.Second
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = 10 * time.Minute
	}
	return o
}

// Queue is a Redis-list backed work queue with at-least-once delivery:
// jobs move pending -> processing under BLMOVE, are removed on success,
// rescheduled with backoff on failure, and parked on a dead-letter list
// once attempts are exhausted.
type Queue struct {
	name   string
	client *redis.Client
	opts   Options
	log    *zap.Logger
}

func New(client *redis.Client, name string, opts Options, log *zap.Logger) *Queue {
	return &Queue{
		name:   name,
		client: client,
		opts:   opts.withDefaults(),
		log:    log.Named("queue." + name),
	}
}

func (q *Queue) Name() string { return q.name }

func (q *Queue) pendingKey() string    { return keyPrefix + q.name + ":pending" }
func (q *Queue) processingKey() string { return keyPrefix + q.name + ":processing" }
func (q *Queue) delayedKey() string    { return keyPrefix + q.name + ":delayed" }
func (q *Queue) deadKey() string       { return keyPrefix + q.name + ":dead" }

// Enqueue adds a fresh job carrying payload.
func (q *Queue) Enqueue(ctx context.Context, payload []byte) error {
	job := Job{
		ID:         uuid.NewString(),
		EnqueuedAt: time.Now().UTC(),
		Payload:    payload,
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.pendingKey(), raw).Err()
}

// ack removes a delivered job from the processing list.
func (q *Queue) ack(ctx context.Context, raw string) error {
	return q.client.LRem(ctx, q.processingKey(), 1, raw).Err()
}

// scheduleRetry swaps the delivered envelope for its bumped copy on the
// delayed set, due after delay.
func (q *Queue) scheduleRetry(ctx context.Context, raw, reraw string, delay time.Duration) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.processingKey(), 1, raw)
	pipe.ZAdd(ctx, q.delayedKey(), redis.Z{
		Score:  float64(time.Now().Add(delay).UnixMilli()),
		Member: reraw,
	})
	_, err := pipe.Exec(ctx)
	return err
}

// deadLetter parks an exhausted job for manual inspection.
func (q *Queue) deadLetter(ctx context.Context, raw, reraw string) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.processingKey(), 1, raw)
	pipe.LPush(ctx, q.deadKey(), reraw)
	_, err := pipe.Exec(ctx)
	return err
}

// DeadLetterSize reports the number of jobs awaiting manual inspection.
func (q *Queue) DeadLetterSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.deadKey()).Result()
}

func (q *Queue) backoff(attempts int) time.Duration {
	d := q.opts.BackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= q.opts.BackoffCap {
			return q.opts.BackoffCap
		}
	}
	if d > q.opts.BackoffCap {
		return q.opts.BackoffCap
	}
	return d
}
