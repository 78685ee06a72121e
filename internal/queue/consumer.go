package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/payitonchain/paygate/internal/metrics"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Handler processes one job payload. A nil return acknowledges the job;
// an error reschedules it until attempts are exhausted. Handlers must be
// idempotent: delivery is at-least-once.
type Handler func(ctx context.Context, payload []byte) error

// jobStore is the slice of Queue the consumer mutates on each outcome.
// Split from Queue so the ack/retry/dead-letter decision runs under test
// without a live Redis.
type jobStore interface {
	ack(ctx context.Context, raw string) error
	scheduleRetry(ctx context.Context, raw, reraw string, delay time.Duration) error
	deadLetter(ctx context.Context, raw, reraw string) error
}

type Consumer struct {
	queue   *Queue
	store   jobStore
	handler Handler
	workers int
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewConsumer(q *Queue, handler Handler, workers int, m *metrics.Metrics) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		queue:   q,
		store:   q,
		handler: handler,
		workers: workers,
		log:     q.log.Named("consumer"),
		metrics: m,
	}
}

// Run blocks draining the queue until ctx is cancelled, then waits for
// in-flight jobs to finish.
func (c *Consumer) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.promote(ctx)
	}()

	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.work(ctx)
		}()
	}

	wg.Wait()
}

func (c *Consumer) work(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		raw, err := c.queue.client.BLMove(ctx,
			c.queue.pendingKey(), c.queue.processingKey(),
			"RIGHT", "LEFT",
			5*time.Second,
		).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			c.log.Error("queue poll failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		c.process(ctx, raw)
	}
}

func (c *Consumer) process(ctx context.Context, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// Nothing to retry: the envelope itself is unreadable.
		c.log.Error("dropping corrupt job envelope", zap.Error(err))
		if err := c.store.ack(ctx, raw); err != nil {
			c.log.Error("failed to drop corrupt job", zap.Error(err))
		}
		return
	}

	handlerErr := c.handler(ctx, job.Payload)
	if handlerErr == nil {
		if err := c.store.ack(ctx, raw); err != nil {
			c.log.Error("failed to ack job", zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}

	job.Attempts++
	reraw, err := json.Marshal(job)
	if err != nil {
		c.log.Error("failed to re-marshal job", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	if job.Attempts >= c.queue.opts.MaxAttempts {
		if err := c.store.deadLetter(ctx, raw, string(reraw)); err != nil {
			c.log.Error("failed to dead-letter job", zap.String("job_id", job.ID), zap.Error(err))
			return
		}
		c.metrics.IncQueueDeadLetter(c.queue.name)
		c.log.Error("job exhausted retries, dead-lettered",
			zap.String("job_id", job.ID),
			zap.Int("attempts", job.Attempts),
			zap.Error(handlerErr),
		)
		return
	}

	delay := c.queue.backoff(job.Attempts)
	if err := c.store.scheduleRetry(ctx, raw, string(reraw), delay); err != nil {
		c.log.Error("failed to reschedule job", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	c.metrics.IncQueueRetry(c.queue.name)
	c.log.Warn("job failed, scheduled for retry",
		zap.String("job_id", job.ID),
		zap.Int("attempts", job.Attempts),
		zap.Duration("delay", delay),
		zap.Error(handlerErr),
	)
}

// promote moves due delayed jobs back onto the pending list. ZRem is the
// arbiter when multiple promoters race: only the remover requeues.
func (c *Consumer) promote(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := float64(time.Now().UnixMilli())
		due, err := c.queue.client.ZRangeByScore(ctx, c.queue.delayedKey(), &redis.ZRangeBy{
			Min:   "-inf",
			Max:   formatScore(now),
			Count: 100,
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				c.log.Error("failed to scan delayed jobs", zap.Error(err))
			}
			continue
		}

		for _, member := range due {
			removed, err := c.queue.client.ZRem(ctx, c.queue.delayedKey(), member).Result()
			if err != nil || removed == 0 {
				continue
			}
			if err := c.queue.client.LPush(ctx, c.queue.pendingKey(), member).Err(); err != nil {
				c.log.Error("failed to requeue delayed job", zap.Error(err))
			}
		}
	}
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
