package queue

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const completionChannel = "paygate:completions"

// CompletionPublisher fans completed intents out to live API processes.
// Pub/sub is fire-and-forget: there is no durable per-client outbox, a
// disconnected client catches up from the snapshot on reconnect.
type CompletionPublisher struct {
	client *redis.Client
	log    *zap.Logger
}

func NewCompletionPublisher(client *redis.Client, log *zap.Logger) *CompletionPublisher {
	return &CompletionPublisher{
		client: client,
		log:    log.Named("queue.completions"),
	}
}

func (p *CompletionPublisher) Publish(ctx context.Context, payload []byte) error {
	return p.client.Publish(ctx, completionChannel, payload).Err()
}

// CompletionSubscriber feeds completion payloads to a callback until ctx
// is cancelled.
type CompletionSubscriber struct {
	client *redis.Client
	log    *zap.Logger
}

func NewCompletionSubscriber(client *redis.Client, log *zap.Logger) *CompletionSubscriber {
	return &CompletionSubscriber{
		client: client,
		log:    log.Named("queue.completions.sub"),
	}
}

func (s *CompletionSubscriber) Run(ctx context.Context, fn func(payload []byte)) {
	sub := s.client.Subscribe(ctx, completionChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fn([]byte(msg.Payload))
		}
	}
}
