package queue

import (
	"github.com/payitonchain/paygate/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Distinct wrapper types so fx can tell the two queues apart.

type TransferQueue struct{ *Queue }

type WebhookQueue struct{ *Queue }

func NewTransferQueue(client *redis.Client, cfg config.Config, log *zap.Logger) TransferQueue {
	return TransferQueue{New(client, TransferQueueName, Options{
		MaxAttempts: cfg.TransferMaxAttempts,
		BackoffBase: cfg.TransferBackoffBase,
	}, log)}
}

func NewWebhookQueue(client *redis.Client, cfg config.Config, log *zap.Logger) WebhookQueue {
	return WebhookQueue{New(client, WebhookQueueName, Options{
		MaxAttempts: cfg.WebhookMaxAttempts,
		BackoffBase: cfg.WebhookBackoffBase,
	}, log)}
}

func NewDeduper(client *redis.Client, cfg config.Config) *Deduper {
	return NewDeduperWithTTL(client, cfg.DedupTTL)
}

var Module = fx.Module("queue",
	fx.Provide(NewTransferQueue),
	fx.Provide(NewWebhookQueue),
	fx.Provide(NewDeduper),
	fx.Provide(NewCompletionPublisher),
	fx.Provide(NewCompletionSubscriber),
)
