package matcher

import (
	"context"

	"github.com/payitonchain/paygate/internal/config"
	"github.com/payitonchain/paygate/internal/metrics"
	"github.com/payitonchain/paygate/internal/queue"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("matcher",
	fx.Provide(
		func(q queue.WebhookQueue) Enqueuer { return q },
		func(p *queue.CompletionPublisher) Publisher { return p },
		New,
	),
	fx.Invoke(registerConsumer),
)

type consumerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	Queue     queue.TransferQueue
	Matcher   *Matcher
	Metrics   *metrics.Metrics `optional:"true"`
}

func registerConsumer(p consumerParams) {
	consumer := queue.NewConsumer(p.Queue.Queue, p.Matcher.Handle, p.Config.MatcherWorkers, p.Metrics)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			p.Log.Info("starting transfer consumers", zap.Int("workers", p.Config.MatcherWorkers))
			go func() {
				defer close(done)
				consumer.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
