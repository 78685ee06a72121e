package webhook

import (
	"context"

	"github.com/payitonchain/paygate/internal/config"
	"github.com/payitonchain/paygate/internal/metrics"
	"github.com/payitonchain/paygate/internal/queue"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("webhook",
	fx.Provide(New),
	fx.Invoke(registerConsumer),
)

type consumerParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Config     config.Config
	Log        *zap.Logger
	Queue      queue.WebhookQueue
	Dispatcher *Dispatcher
	Metrics    *metrics.Metrics `optional:"true"`
}

func registerConsumer(p consumerParams) {
	consumer := queue.NewConsumer(p.Queue.Queue, p.Dispatcher.Handle, p.Config.WebhookWorkers, p.Metrics)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			p.Log.Info("starting webhook consumers", zap.Int("workers", p.Config.WebhookWorkers))
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
