package notify

import (
	"context"
	"encoding/json"

	intentdomain "github.com/payitonchain/paygate/internal/intent/domain"
	"github.com/payitonchain/paygate/internal/queue"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Bridge pipes completion events published by the worker process into the
// in-process hub so SSE clients see them live.
type Bridge struct {
	sub *queue.CompletionSubscriber
	hub *Hub
	log *zap.Logger
}

func NewBridge(sub *queue.CompletionSubscriber, hub *Hub, log *zap.Logger) *Bridge {
	return &Bridge{
		sub: sub,
		hub: hub,
		log: log.Named("notify.bridge"),
	}
}

func (b *Bridge) Run(ctx context.Context) {
	b.sub.Run(ctx, func(payload []byte) {
		var intent intentdomain.PaymentIntent
		if err := json.Unmarshal(payload, &intent); err != nil {
			b.log.Warn("dropping malformed completion event", zap.Error(err))
			return
		}
		b.hub.Publish(intent.From, intent)
	})
}

func registerBridge(lc fx.Lifecycle, bridge *Bridge) {
	var cancel context.CancelFunc
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				bridge.Run(ctx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}

// BridgeModule is wired only by the API process; workers publish, they
// never subscribe.
var BridgeModule = fx.Module("notify.bridge",
	fx.Provide(NewBridge),
	fx.Invoke(registerBridge),
)
