package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/payitonchain/paygate/internal/config"
	intentdomain "github.com/payitonchain/paygate/internal/intent/domain"
	merchantdomain "github.com/payitonchain/paygate/internal/merchant/domain"
	"github.com/payitonchain/paygate/internal/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config    config.Config
	Log       *zap.Logger
	Merchants merchantdomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

// Dispatcher delivers completed payment intents to merchant webhook
// endpoints. Jobs carry the full intent snapshot, so redelivery after a
// crash needs no database read beyond the merchant lookup.
type Dispatcher struct {
	log       *zap.Logger
	merchants merchantdomain.Service
	client    *http.Client
	metrics   *metrics.Metrics
}

func New(p Params) *Dispatcher {
	return &Dispatcher{
		log:       p.Log.Named("webhook"),
		merchants: p.Merchants,
		client:    &http.Client{Timeout: p.Config.WebhookTimeout},
		metrics:   p.Metrics,
	}
}

// Handle delivers one completed intent. Any 2xx response acknowledges the
// delivery; everything else is an error so the queue retries with backoff.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte) error {
	var intent intentdomain.PaymentIntent
	if err := json.Unmarshal(payload, &intent); err != nil {
		d.log.Error("dropping undecodable webhook job", zap.Error(err))
		return nil
	}

	merchant, err := d.merchants.GetByID(ctx, intent.MerchantID)
	if err != nil {
		if errors.Is(err, merchantdomain.ErrNotFound) {
			// The merchant is gone; retrying cannot succeed.
			d.log.Warn("merchant missing, dropping webhook",
				zap.String("merchant_id", intent.MerchantID.String()),
				zap.String("intent_id", intent.ID.String()),
			)
			d.metrics.IncWebhookDelivery("dropped")
			return nil
		}
		return err
	}

	body, err := json.Marshal(intent)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, merchant.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		d.metrics.IncWebhookDelivery("error")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.metrics.IncWebhookDelivery("rejected")
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}

	d.metrics.IncWebhookDelivery("ok")
	d.log.Info("webhook delivered",
		zap.String("intent_id", intent.ID.String()),
		zap.String("merchant_id", merchant.ID.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
