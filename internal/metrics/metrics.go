package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Metrics holds the service counters. All methods are nil-safe so
// components can run without metrics wired (tests).
type Metrics struct {
	transfersProcessed prometheus.Counter
	transfersMatched   prometheus.Counter
	transfersUnmatched prometheus.Counter
	transfersDuplicate prometheus.Counter

	webhookDeliveries *prometheus.CounterVec
	queueRetries      *prometheus.CounterVec
	queueDeadLetters  *prometheus.CounterVec

	liveSubscribers prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		transfersProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "paygate_transfers_processed_total",
			Help: "Transfer events consumed from the matching queue.",
		}),
		transfersMatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "paygate_transfers_matched_total",
			Help: "Transfer events that completed a pending payment intent.",
		}),
		transfersUnmatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "paygate_transfers_unmatched_total",
			Help: "Transfer events with no pending intent, dropped.",
		}),
		transfersDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Name: "paygate_transfers_duplicate_total",
			Help: "Transfer events rejected by hash deduplication.",
		}),
		webhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paygate_webhook_deliveries_total",
			Help: "Webhook delivery attempts by result.",
		}, []string{"result"}),
		queueRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paygate_queue_retries_total",
			Help: "Jobs rescheduled for retry by queue.",
		}, []string{"queue"}),
		queueDeadLetters: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paygate_queue_dead_letters_total",
			Help: "Jobs moved to the dead-letter list by queue.",
		}, []string{"queue"}),
		liveSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "paygate_live_subscribers",
			Help: "Active live-update subscriptions.",
		}),
	}
}

func (m *Metrics) IncTransferProcessed() {
	if m == nil {
		return
	}
	m.transfersProcessed.Inc()
}

func (m *Metrics) IncTransferMatched() {
	if m == nil {
		return
	}
	m.transfersMatched.Inc()
}

func (m *Metrics) IncTransferUnmatched() {
	if m == nil {
		return
	}
	m.transfersUnmatched.Inc()
}

func (m *Metrics) IncTransferDuplicate() {
	if m == nil {
		return
	}
	m.transfersDuplicate.Inc()
}

func (m *Metrics) IncWebhookDelivery(result string) {
	if m == nil {
		return
	}
	m.webhookDeliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) IncQueueRetry(queue string) {
	if m == nil {
		return
	}
	m.queueRetries.WithLabelValues(queue).Inc()
}

func (m *Metrics) IncQueueDeadLetter(queue string) {
	if m == nil {
		return
	}
	m.queueDeadLetters.WithLabelValues(queue).Inc()
}

func (m *Metrics) IncLiveSubscribers() {
	if m == nil {
		return
	}
	m.liveSubscribers.Inc()
}

func (m *Metrics) DecLiveSubscribers() {
	if m == nil {
		return
	}
	m.liveSubscribers.Dec()
}

func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func provideRegisterer(reg *prometheus.Registry) prometheus.Registerer {
	return reg
}

var Module = fx.Module("metrics",
	fx.Provide(NewRegistry),
	fx.Provide(provideRegisterer),
	fx.Provide(New),
)
