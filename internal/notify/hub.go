package notify

import (
	"errors"
	"strings"
	"sync"

	intentdomain "github.com/payitonchain/paygate/internal/intent/domain"
	"github.com/payitonchain/paygate/internal/metrics"
	"go.uber.org/fx"
)

const DefaultSubscriberBuffer = 16

// Hub maps payer addresses to at most one live subscription each. A new
// subscription from the same address evicts the prior one; producers from
// any goroutine may publish concurrently.
type Hub struct {
	mu               sync.RWMutex
	subs             map[string]*Subscription
	subscriberBuffer int
	metrics          *metrics.Metrics
}

type Subscription struct {
	hub     *Hub
	address string
	ch      chan intentdomain.PaymentIntent
	done    chan struct{}
	once    sync.Once
}

func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		subs:             make(map[string]*Subscription),
		subscriberBuffer: DefaultSubscriberBuffer,
		metrics:          m,
	}
}

// Subscribe registers address for live updates, evicting any prior
// subscription for the same address.
func (h *Hub) Subscribe(address string) (*Subscription, error) {
	if h == nil {
		return nil, errors.New("hub_unavailable")
	}
	key := normalizeKey(address)
	if key == "" {
		return nil, errors.New("invalid_address")
	}

	sub := &Subscription{
		hub:     h,
		address: key,
		ch:      make(chan intentdomain.PaymentIntent, h.subscriberBuffer),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	prev := h.subs[key]
	h.subs[key] = sub
	h.mu.Unlock()

	if prev != nil {
		prev.signalDone()
	} else {
		h.metrics.IncLiveSubscribers()
	}

	return sub, nil
}

// Publish delivers intent to the payer's subscription if one is active.
// Delivery is best-effort: a full buffer drops the message, the client
// recovers from the snapshot on reconnect.
func (h *Hub) Publish(address string, intent intentdomain.PaymentIntent) {
	if h == nil {
		return
	}
	key := normalizeKey(address)
	if key == "" {
		return
	}

	h.mu.RLock()
	sub := h.subs[key]
	h.mu.RUnlock()
	if sub == nil {
		return
	}

	select {
	case sub.ch <- intent:
	default:
	}
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	if h.subs[sub.address] == sub {
		delete(h.subs, sub.address)
		h.metrics.DecLiveSubscribers()
	}
	h.mu.Unlock()
}

// Events yields live intent updates. The channel is never closed; wait on
// Done to observe teardown or eviction.
func (s *Subscription) Events() <-chan intentdomain.PaymentIntent {
	if s == nil {
		return nil
	}
	return s.ch
}

// Done is closed when the subscription is evicted by a newer one or
// closed by its owner.
func (s *Subscription) Done() <-chan struct{} {
	if s == nil {
		return nil
	}
	return s.done
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.hub.unsubscribe(s)
	s.signalDone()
}

func (s *Subscription) signalDone() {
	s.once.Do(func() {
		close(s.done)
	})
}

func normalizeKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

var Module = fx.Module("notify",
	fx.Provide(NewHub),
)
