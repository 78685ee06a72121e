package matcher

import (
	"context"
	"encoding/json"
	"strings"

	intentdomain "github.com/payitonchain/paygate/internal/intent/domain"
	"github.com/payitonchain/paygate/internal/metrics"
	"github.com/payitonchain/paygate/internal/signature"
	"github.com/payitonchain/paygate/internal/token"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Enqueuer hands completed intents to the webhook queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload []byte) error
}

// Publisher fans completion events out to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// TransferEvent is the fact emitted by the chain indexer. Amount is the
// raw integer in the token's smallest unit, string-encoded because it can
// exceed int64.
type TransferEvent struct {
	Hash      string `json:"hash"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Token     string `json:"token"`
	ChainID   int64  `json:"chainId"`
	Timestamp int64  `json:"timestamp"`
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Repo        intentdomain.Repository
	Tokens      *token.Registry
	Webhooks    Enqueuer
	Completions Publisher
	Metrics     *metrics.Metrics `optional:"true"`
}

// Matcher correlates transfer events with pending payment intents and
// completes each matched intent exactly once. It runs with multiple
// concurrent consumers over an at-least-once queue, so the guarded
// PENDING -> COMPLETED compare-and-set is what keeps the effect single.
type Matcher struct {
	db          *gorm.DB
	log         *zap.Logger
	repo        intentdomain.Repository
	tokens      *token.Registry
	webhooks    Enqueuer
	completions Publisher
	metrics     *metrics.Metrics
}

func New(p Params) *Matcher {
	return &Matcher{
		db:          p.DB,
		log:         p.Log.Named("matcher"),
		repo:        p.Repo,
		tokens:      p.Tokens,
		webhooks:    p.Webhooks,
		completions: p.Completions,
		metrics:     p.Metrics,
	}
}

// Handle processes one transfer event from the queue. It only returns an
// error when retrying can help (infrastructure failures); malformed or
// unmatched events are logged and dropped.
func (m *Matcher) Handle(ctx context.Context, payload []byte) error {
	m.metrics.IncTransferProcessed()

	var ev TransferEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		m.log.Warn("dropping malformed transfer event", zap.Error(err))
		return nil
	}

	tuple, ok := m.tupleFor(ev)
	if !ok {
		return nil
	}

	var completed *intentdomain.PaymentIntent
	err := m.db.Transaction(func(tx *gorm.DB) error {
		candidates, err := m.repo.FindPendingByTuple(ctx, tx, tuple)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			m.metrics.IncTransferUnmatched()
			m.log.Info("no pending intent for transfer, dropping",
				zap.String("hash", ev.Hash),
				zap.String("from", tuple.From),
				zap.String("to", tuple.To),
				zap.String("amount", tuple.Amount),
				zap.Int64("chain_id", tuple.ChainID),
			)
			return nil
		}
		if len(candidates) > 1 {
			// Should be impossible under the creation invariant; take the
			// oldest and flag the rest.
			m.log.Warn("multiple pending intents match one transfer",
				zap.Int("count", len(candidates)),
				zap.String("hash", ev.Hash),
			)
		}

		match := candidates[0]
		rows, err := m.repo.MarkCompleted(ctx, tx, match.ID, ev.Hash)
		if err != nil {
			return err
		}
		if rows == 0 {
			// A concurrent matcher or a cancel won the race; redelivery of
			// an already-settled event is a no-op, not an error.
			m.log.Info("intent no longer pending, skipping",
				zap.String("intent_id", match.ID.String()),
				zap.String("hash", ev.Hash),
			)
			return nil
		}

		match.Status = intentdomain.StatusCompleted
		match.TxHash = &ev.Hash

		body, err := json.Marshal(match)
		if err != nil {
			return err
		}
		// Enqueue inside the transaction: if the queue is down the
		// completion rolls back and the event is redelivered whole.
		if err := m.webhooks.Enqueue(ctx, body); err != nil {
			return err
		}

		completed = &match
		return nil
	})
	if err != nil {
		return err
	}
	if completed == nil {
		return nil
	}

	m.metrics.IncTransferMatched()
	m.log.Info("payment intent completed",
		zap.String("intent_id", completed.ID.String()),
		zap.String("hash", ev.Hash),
	)

	body, err := json.Marshal(completed)
	if err == nil {
		// Live updates are best-effort; webhook delivery is the durable path.
		if err := m.completions.Publish(ctx, body); err != nil {
			m.log.Warn("failed to publish completion event", zap.Error(err))
		}
	}

	return nil
}

func (m *Matcher) tupleFor(ev TransferEvent) (intentdomain.Tuple, bool) {
	from := signature.NormalizeAddress(ev.From)
	to := signature.NormalizeAddress(ev.To)
	tokenAddr := signature.NormalizeAddress(ev.Token)
	if from == "" || to == "" || tokenAddr == "" || strings.TrimSpace(ev.Hash) == "" || ev.ChainID <= 0 {
		m.log.Warn("dropping transfer event with invalid fields", zap.String("hash", ev.Hash))
		return intentdomain.Tuple{}, false
	}

	normalized, err := token.NormalizeRaw(ev.Amount, m.tokens.Decimals(tokenAddr))
	if err != nil {
		m.log.Warn("dropping transfer event with invalid amount",
			zap.String("hash", ev.Hash),
			zap.String("amount", ev.Amount),
		)
		return intentdomain.Tuple{}, false
	}

	return intentdomain.Tuple{
		From:    from,
		To:      to,
		Amount:  normalized,
		Token:   tokenAddr,
		ChainID: ev.ChainID,
	}, true
}
