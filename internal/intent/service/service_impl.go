package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/payitonchain/paygate/internal/intent/domain"
	"github.com/payitonchain/paygate/internal/signature"
	"github.com/payitonchain/paygate/internal/token"
	"github.com/payitonchain/paygate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("intent.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateIntentRequest) (domain.PaymentIntent, error) {
	tuple, err := canonicalTuple(req.From, req.To, req.Amount, req.Token, req.ChainID)
	if err != nil {
		return domain.PaymentIntent{}, err
	}

	now := time.Now().UTC()
	intent := domain.PaymentIntent{
		ID:         s.genID.Generate(),
		Status:     domain.StatusPending,
		ExtID:      strings.TrimSpace(req.ExtID),
		From:       tuple.From,
		To:         tuple.To,
		Amount:     tuple.Amount,
		Token:      tuple.Token,
		ChainID:    tuple.ChainID,
		MerchantID: req.MerchantID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Insert(ctx, s.db, &intent); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.PaymentIntent{}, domain.ErrDuplicatePending
		}
		return domain.PaymentIntent{}, err
	}

	s.log.Info("payment intent created",
		zap.String("intent_id", intent.ID.String()),
		zap.String("from", intent.From),
		zap.String("to", intent.To),
		zap.String("amount", intent.Amount),
		zap.Int64("chain_id", intent.ChainID),
	)
	return intent, nil
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID, requester string) (domain.PaymentIntent, error) {
	intent, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	if intent == nil {
		return domain.PaymentIntent{}, domain.ErrNotFound
	}

	if !strings.EqualFold(intent.From, requester) {
		return domain.PaymentIntent{}, domain.ErrForbidden
	}

	rows, err := s.repo.MarkCancelled(ctx, s.db, id)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	if rows == 0 {
		// The matcher (or another cancel) got there first.
		return domain.PaymentIntent{}, domain.ErrInvalidTransition
	}

	updated, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	if updated == nil {
		return domain.PaymentIntent{}, domain.ErrNotFound
	}

	s.log.Info("payment intent cancelled", zap.String("intent_id", id.String()))
	return *updated, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.PaymentIntent, error) {
	intent, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	if intent == nil {
		return domain.PaymentIntent{}, domain.ErrNotFound
	}
	return *intent, nil
}

func (s *Service) FindPendingByTuple(ctx context.Context, tuple domain.Tuple) (*domain.PaymentIntent, error) {
	canonical, err := canonicalTuple(tuple.From, tuple.To, tuple.Amount, tuple.Token, tuple.ChainID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.repo.FindPendingByTuple(ctx, s.db, canonical)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	if len(candidates) > 1 {
		s.log.Warn("multiple pending intents for one tuple, picking oldest",
			zap.Int("count", len(candidates)),
			zap.String("from", canonical.From),
			zap.String("to", canonical.To),
		)
	}
	return &candidates[0], nil
}

func (s *Service) ListByPayer(ctx context.Context, address string) ([]domain.PaymentIntent, error) {
	normalized := signature.NormalizeAddress(address)
	if normalized == "" {
		return nil, domain.ErrInvalidAddress
	}
	return s.repo.ListByPayer(ctx, s.db, normalized)
}

func (s *Service) ListByMerchant(ctx context.Context, req domain.ListByMerchantRequest) ([]domain.PaymentIntent, error) {
	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	if perPage > 200 {
		perPage = 200
	}
	page := req.Page
	if page < 0 {
		page = 0
	}
	return s.repo.ListByMerchant(ctx, s.db, req.MerchantID, perPage, page*perPage)
}

func canonicalTuple(from, to, amount, tokenAddr string, chainID int64) (domain.Tuple, error) {
	fromAddr := signature.NormalizeAddress(from)
	toAddr := signature.NormalizeAddress(to)
	if fromAddr == "" || toAddr == "" {
		return domain.Tuple{}, domain.ErrInvalidAddress
	}

	normalizedToken := signature.NormalizeAddress(tokenAddr)
	if normalizedToken == "" {
		return domain.Tuple{}, domain.ErrInvalidAddress
	}

	canonicalAmount, err := token.Canonical(amount)
	if err != nil {
		return domain.Tuple{}, domain.ErrInvalidAmount
	}

	if chainID <= 0 {
		return domain.Tuple{}, domain.ErrInvalidChainID
	}

	return domain.Tuple{
		From:    fromAddr,
		To:      toAddr,
		Amount:  canonicalAmount,
		Token:   normalizedToken,
		ChainID: chainID,
	}, nil
}
