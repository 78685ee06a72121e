package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateIntentRequest struct {
	From       string
	To         string
	Amount     string
	Token      string
	ChainID    int64
	ExtID      string
	MerchantID snowflake.ID
}

type ListByMerchantRequest struct {
	MerchantID snowflake.ID
	Page       int
	PerPage    int
}

type Service interface {
	Create(ctx context.Context, req CreateIntentRequest) (PaymentIntent, error)
	// Cancel transitions PENDING -> CANCELLED. Only the original payer may
	// cancel, regardless of intent status.
	Cancel(ctx context.Context, id snowflake.ID, requester string) (PaymentIntent, error)
	GetByID(ctx context.Context, id snowflake.ID) (PaymentIntent, error)
	FindPendingByTuple(ctx context.Context, tuple Tuple) (*PaymentIntent, error)
	ListByPayer(ctx context.Context, address string) ([]PaymentIntent, error)
	ListByMerchant(ctx context.Context, req ListByMerchantRequest) ([]PaymentIntent, error)
}

var (
	ErrNotFound          = errors.New("intent_not_found")
	ErrForbidden         = errors.New("intent_forbidden")
	ErrDuplicatePending  = errors.New("duplicate_pending_intent")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrInvalidAddress    = errors.New("invalid_address")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidChainID    = errors.New("invalid_chain_id")
)
