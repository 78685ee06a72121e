package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateMerchantRequest struct {
	Name       string
	Address    string
	WebhookURL string
	ChainIDs   []int64
}

type UpdateWebhookRequest struct {
	ID         snowflake.ID
	WebhookURL string
	ChainIDs   []int64
}

type Service interface {
	Create(ctx context.Context, req CreateMerchantRequest) (Merchant, error)
	GetByID(ctx context.Context, id snowflake.ID) (Merchant, error)
	GetByAddress(ctx context.Context, address string) (Merchant, error)
	// UpdateWebhook mutates the only mutable merchant fields: the webhook
	// URL and the set of watched chains.
	UpdateWebhook(ctx context.Context, req UpdateWebhookRequest) (Merchant, error)
}

var (
	ErrNotFound          = errors.New("merchant_not_found")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidAddress    = errors.New("invalid_address")
	ErrInvalidWebhookURL = errors.New("invalid_webhook_url")
	ErrAddressTaken      = errors.New("merchant_address_taken")
)
