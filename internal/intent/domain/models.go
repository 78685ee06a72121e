package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether no further transition is allowed out of s.
// PENDING is the only non-terminal status.
func (s Status) Terminal() bool { return s != StatusPending }

// PaymentIntent is a registered promise to pay, awaiting a matching
// on-chain transfer. The partial unique index enforces the core invariant:
// at most one PENDING intent per (from, to, amount, token, chain) tuple.
// The constraint, not an application pre-check, is what resolves races
// between concurrent creates.
type PaymentIntent struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	Status     Status       `gorm:"type:text;not null;index" json:"status"`
	ExtID      string       `gorm:"column:ext_id;not null" json:"extId"`
	From       string       `gorm:"column:from_addr;not null;uniqueIndex:ux_payment_intents_pending_tuple,priority:1,where:status = 'PENDING'" json:"from"`
	To         string       `gorm:"column:to_addr;not null;uniqueIndex:ux_payment_intents_pending_tuple,priority:2,where:status = 'PENDING'" json:"to"`
	Amount     string       `gorm:"not null;uniqueIndex:ux_payment_intents_pending_tuple,priority:3,where:status = 'PENDING'" json:"amount"`
	Token      string       `gorm:"not null;uniqueIndex:ux_payment_intents_pending_tuple,priority:4,where:status = 'PENDING'" json:"token"`
	ChainID    int64        `gorm:"column:chain_id;not null;uniqueIndex:ux_payment_intents_pending_tuple,priority:5,where:status = 'PENDING'" json:"chainId"`
	MerchantID snowflake.ID `gorm:"not null;index" json:"merchantId"`
	TxHash     *string      `gorm:"column:tx_hash" json:"txHash,omitempty"`
	CreatedAt  time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt  time.Time    `gorm:"not null" json:"updatedAt"`
}

func (PaymentIntent) TableName() string { return "payment_intents" }

// Tuple identifies the matching key between intents and transfers.
// Addresses are checksummed and the amount is in canonical normalized
// units; comparison is exact, no tolerance.
type Tuple struct {
	From    string
	To      string
	Amount  string
	Token   string
	ChainID int64
}
