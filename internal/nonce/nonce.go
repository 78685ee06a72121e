package nonce

import (
	"errors"
	"time"
)

// TTL is how long an issued nonce stays consumable. Expired nonces are
// rejected even if never used.
const TTL = time.Hour

type Nonce struct {
	Token     string     `gorm:"primaryKey;type:text" json:"nonce"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

func (Nonce) TableName() string { return "nonces" }

var (
	ErrNotFound    = errors.New("nonce_not_found")
	ErrAlreadyUsed = errors.New("nonce_already_used")
	ErrExpired     = errors.New("nonce_expired")
)
