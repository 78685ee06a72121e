package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists intents. Status writes go through the guarded
// MarkCompleted / MarkCancelled compare-and-set operations, never direct
// field mutation: rows-affected is the arbiter when writers race.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, intent *PaymentIntent) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentIntent, error)
	// FindPendingByTuple returns all PENDING intents for the tuple, oldest
	// first. More than one result means the creation invariant was violated
	// out-of-band; callers treat it as a data-integrity warning.
	FindPendingByTuple(ctx context.Context, db *gorm.DB, tuple Tuple) ([]PaymentIntent, error)
	MarkCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, txHash string) (int64, error)
	MarkCancelled(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	ListByPayer(ctx context.Context, db *gorm.DB, address string) ([]PaymentIntent, error)
	ListByMerchant(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, limit, offset int) ([]PaymentIntent, error)
}
