package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/payitonchain/paygate/internal/intent/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, intent *domain.PaymentIntent) error {
	return db.WithContext(ctx).Create(intent).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PaymentIntent, error) {
	var intent domain.PaymentIntent
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&intent).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

func (r *repo) FindPendingByTuple(ctx context.Context, db *gorm.DB, tuple domain.Tuple) ([]domain.PaymentIntent, error) {
	var intents []domain.PaymentIntent
	err := db.WithContext(ctx).
		Where("from_addr = ? AND to_addr = ? AND amount = ? AND token = ? AND chain_id = ? AND status = ?",
			tuple.From,
			tuple.To,
			tuple.Amount,
			tuple.Token,
			tuple.ChainID,
			domain.StatusPending,
		).
		Order("created_at asc, id asc").
		Find(&intents).Error
	if err != nil {
		return nil, err
	}
	return intents, nil
}

func (r *repo) MarkCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, txHash string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.PaymentIntent{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"status":     domain.StatusCompleted,
			"tx_hash":    txHash,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *repo) MarkCancelled(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.PaymentIntent{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"status":     domain.StatusCancelled,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *repo) ListByPayer(ctx context.Context, db *gorm.DB, address string) ([]domain.PaymentIntent, error) {
	var intents []domain.PaymentIntent
	err := db.WithContext(ctx).
		Where("from_addr = ?", address).
		Order("created_at desc, id desc").
		Find(&intents).Error
	if err != nil {
		return nil, err
	}
	return intents, nil
}

func (r *repo) ListByMerchant(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, limit, offset int) ([]domain.PaymentIntent, error) {
	var intents []domain.PaymentIntent
	err := db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at desc, id desc").
		Limit(limit).
		Offset(offset).
		Find(&intents).Error
	if err != nil {
		return nil, err
	}
	return intents, nil
}
