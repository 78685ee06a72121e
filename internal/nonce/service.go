package nonce

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

// Service issues and consumes single-use challenge nonces.
type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(p Params) *Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("nonce.service"),
	}
}

func (s *Service) Issue(ctx context.Context) (Nonce, error) {
	record := Nonce{
		Token:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return Nonce{}, err
	}
	return record, nil
}

// Consume marks a nonce used exactly once. Under concurrent consumption
// attempts only the first committer succeeds; everyone else observes
// ErrAlreadyUsed.
func (s *Service) Consume(ctx context.Context, token string) error {
	var record Nonce
	err := s.db.WithContext(ctx).
		Where("token = ?", token).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrNotFound
		}
		return err
	}

	if record.UsedAt != nil {
		return ErrAlreadyUsed
	}
	if time.Since(record.CreatedAt) > TTL {
		return ErrExpired
	}

	now := time.Now().UTC()
	res := s.db.WithContext(ctx).
		Model(&Nonce{}).
		Where("token = ? AND used_at IS NULL", token).
		Update("used_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race to a concurrent consumer.
		return ErrAlreadyUsed
	}
	return nil
}

var Module = fx.Module("nonce",
	fx.Provide(New),
)
