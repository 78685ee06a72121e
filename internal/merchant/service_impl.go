package merchant

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/payitonchain/paygate/internal/merchant/domain"
	"github.com/payitonchain/paygate/internal/signature"
	"github.com/payitonchain/paygate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("merchant.service"),
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateMerchantRequest) (domain.Merchant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Merchant{}, domain.ErrInvalidName
	}

	address := signature.NormalizeAddress(req.Address)
	if address == "" {
		return domain.Merchant{}, domain.ErrInvalidAddress
	}

	if err := validateWebhookURL(req.WebhookURL); err != nil {
		return domain.Merchant{}, err
	}

	now := time.Now().UTC()
	record := domain.Merchant{
		ID:         s.genID.Generate(),
		Name:       name,
		Address:    address,
		WebhookURL: req.WebhookURL,
		ChainIDs:   datatypes.NewJSONSlice(req.ChainIDs),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Merchant{}, domain.ErrAddressTaken
		}
		return domain.Merchant{}, err
	}

	s.log.Info("merchant registered",
		zap.String("merchant_id", record.ID.String()),
		zap.String("address", record.Address),
	)
	return record, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Merchant, error) {
	var record domain.Merchant
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Merchant{}, domain.ErrNotFound
		}
		return domain.Merchant{}, err
	}
	return record, nil
}

func (s *Service) GetByAddress(ctx context.Context, address string) (domain.Merchant, error) {
	normalized := signature.NormalizeAddress(address)
	if normalized == "" {
		return domain.Merchant{}, domain.ErrInvalidAddress
	}

	var record domain.Merchant
	err := s.db.WithContext(ctx).
		Where("address = ?", normalized).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Merchant{}, domain.ErrNotFound
		}
		return domain.Merchant{}, err
	}
	return record, nil
}

func (s *Service) UpdateWebhook(ctx context.Context, req domain.UpdateWebhookRequest) (domain.Merchant, error) {
	if err := validateWebhookURL(req.WebhookURL); err != nil {
		return domain.Merchant{}, err
	}

	res := s.db.WithContext(ctx).
		Model(&domain.Merchant{}).
		Where("id = ?", req.ID).
		Updates(map[string]any{
			"webhook_url": req.WebhookURL,
			"chain_ids":   datatypes.NewJSONSlice(req.ChainIDs),
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return domain.Merchant{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Merchant{}, domain.ErrNotFound
	}

	return s.GetByID(ctx, req.ID)
}

func validateWebhookURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return domain.ErrInvalidWebhookURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return domain.ErrInvalidWebhookURL
	}
	if parsed.Host == "" {
		return domain.ErrInvalidWebhookURL
	}
	return nil
}

var Module = fx.Module("merchant.service",
	fx.Provide(New),
)
