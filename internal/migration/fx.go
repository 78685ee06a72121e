package migration

import (
	intentdomain "github.com/payitonchain/paygate/internal/intent/domain"
	merchantdomain "github.com/payitonchain/paygate/internal/merchant/domain"
	"github.com/payitonchain/paygate/internal/nonce"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module creates the schema on startup so local and self-hosted setups
// work out of the box. The partial unique index on pending intents is
// part of the model definition and comes up with the table.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		return conn.AutoMigrate(
			&nonce.Nonce{},
			&merchantdomain.Merchant{},
			&intentdomain.PaymentIntent{},
		)
	}),
)
