package intent

import (
	"github.com/payitonchain/paygate/internal/intent/repository"
	"github.com/payitonchain/paygate/internal/intent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("intent.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
