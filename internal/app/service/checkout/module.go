package checkout

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rankflow/billing/internal/app/service/order"
	"github.com/rankflow/billing/internal/platform/gateway"
	"github.com/rankflow/billing/pkg/config"
)

func provideService(cfg *config.Config, gateways *gateway.Registry, orders *order.Service, log *zap.SugaredLogger) *Service {
	return NewService(cfg, gateways, orders, log)
}

var Module = fx.Options(
	fx.Provide(provideService),
)
