package providers

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rankflow/billing/internal/platform/gateway"
	"github.com/rankflow/billing/internal/platform/gateway/momo"
	"github.com/rankflow/billing/internal/platform/gateway/paypal"
	"github.com/rankflow/billing/internal/platform/gateway/vnpay"
	"github.com/rankflow/billing/pkg/config"
)

func NewRegistry(cfg *config.Config, log *zap.SugaredLogger) *gateway.Registry {
	return gateway.NewRegistry(
		momo.New(cfg, log),
		vnpay.New(cfg, log),
		paypal.New(cfg, log),
	)
}

var Module = fx.Options(
	fx.Provide(NewRegistry),
)
