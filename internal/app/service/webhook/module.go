package webhook

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rankflow/billing/internal/app/service/notifier"
	"github.com/rankflow/billing/internal/app/service/order"
	"github.com/rankflow/billing/internal/app/service/subscription"
	"github.com/rankflow/billing/internal/app/service/webhooklog"
	"github.com/rankflow/billing/internal/platform/gateway"
)

func provideHandler(gateways *gateway.Registry, orders *order.Service, subs *subscription.Service, notif *notifier.Service, audit *webhooklog.Service, log *zap.SugaredLogger) *Handler {
	return NewHandler(gateways, orders, subs, notif, audit, log)
}

var Module = fx.Options(
	fx.Provide(provideHandler),
)
