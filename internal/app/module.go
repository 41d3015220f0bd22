package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/rankflow/billing/internal/app/api/server"
	"github.com/rankflow/billing/internal/app/service/checkout"
	"github.com/rankflow/billing/internal/app/service/notifier"
	"github.com/rankflow/billing/internal/app/service/order"
	"github.com/rankflow/billing/internal/app/service/subscription"
	"github.com/rankflow/billing/internal/app/service/webhook"
	"github.com/rankflow/billing/internal/app/service/webhooklog"
	"github.com/rankflow/billing/internal/platform/db"
	"github.com/rankflow/billing/internal/platform/gateway/providers"
	"github.com/rankflow/billing/pkg/config"
	"github.com/rankflow/billing/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	providers.Module,
	order.Module,
	subscription.Module,
	webhooklog.Module,
	notifier.Module,
	webhook.Module,
	checkout.Module,
	server.Module,
)
