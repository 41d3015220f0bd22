package checkout

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/rankflow/billing/internal/models"
	"github.com/rankflow/billing/internal/platform/gateway"
	"github.com/rankflow/billing/pkg/config"
	"github.com/rankflow/billing/pkg/logctx"
	"github.com/rankflow/billing/pkg/tool"
	"github.com/rankflow/billing/pkg/types"
)

var (
	ErrPackageNotFound = errors.New("pricing package not found")
	ErrInvalidProvider = errors.New("invalid payment method")
)

// OrderStore is the slice of the order service checkout needs.
type OrderStore interface {
	Create(ctx context.Context, o *models.PaymentOrder) error
	SavePayURL(ctx context.Context, orderID, payURL string) error
}

type CreateOrderRequest struct {
	UserID        string                `json:"user_id" binding:"required"`
	PackageID     string                `json:"package_id" binding:"required"`
	PaymentMethod types.PaymentProvider `json:"payment_method" binding:"required"`
}

type CreateOrderResponse struct {
	OrderID string `json:"order_id"`
	PayURL  string `json:"pay_url"`
}

// Service creates pending orders and hands back the gateway redirect URL.
// The pending row is persisted before the caller ever sees the URL, so the
// webhook always finds its order.
type Service struct {
	cfg      *config.Config
	gateways *gateway.Registry
	orders   OrderStore
	log      *zap.SugaredLogger
}

func NewService(cfg *config.Config, gateways *gateway.Registry, orders OrderStore, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, gateways: gateways, orders: orders, log: log}
}

func (s *Service) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	pkg := s.cfg.GetPackageByID(req.PackageID)
	if pkg == nil {
		return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, req.PackageID)
	}
	if !req.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProvider, req.PaymentMethod)
	}
	gw, err := s.gateways.Get(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	o := &models.PaymentOrder{
		ID:            tool.GenerateUUIDV7(),
		UserID:        req.UserID,
		PackageID:     pkg.ID,
		Amount:        pkg.Price,
		Currency:      pkg.Currency,
		PaymentMethod: req.PaymentMethod,
		Status:        types.OrderStatusPending,
		Extra:         datatypes.NewJSONType(&models.PaymentOrderExtra{PackageSnapshot: pkg}),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, err
	}

	payURL, err := gw.CreatePayment(ctx, &gateway.PaymentRequest{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Amount:      o.Amount,
		Currency:    o.Currency,
		Description: fmt.Sprintf("%s (%s)", pkg.Name, pkg.ID),
	})
	if err != nil {
		// Pending row stays; the user can retry checkout with a new order.
		return nil, fmt.Errorf("failed to create %s payment: %w", req.PaymentMethod, err)
	}

	if err := s.orders.SavePayURL(ctx, o.ID, payURL); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("failed to record pay url", "order_id", o.ID, "err", err)
	}

	return &CreateOrderResponse{OrderID: o.ID, PayURL: payURL}, nil
}
