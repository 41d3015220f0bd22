package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/rankflow/billing/internal/app/service/order"
	"github.com/rankflow/billing/internal/app/service/webhooklog"
	"github.com/rankflow/billing/internal/models"
	"github.com/rankflow/billing/internal/platform/gateway"
	"github.com/rankflow/billing/pkg/logctx"
	"github.com/rankflow/billing/pkg/types"
)

// OrderStore is the order transition surface the handler needs. The gorm
// service implements it; tests substitute an in-memory fake.
type OrderStore interface {
	MarkTerminal(ctx context.Context, orderID string, success bool, transactionID string) (*order.TransitionResult, error)
}

// SubscriptionActivator grants the validity window after a first completion.
type SubscriptionActivator interface {
	Activate(ctx context.Context, userID, packageID string) (*models.Subscription, error)
}

// Notifier dispatches the payment confirmation, best effort.
type Notifier interface {
	Notify(ctx context.Context, userID, orderID, transactionID string)
}

// AuditLog records webhook deliveries for reconciliation.
type AuditLog interface {
	Save(ctx context.Context, entry *models.WebhookLog)
}

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	// OutcomeReplay means the order was already terminal; the delivery is
	// acknowledged without side effects.
	OutcomeReplay Outcome = "replay"
)

type Result struct {
	Outcome       Outcome               `json:"outcome"`
	Provider      types.PaymentProvider `json:"provider"`
	OrderID       string                `json:"order_id"`
	TransactionID string                `json:"transaction_id"`
}

// Handler runs the reconciliation pipeline for one webhook delivery:
// verify, normalize, transition the order, then activate and notify.
type Handler struct {
	gateways *gateway.Registry
	orders   OrderStore
	subs     SubscriptionActivator
	notifier Notifier
	audit    AuditLog
	Logger   *zap.SugaredLogger
}

func NewHandler(gateways *gateway.Registry, orders *order.Service, subs SubscriptionActivator, notifier Notifier, audit *webhooklog.Service, log *zap.SugaredLogger) *Handler {
	return &Handler{gateways: gateways, orders: orders, subs: subs, notifier: notifier, audit: audit, Logger: log}
}

// NewHandlerWith wires arbitrary store implementations; tests use it to
// inject fakes.
func NewHandlerWith(gateways *gateway.Registry, orders OrderStore, subs SubscriptionActivator, notifier Notifier, audit AuditLog, log *zap.SugaredLogger) *Handler {
	return &Handler{gateways: gateways, orders: orders, subs: subs, notifier: notifier, audit: audit, Logger: log}
}

// Handle processes one delivery. provider may be empty, in which case the
// owning gateway is detected from sentinel payload fields. No state is
// mutated before verification succeeds.
func (h *Handler) Handle(ctx context.Context, provider types.PaymentProvider, body []byte, query url.Values) (res *Result, resErr error) {
	var gw gateway.Gateway
	var err error
	if provider == "" {
		gw, err = h.gateways.Detect(body, query)
	} else {
		gw, err = h.gateways.Get(provider)
	}
	if err != nil {
		return nil, err
	}

	n, err := gw.ParseNotification(body, query)
	if err != nil {
		return nil, err
	}

	lg := logctx.FromCtx(ctx, h.Logger).With("provider", gw.Provider())
	traceID, _ := ctx.Value("traceID").(string)
	dataBytes, _ := json.Marshal(n.Fields)

	if h.audit != nil {
		h.audit.Save(ctx, &models.WebhookLog{
			Provider: string(gw.Provider()),
			TraceID:  traceID,
			Data:     datatypes.JSON(dataBytes),
			Status:   models.WebhookLogStatusReceived,
		})
	}

	defer func() {
		if h.audit == nil {
			return
		}
		entry := &models.WebhookLog{
			Provider: string(gw.Provider()),
			TraceID:  traceID,
			Data:     datatypes.JSON(dataBytes),
			Status:   models.WebhookLogStatusHandled,
		}
		resMap := map[string]any{}
		if res != nil {
			entry.OrderID = res.OrderID
			entry.TransactionID = res.TransactionID
			resMap["result"] = res
		}
		if resErr != nil {
			resMap["error"] = resErr.Error()
			entry.Status = models.WebhookLogStatusHandleFailed
			if errorsIsSignature(resErr) {
				entry.Status = models.WebhookLogStatusRejected
			}
		}
		resBytes, _ := json.Marshal(resMap)
		j := datatypes.JSON(resBytes)
		entry.Result = &j
		h.audit.Save(ctx, entry)
	}()

	if err := gw.Verify(ctx, n); err != nil {
		lg.Warnw("webhook verification failed", "err", err)
		return nil, err
	}

	normalized, err := gw.Normalize(n)
	if err != nil {
		return nil, err
	}
	lg = lg.With("order_id", normalized.OrderID, "transaction_id", normalized.TransactionID)

	transition, err := h.orders.MarkTerminal(ctx, normalized.OrderID, normalized.Success, normalized.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("order transition failed: %w", err)
	}

	res = &Result{
		Provider:      gw.Provider(),
		OrderID:       normalized.OrderID,
		TransactionID: normalized.TransactionID,
	}

	if !transition.FirstTransition() {
		// Provider retry storm; the first delivery already did the work.
		res.Outcome = OutcomeReplay
		return res, nil
	}

	if !normalized.Success {
		res.Outcome = OutcomeFailed
		lg.Infow("payment failed, order closed")
		return res, nil
	}

	res.Outcome = OutcomeCompleted
	o := transition.Order

	// The provider collected the money; from here on nothing may undo the
	// completed order. Activation failure is a bookkeeping inconsistency
	// to repair out of band, not a webhook failure.
	if _, err := h.subs.Activate(ctx, o.UserID, o.PackageID); err != nil {
		lg.Errorw("CRITICAL: order completed but subscription activation failed",
			"user_id", o.UserID, "package_id", o.PackageID, "err", err)
		return res, nil
	}

	if h.notifier != nil {
		go h.notifier.Notify(context.WithoutCancel(ctx), o.UserID, o.ID, normalized.TransactionID)
	}

	lg.Infow("payment completed, subscription activated", "user_id", o.UserID)
	return res, nil
}

func errorsIsSignature(err error) bool {
	return errors.Is(err, gateway.ErrSignature)
}
