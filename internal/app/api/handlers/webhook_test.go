package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rankflow/billing/internal/app/service/order"
	"github.com/rankflow/billing/internal/app/service/webhook"
	"github.com/rankflow/billing/internal/models"
	"github.com/rankflow/billing/internal/platform/gateway"
	"github.com/rankflow/billing/pkg/types"
)

// stubGateway lets the HTTP tests drive each pipeline stage directly.
type stubGateway struct {
	provider  types.PaymentProvider
	verifyErr error
	result    *types.WebhookResult
}

func (s *stubGateway) Provider() types.PaymentProvider { return s.provider }

func (s *stubGateway) ParseNotification(body []byte, query url.Values) (*gateway.Notification, error) {
	fields, err := gateway.DecodeFields(body, query)
	if err != nil {
		return nil, err
	}
	return &gateway.Notification{Provider: s.provider, Fields: fields, Raw: body}, nil
}

func (s *stubGateway) Verify(ctx context.Context, n *gateway.Notification) error { return s.verifyErr }

func (s *stubGateway) Normalize(n *gateway.Notification) (*types.WebhookResult, error) {
	return s.result, nil
}

func (s *stubGateway) CreatePayment(ctx context.Context, req *gateway.PaymentRequest) (string, error) {
	return "", nil
}

type stubOrderStore struct {
	mu     sync.Mutex
	orders map[string]*models.PaymentOrder
}

func (f *stubOrderStore) MarkTerminal(ctx context.Context, orderID string, success bool, transactionID string) (*order.TransitionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	if o.Status.Terminal() {
		cp := *o
		return &order.TransitionResult{Order: &cp, PreviousStatus: o.Status}, nil
	}
	prev := o.Status
	if success {
		o.Status = types.OrderStatusCompleted
		now := time.Now()
		o.CompletedAt = &now
	} else {
		o.Status = types.OrderStatusFailed
	}
	o.TransactionID = &transactionID
	cp := *o
	return &order.TransitionResult{Order: &cp, PreviousStatus: prev}, nil
}

type stubActivator struct{}

func (stubActivator) Activate(ctx context.Context, userID, packageID string) (*models.Subscription, error) {
	return &models.Subscription{UserID: userID, PackageID: packageID, Status: types.SubscriptionStatusActive}, nil
}

func newWebhookRouter(gw gateway.Gateway, store *stubOrderStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := webhook.NewHandlerWith(gateway.NewRegistry(gw), store, stubActivator{}, nil, nil, zap.NewNop().Sugar())
	r := gin.New()
	RegisterWebhookRoutes(r.Group("/api/v1/payment"), h, nil)
	return r
}

func deliver(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookEndpoint_AcceptedDelivery(t *testing.T) {
	store := &stubOrderStore{orders: map[string]*models.PaymentOrder{
		"ORDER_1": {ID: "ORDER_1", UserID: "user-1", PackageID: "pro", Status: types.OrderStatusPending},
	}}
	gw := &stubGateway{
		provider: types.PaymentProviderMomo,
		result:   &types.WebhookResult{OrderID: "ORDER_1", Success: true, TransactionID: "T1"},
	}
	r := newWebhookRouter(gw, store)

	w := deliver(r, "/api/v1/payment/webhook/momo", `{"orderId":"ORDER_1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestWebhookEndpoint_ReplayStillOK(t *testing.T) {
	store := &stubOrderStore{orders: map[string]*models.PaymentOrder{
		"ORDER_1": {ID: "ORDER_1", UserID: "user-1", PackageID: "pro", Status: types.OrderStatusPending},
	}}
	gw := &stubGateway{
		provider: types.PaymentProviderMomo,
		result:   &types.WebhookResult{OrderID: "ORDER_1", Success: true, TransactionID: "T1"},
	}
	r := newWebhookRouter(gw, store)

	require.Equal(t, http.StatusOK, deliver(r, "/api/v1/payment/webhook/momo", `{}`).Code)
	require.Equal(t, http.StatusOK, deliver(r, "/api/v1/payment/webhook/momo", `{}`).Code)
}

func TestWebhookEndpoint_SignatureFailureIs401(t *testing.T) {
	gw := &stubGateway{provider: types.PaymentProviderMomo, verifyErr: gateway.ErrSignature}
	r := newWebhookRouter(gw, &stubOrderStore{orders: map[string]*models.PaymentOrder{}})

	w := deliver(r, "/api/v1/payment/webhook/momo", `{}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "signature")
}

func TestWebhookEndpoint_UnknownProviderIs400(t *testing.T) {
	gw := &stubGateway{provider: types.PaymentProviderMomo}
	r := newWebhookRouter(gw, &stubOrderStore{orders: map[string]*models.PaymentOrder{}})

	w := deliver(r, "/api/v1/payment/webhook/stripe", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookEndpoint_OrderNotFoundIs500(t *testing.T) {
	gw := &stubGateway{
		provider: types.PaymentProviderMomo,
		result:   &types.WebhookResult{OrderID: "GHOST", Success: true, TransactionID: "T1"},
	}
	r := newWebhookRouter(gw, &stubOrderStore{orders: map[string]*models.PaymentOrder{}})

	w := deliver(r, "/api/v1/payment/webhook/momo", `{}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "error")
}

func TestWebhookEndpoint_ProviderFromQueryParam(t *testing.T) {
	store := &stubOrderStore{orders: map[string]*models.PaymentOrder{
		"ORDER_1": {ID: "ORDER_1", UserID: "user-1", PackageID: "pro", Status: types.OrderStatusPending},
	}}
	gw := &stubGateway{
		provider: types.PaymentProviderMomo,
		result:   &types.WebhookResult{OrderID: "ORDER_1", Success: true, TransactionID: "T1"},
	}
	r := newWebhookRouter(gw, store)

	w := deliver(r, "/api/v1/payment/webhook?provider=momo", `{}`)
	require.Equal(t, http.StatusOK, w.Code)
}
