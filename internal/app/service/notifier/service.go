package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rankflow/billing/pkg/config"
	"github.com/rankflow/billing/pkg/logctx"
)

const dispatchTimeout = 5 * time.Second

// Service dispatches payment confirmations. Delivery is best effort by
// contract: a completed payment must never look failed because an email
// endpoint was down.
type Service struct {
	endpoint string
	client   *http.Client
	log      *zap.SugaredLogger
}

func New(cfg *config.Config, log *zap.SugaredLogger) *Service {
	return &Service{
		endpoint: cfg.Notifier.Endpoint,
		client:   &http.Client{Timeout: dispatchTimeout},
		log:      log,
	}
}

type message struct {
	UserID        string `json:"user_id"`
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
}

// Notify posts the confirmation message. Errors are logged and swallowed.
func (s *Service) Notify(ctx context.Context, userID, orderID, transactionID string) {
	lg := logctx.FromCtx(ctx, s.log)
	if s.endpoint == "" {
		lg.Infow("payment confirmation (no notifier endpoint configured)",
			"user_id", userID, "order_id", orderID, "transaction_id", transactionID)
		return
	}

	body, _ := json.Marshal(message{UserID: userID, OrderID: orderID, TransactionID: transactionID})

	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		lg.Errorw("failed to build notification request", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		lg.Errorw("failed to dispatch payment confirmation", "order_id", orderID, "err", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		lg.Errorw("payment confirmation rejected", "order_id", orderID, "status", resp.StatusCode)
		return
	}
	lg.Infow("payment confirmation dispatched", "order_id", orderID, "user_id", userID)
}

var Module = fx.Options(
	fx.Provide(New),
)
