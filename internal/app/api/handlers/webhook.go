package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rankflow/billing/internal/app/service/order"
	"github.com/rankflow/billing/internal/app/service/webhook"
	"github.com/rankflow/billing/internal/platform/gateway"
	"github.com/rankflow/billing/pkg/logctx"
	"github.com/rankflow/billing/pkg/metrics"
	"github.com/rankflow/billing/pkg/types"
)

// @Summary      Payment webhook
// @Description  Receives MoMo/VNPay/PayPal gateway notifications. Signature-verified, idempotent on replay.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        provider path string true "Payment provider" Enums(momo, vnpay, paypal)
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/payment/webhook/{provider} [post]
// ApiPaymentWebhook handles gateway notifications. When the route carries no
// provider, the owning gateway is detected from the payload.
func ApiPaymentWebhook(h *webhook.Handler, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		provider := types.PaymentProvider(c.Param("provider"))
		if provider == "" {
			provider = types.PaymentProvider(c.Query("provider"))
		}

		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}

		res, err := h.Handle(c.Request.Context(), provider, body, c.Request.URL.Query())
		if err != nil {
			observe(m, provider, outcomeForError(err))
			logctx.FromGin(c, h.Logger).Errorw("webhook handling failed", "provider", provider, "err", err)
			switch {
			case errors.Is(err, gateway.ErrSignature):
				c.JSON(http.StatusUnauthorized, gin.H{"error": "signature verification failed"})
			case errors.Is(err, gateway.ErrUnknownProvider), errors.Is(err, gateway.ErrMalformedPayload):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				// order.ErrOrderNotFound lands here on purpose: an order we
				// never issued is an internal inconsistency, not a client
				// error the gateway can fix.
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		observe(m, res.Provider, string(res.Outcome))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func observe(m *metrics.Metrics, provider types.PaymentProvider, outcome string) {
	if m == nil {
		return
	}
	p := string(provider)
	if p == "" {
		p = "unknown"
	}
	m.ObserveWebhook(p, outcome)
}

func outcomeForError(err error) string {
	switch {
	case errors.Is(err, gateway.ErrSignature):
		return "rejected"
	case errors.Is(err, gateway.ErrUnknownProvider), errors.Is(err, gateway.ErrMalformedPayload):
		return "malformed"
	case errors.Is(err, order.ErrOrderNotFound):
		return "order_not_found"
	default:
		return "error"
	}
}

func RegisterWebhookRoutes(r gin.IRouter, h *webhook.Handler, m *metrics.Metrics) {
	r.POST("/webhook", ApiPaymentWebhook(h, m))
	r.POST("/webhook/:provider", ApiPaymentWebhook(h, m))
}
