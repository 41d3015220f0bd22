package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rankflow/billing/internal/platform/gateway"
	"github.com/rankflow/billing/pkg/config"
	"github.com/rankflow/billing/pkg/types"
)

// verifyTimeout bounds the re-query round trips so a slow PayPal API cannot
// hang a webhook request.
const verifyTimeout = 10 * time.Second

type Gateway struct {
	cfg    config.PayPalConfig
	client *http.Client
	log    *zap.SugaredLogger
}

func New(cfg *config.Config, log *zap.SugaredLogger) *Gateway {
	return &Gateway{
		cfg:    cfg.PayPal,
		client: &http.Client{Timeout: verifyTimeout},
		log:    log,
	}
}

func (g *Gateway) Provider() types.PaymentProvider { return types.PaymentProviderPayPal }

func (g *Gateway) ParseNotification(body []byte, query url.Values) (*gateway.Notification, error) {
	fields, err := gateway.DecodeFields(body, query)
	if err != nil {
		return nil, err
	}
	// The redirect flow reports paymentId; normalize the key once here.
	if fields["paymentId"] == "" && fields["payment_id"] != "" {
		fields["paymentId"] = fields["payment_id"]
	}
	return &gateway.Notification{Provider: g.Provider(), Fields: fields, Raw: body}, nil
}

// Verify authenticates by re-query rather than signature: fetch the payment
// resource with a fresh client-credentials token and fold the authenticated
// state and custom field back into the notification. The inbound payload is
// only trusted for the payment id.
func (g *Gateway) Verify(ctx context.Context, n *gateway.Notification) error {
	paymentID := n.Field("paymentId")
	if paymentID == "" {
		return fmt.Errorf("%w: paypal payload without paymentId", gateway.ErrMalformedPayload)
	}

	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	token, err := g.fetchToken(ctx)
	if err != nil {
		return fmt.Errorf("%w: token: %v", gateway.ErrSignature, err)
	}

	payment, err := g.fetchPayment(ctx, token, paymentID)
	if err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrSignature, err)
	}

	n.Fields["state"] = payment.State
	if custom := payment.custom(); custom != "" {
		n.Fields["custom"] = custom
	}
	return nil
}

func (g *Gateway) Normalize(n *gateway.Notification) (*types.WebhookResult, error) {
	orderID := n.Field("custom")
	if orderID == "" {
		return nil, fmt.Errorf("%w: paypal payment without custom order reference", gateway.ErrMalformedPayload)
	}
	return &types.WebhookResult{
		OrderID:       orderID,
		Success:       n.Field("state") == "approved",
		TransactionID: n.Field("paymentId"),
	}, nil
}

type paymentResource struct {
	ID           string `json:"id"`
	State        string `json:"state"`
	Transactions []struct {
		Custom string `json:"custom"`
	} `json:"transactions"`
	Links []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

func (p *paymentResource) custom() string {
	if p == nil || len(p.Transactions) == 0 {
		return ""
	}
	return p.Transactions[0].Custom
}

// CreatePayment creates a sale payment carrying the order id in the custom
// field and returns the approval URL.
func (g *Gateway) CreatePayment(ctx context.Context, req *gateway.PaymentRequest) (string, error) {
	token, err := g.fetchToken(ctx)
	if err != nil {
		return "", fmt.Errorf("paypal token failed: %w", err)
	}

	body := map[string]any{
		"intent": "sale",
		"payer":  map[string]any{"payment_method": "paypal"},
		"transactions": []map[string]any{{
			"amount": map[string]any{
				"total":    fmt.Sprintf("%d.%02d", req.Amount/100, req.Amount%100),
				"currency": req.Currency,
			},
			"description": req.Description,
			"custom":      req.OrderID,
		}},
		"redirect_urls": map[string]any{
			"return_url": g.cfg.ReturnURL,
			"cancel_url": g.cfg.CancelURL,
		},
	}
	payload, _ := json.Marshal(body)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/payments/payment", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("paypal create payment failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("paypal create payment status %d", resp.StatusCode)
	}

	var created paymentResource
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode paypal response: %w", err)
	}
	for _, l := range created.Links {
		if l.Rel == "approval_url" {
			return l.Href, nil
		}
	}
	return "", fmt.Errorf("paypal response missing approval_url")
}

func (g *Gateway) fetchToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	httpReq.SetBasicAuth(g.cfg.ClientID, g.cfg.Secret)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oauth token status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("empty access token")
	}
	return out.AccessToken, nil
}

func (g *Gateway) fetchPayment(ctx context.Context, token, paymentID string) (*paymentResource, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/v1/payments/payment/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment lookup status %d", resp.StatusCode)
	}

	var payment paymentResource
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, err
	}
	return &payment, nil
}
