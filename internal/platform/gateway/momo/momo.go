package momo

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rankflow/billing/internal/platform/gateway"
	"github.com/rankflow/billing/pkg/config"
	"github.com/rankflow/billing/pkg/tool"
	"github.com/rankflow/billing/pkg/types"
)

// ipnSignedFields is the fixed field order MoMo signs IPN payloads with.
// accessKey is the merchant credential and is not part of the payload.
var ipnSignedFields = []string{
	"amount", "extraData", "message", "orderId", "orderInfo", "orderType",
	"partnerCode", "payType", "requestId", "responseTime", "resultCode", "transId",
}

const requestType = "captureWallet"

type Gateway struct {
	cfg    config.MomoConfig
	client *http.Client
	log    *zap.SugaredLogger
}

func New(cfg *config.Config, log *zap.SugaredLogger) *Gateway {
	return &Gateway{
		cfg:    cfg.Momo,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

func (g *Gateway) Provider() types.PaymentProvider { return types.PaymentProviderMomo }

func (g *Gateway) ParseNotification(body []byte, query url.Values) (*gateway.Notification, error) {
	fields, err := gateway.DecodeFields(body, query)
	if err != nil {
		return nil, err
	}
	return &gateway.Notification{Provider: g.Provider(), Fields: fields, Raw: body}, nil
}

// Verify recomputes the IPN signature: HMAC-SHA256 over the canonical query
// string "accessKey=...&amount=...&...&transId=..." with fields in fixed
// order. A payload missing any signed field is invalid.
func (g *Gateway) Verify(ctx context.Context, n *gateway.Notification) error {
	sig, ok := n.Fields["signature"]
	if !ok || sig == "" {
		return fmt.Errorf("%w: missing signature", gateway.ErrSignature)
	}

	raw := "accessKey=" + g.cfg.AccessKey
	for _, f := range ipnSignedFields {
		v, ok := n.Fields[f]
		if !ok {
			return fmt.Errorf("%w: missing field %q", gateway.ErrSignature, f)
		}
		raw += "&" + f + "=" + v
	}

	if !hmac.Equal([]byte(signHex(g.cfg.SecretKey, raw)), []byte(sig)) {
		return gateway.ErrSignature
	}
	return nil
}

func (g *Gateway) Normalize(n *gateway.Notification) (*types.WebhookResult, error) {
	orderID := n.Field("orderId")
	if orderID == "" {
		return nil, fmt.Errorf("%w: momo payload without orderId", gateway.ErrMalformedPayload)
	}
	// Canonical transaction id fallback: transId, then requestId.
	txnID := n.Field("transId")
	if txnID == "" {
		txnID = n.Field("requestId")
	}
	return &types.WebhookResult{
		OrderID:       orderID,
		Success:       n.Field("resultCode") == "0",
		TransactionID: txnID,
	}, nil
}

type createPaymentRequest struct {
	PartnerCode string `json:"partnerCode"`
	AccessKey   string `json:"accessKey"`
	RequestID   string `json:"requestId"`
	Amount      string `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	ExtraData   string `json:"extraData"`
	RequestType string `json:"requestType"`
	Signature   string `json:"signature"`
}

type createPaymentResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
}

// CreatePayment calls MoMo's create endpoint and returns the wallet pay URL.
func (g *Gateway) CreatePayment(ctx context.Context, req *gateway.PaymentRequest) (string, error) {
	amount := strconv.FormatInt(req.Amount, 10)
	body := createPaymentRequest{
		PartnerCode: g.cfg.PartnerCode,
		AccessKey:   g.cfg.AccessKey,
		RequestID:   tool.GenerateUUIDV7(),
		Amount:      amount,
		OrderID:     req.OrderID,
		OrderInfo:   req.Description,
		RedirectURL: g.cfg.RedirectURL,
		IPNURL:      g.cfg.IPNURL,
		ExtraData:   req.OrderID,
		RequestType: requestType,
	}

	raw := "accessKey=" + body.AccessKey +
		"&amount=" + body.Amount +
		"&extraData=" + body.ExtraData +
		"&ipnUrl=" + body.IPNURL +
		"&orderId=" + body.OrderID +
		"&orderInfo=" + body.OrderInfo +
		"&partnerCode=" + body.PartnerCode +
		"&redirectUrl=" + body.RedirectURL +
		"&requestId=" + body.RequestID +
		"&requestType=" + body.RequestType
	body.Signature = signHex(g.cfg.SecretKey, raw)

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal momo request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build momo request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("momo create payment failed: %w", err)
	}
	defer resp.Body.Close()

	var out createPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode momo response: %w", err)
	}
	if out.ResultCode != 0 || out.PayURL == "" {
		return "", fmt.Errorf("momo create payment rejected: code=%d message=%s", out.ResultCode, out.Message)
	}
	return out.PayURL, nil
}

func signHex(secret, raw string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}
