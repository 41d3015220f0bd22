package vnpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rankflow/billing/internal/platform/gateway"
	"github.com/rankflow/billing/pkg/config"
	"github.com/rankflow/billing/pkg/types"
)

type Gateway struct {
	cfg config.VNPayConfig
	log *zap.SugaredLogger

	// now is stubbed in tests; VNPay requires create/expire timestamps in
	// the payment URL.
	now func() time.Time
}

func New(cfg *config.Config, log *zap.SugaredLogger) *Gateway {
	return &Gateway{cfg: cfg.VNPay, log: log, now: time.Now}
}

func (g *Gateway) Provider() types.PaymentProvider { return types.PaymentProviderVNPay }

func (g *Gateway) ParseNotification(body []byte, query url.Values) (*gateway.Notification, error) {
	fields, err := gateway.DecodeFields(body, query)
	if err != nil {
		return nil, err
	}
	return &gateway.Notification{Provider: g.Provider(), Fields: fields, Raw: body}, nil
}

// Verify removes vnp_SecureHash, sorts the remaining vnp_ parameters
// lexicographically, joins them as key=value pairs and compares the
// HMAC-SHA512 against the supplied hash.
func (g *Gateway) Verify(ctx context.Context, n *gateway.Notification) error {
	sig := n.Field("vnp_SecureHash")
	if sig == "" {
		return fmt.Errorf("%w: missing vnp_SecureHash", gateway.ErrSignature)
	}

	expected := signHex(g.cfg.HashSecret, hashData(n.Fields))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sig))) {
		return gateway.ErrSignature
	}
	return nil
}

func (g *Gateway) Normalize(n *gateway.Notification) (*types.WebhookResult, error) {
	orderID := n.Field("vnp_TxnRef")
	if orderID == "" {
		return nil, fmt.Errorf("%w: vnpay payload without vnp_TxnRef", gateway.ErrMalformedPayload)
	}
	// Canonical transaction id fallback: vnp_TransactionNo, then vnp_TxnRef.
	txnID := n.Field("vnp_TransactionNo")
	if txnID == "" {
		txnID = orderID
	}
	return &types.WebhookResult{
		OrderID:       orderID,
		Success:       n.Field("vnp_ResponseCode") == "00",
		TransactionID: txnID,
	}, nil
}

// CreatePayment builds the signed redirect URL; VNPay has no create API call.
func (g *Gateway) CreatePayment(ctx context.Context, req *gateway.PaymentRequest) (string, error) {
	now := g.now()
	params := map[string]string{
		"vnp_Version":    "2.1.0",
		"vnp_Command":    "pay",
		"vnp_TmnCode":    g.cfg.TmnCode,
		// VNPay expects the amount multiplied by 100.
		"vnp_Amount":     strconv.FormatInt(req.Amount*100, 10),
		"vnp_CurrCode":   "VND",
		"vnp_TxnRef":     req.OrderID,
		"vnp_OrderInfo":  req.Description,
		"vnp_OrderType":  "other",
		"vnp_Locale":     "vn",
		"vnp_ReturnUrl":  g.cfg.ReturnURL,
		"vnp_IpAddr":     "127.0.0.1",
		"vnp_CreateDate": now.Format("20060102150405"),
		"vnp_ExpireDate": now.Add(15 * time.Minute).Format("20060102150405"),
	}

	query := hashData(params)
	signed := query + "&vnp_SecureHash=" + signHex(g.cfg.HashSecret, query)
	return g.cfg.PayURL + "?" + signed, nil
}

// hashData produces the canonical "k=v&..." string: only vnp_ parameters
// participate, vnp_SecureHash and vnp_SecureHashType excluded, keys sorted,
// values URL-encoded.
func hashData(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !strings.HasPrefix(k, "vnp_") || k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(fields[k]))
	}
	return b.String()
}

func signHex(secret, data string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
