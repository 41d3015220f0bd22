package vnpay

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rankflow/billing/internal/platform/gateway"
	"github.com/rankflow/billing/pkg/config"
)

const testHashSecret = "VNPAYSECRETXXXXXXXXXXXXXXXXXXXXX"

func testGateway() *Gateway {
	cfg := &config.Config{VNPay: config.VNPayConfig{
		TmnCode:    "TMN01",
		HashSecret: testHashSecret,
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://app.example.com/payment/return",
	}}
	g := New(cfg, zap.NewNop().Sugar())
	g.now = func() time.Time { return time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC) }
	return g
}

func signedReturn(t *testing.T, overrides map[string]string) url.Values {
	t.Helper()
	params := map[string]string{
		"vnp_TmnCode":       "TMN01",
		"vnp_TxnRef":        "ORDER_456",
		"vnp_Amount":        "1000000",
		"vnp_ResponseCode":  "00",
		"vnp_TransactionNo": "14214883",
		"vnp_BankCode":      "NCB",
		"vnp_PayDate":       "20240520100500",
		"vnp_OrderInfo":     "Pro plan (pro)",
	}
	for k, v := range overrides {
		if v == "" {
			delete(params, k)
			continue
		}
		params[k] = v
	}

	vals := url.Values{}
	for k, v := range params {
		vals.Set(k, v)
	}
	vals.Set("vnp_SecureHash", signHex(testHashSecret, hashData(params)))
	return vals
}

func TestVerify_ValidHash(t *testing.T) {
	g := testGateway()
	n, err := g.ParseNotification(nil, signedReturn(t, nil))
	require.NoError(t, err)
	require.NoError(t, g.Verify(context.Background(), n))
}

func TestVerify_IgnoresNonVnpParams(t *testing.T) {
	g := testGateway()
	vals := signedReturn(t, nil)
	// The dispatch query parameter is not part of the signed set.
	vals.Set("provider", "vnpay")
	n, err := g.ParseNotification(nil, vals)
	require.NoError(t, err)
	require.NoError(t, g.Verify(context.Background(), n))
}

func TestVerify_TamperedField(t *testing.T) {
	g := testGateway()
	vals := signedReturn(t, nil)
	vals.Set("vnp_Amount", "1000001")
	n, err := g.ParseNotification(nil, vals)
	require.NoError(t, err)
	require.ErrorIs(t, g.Verify(context.Background(), n), gateway.ErrSignature)
}

func TestVerify_MissingHash(t *testing.T) {
	g := testGateway()
	vals := signedReturn(t, nil)
	vals.Del("vnp_SecureHash")
	n, err := g.ParseNotification(nil, vals)
	require.NoError(t, err)
	require.ErrorIs(t, g.Verify(context.Background(), n), gateway.ErrSignature)
}

func TestNormalize_ResponseCodes(t *testing.T) {
	g := testGateway()

	n, err := g.ParseNotification(nil, signedReturn(t, nil))
	require.NoError(t, err)
	res, err := g.Normalize(n)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "ORDER_456", res.OrderID)
	require.Equal(t, "14214883", res.TransactionID)

	n, err = g.ParseNotification(nil, signedReturn(t, map[string]string{"vnp_ResponseCode": "07"}))
	require.NoError(t, err)
	res, err = g.Normalize(n)
	require.NoError(t, err)
	require.False(t, res.Success)
}

func TestNormalize_TransactionNoFallsBackToTxnRef(t *testing.T) {
	g := testGateway()
	n, err := g.ParseNotification(nil, signedReturn(t, map[string]string{"vnp_TransactionNo": ""}))
	require.NoError(t, err)
	res, err := g.Normalize(n)
	require.NoError(t, err)
	require.Equal(t, "ORDER_456", res.TransactionID)
}

func TestCreatePayment_SignedURLRoundTrips(t *testing.T) {
	g := testGateway()
	payURL, err := g.CreatePayment(context.Background(), &gateway.PaymentRequest{
		OrderID:     "ORDER_789",
		Amount:      199000,
		Currency:    "VND",
		Description: "Pro plan",
	})
	require.NoError(t, err)

	u, err := url.Parse(payURL)
	require.NoError(t, err)
	require.Equal(t, "ORDER_789", u.Query().Get("vnp_TxnRef"))
	// 199000 * 100 per VNPay convention
	require.Equal(t, "19900000", u.Query().Get("vnp_Amount"))

	// The URL we produce must pass our own verification.
	n, err := g.ParseNotification(nil, u.Query())
	require.NoError(t, err)
	require.NoError(t, g.Verify(context.Background(), n))
}
