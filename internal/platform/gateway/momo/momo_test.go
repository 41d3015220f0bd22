package momo

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rankflow/billing/internal/platform/gateway"
	"github.com/rankflow/billing/pkg/config"
	"github.com/rankflow/billing/pkg/types"
)

const (
	testAccessKey = "F8BBA842ECF85"
	testSecretKey = "K951B6PE1waDMi640xX08PD3vg6EkVlz"
)

func testGateway() *Gateway {
	cfg := &config.Config{Momo: config.MomoConfig{
		PartnerCode: "MOMO",
		AccessKey:   testAccessKey,
		SecretKey:   testSecretKey,
	}}
	return New(cfg, zap.NewNop().Sugar())
}

// signedIPN builds a valid IPN payload for the given overrides.
func signedIPN(t *testing.T, overrides map[string]any) []byte {
	t.Helper()
	payload := map[string]any{
		"partnerCode":  "MOMO",
		"orderId":      "ORDER_123",
		"requestId":    "REQ_1",
		"amount":       json.Number("10000"),
		"orderInfo":    "Pro plan",
		"orderType":    "momo_wallet",
		"transId":      json.Number("4088878653"),
		"resultCode":   json.Number("0"),
		"message":      "Successful.",
		"payType":      "qr",
		"responseTime": json.Number("1700000000000"),
		"extraData":    "",
	}
	for k, v := range overrides {
		payload[k] = v
	}

	raw := "accessKey=" + testAccessKey
	for _, f := range ipnSignedFields {
		raw += "&" + f + "=" + fieldAsText(payload[f])
	}
	payload["signature"] = signHex(testSecretKey, raw)

	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body
}

func fieldAsText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func parse(t *testing.T, g *Gateway, body []byte) *gateway.Notification {
	t.Helper()
	n, err := g.ParseNotification(body, nil)
	require.NoError(t, err)
	return n
}

func TestVerify_ValidSignature(t *testing.T) {
	g := testGateway()
	n := parse(t, g, signedIPN(t, nil))
	require.NoError(t, g.Verify(context.Background(), n))
}

func TestVerify_TamperedField(t *testing.T) {
	g := testGateway()
	n := parse(t, g, signedIPN(t, nil))
	// Any single changed character must break verification.
	n.Fields["amount"] = "10001"
	require.ErrorIs(t, g.Verify(context.Background(), n), gateway.ErrSignature)
}

func TestVerify_TamperedSignature(t *testing.T) {
	g := testGateway()
	n := parse(t, g, signedIPN(t, nil))
	sig := n.Fields["signature"]
	n.Fields["signature"] = "0" + sig[1:]
	if n.Fields["signature"] == sig {
		n.Fields["signature"] = "1" + sig[1:]
	}
	require.ErrorIs(t, g.Verify(context.Background(), n), gateway.ErrSignature)
}

func TestVerify_MissingFieldAborts(t *testing.T) {
	g := testGateway()
	n := parse(t, g, signedIPN(t, nil))
	delete(n.Fields, "transId")
	require.ErrorIs(t, g.Verify(context.Background(), n), gateway.ErrSignature)
}

func TestVerify_MissingSignature(t *testing.T) {
	g := testGateway()
	n := parse(t, g, signedIPN(t, nil))
	delete(n.Fields, "signature")
	require.ErrorIs(t, g.Verify(context.Background(), n), gateway.ErrSignature)
}

func TestNormalize_ResultCodeMapping(t *testing.T) {
	g := testGateway()

	n := parse(t, g, signedIPN(t, nil))
	res, err := g.Normalize(n)
	require.NoError(t, err)
	require.Equal(t, &types.WebhookResult{
		OrderID:       "ORDER_123",
		Success:       true,
		TransactionID: "4088878653",
	}, res)

	n = parse(t, g, signedIPN(t, map[string]any{"resultCode": json.Number("1"), "message": "Failed."}))
	res, err = g.Normalize(n)
	require.NoError(t, err)
	require.False(t, res.Success)
}

func TestNormalize_TransactionIDFallsBackToRequestID(t *testing.T) {
	g := testGateway()
	n := parse(t, g, signedIPN(t, map[string]any{"transId": ""}))
	res, err := g.Normalize(n)
	require.NoError(t, err)
	require.Equal(t, "REQ_1", res.TransactionID)
}

func TestNormalize_MissingOrderID(t *testing.T) {
	g := testGateway()
	n := parse(t, g, signedIPN(t, map[string]any{"orderId": ""}))
	_, err := g.Normalize(n)
	require.ErrorIs(t, err, gateway.ErrMalformedPayload)
}
