package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rankflow/billing/internal/platform/gateway"
	"github.com/rankflow/billing/pkg/config"
)

// fakePayPal serves the token and payment-lookup endpoints.
func fakePayPal(t *testing.T, state, custom string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "test-token"})
	})
	mux.HandleFunc("/v1/payments/payment/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "PAY-1AB23456",
			"state": state,
			"transactions": []map[string]any{
				{"custom": custom},
			},
		})
	})
	return httptest.NewServer(mux)
}

func testGateway(baseURL string) *Gateway {
	cfg := &config.Config{PayPal: config.PayPalConfig{
		ClientID: "client-id",
		Secret:   "client-secret",
		BaseURL:  baseURL,
	}}
	return New(cfg, zap.NewNop().Sugar())
}

func TestVerify_ReQueryFoldsStateAndCustom(t *testing.T) {
	srv := fakePayPal(t, "approved", "ORDER_321")
	defer srv.Close()
	g := testGateway(srv.URL)

	n, err := g.ParseNotification([]byte(`{"paymentId":"PAY-1AB23456","payer_id":"PAYER1"}`), nil)
	require.NoError(t, err)
	require.NoError(t, g.Verify(context.Background(), n))

	res, err := g.Normalize(n)
	require.NoError(t, err)
	require.Equal(t, "ORDER_321", res.OrderID)
	require.True(t, res.Success)
	require.Equal(t, "PAY-1AB23456", res.TransactionID)
}

func TestVerify_UnapprovedStateYieldsFailure(t *testing.T) {
	srv := fakePayPal(t, "failed", "ORDER_321")
	defer srv.Close()
	g := testGateway(srv.URL)

	n, err := g.ParseNotification([]byte(`{"payment_id":"PAY-1AB23456"}`), nil)
	require.NoError(t, err)
	require.NoError(t, g.Verify(context.Background(), n))

	res, err := g.Normalize(n)
	require.NoError(t, err)
	require.False(t, res.Success)
}

func TestVerify_MissingPaymentID(t *testing.T) {
	g := testGateway("http://unused.invalid")
	n, err := g.ParseNotification([]byte(`{"payer_id":"PAYER1"}`), nil)
	require.NoError(t, err)
	require.ErrorIs(t, g.Verify(context.Background(), n), gateway.ErrMalformedPayload)
}

func TestVerify_LookupFailureIsAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	g := testGateway(srv.URL)

	n, err := g.ParseNotification([]byte(`{"paymentId":"PAY-BOGUS"}`), nil)
	require.NoError(t, err)
	require.ErrorIs(t, g.Verify(context.Background(), n), gateway.ErrSignature)
}
