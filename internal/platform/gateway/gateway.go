package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/rankflow/billing/pkg/types"
)

var (
	// ErrSignature means the payload failed cryptographic verification.
	// Handlers map it to 401 and must not mutate any state.
	ErrSignature = errors.New("gateway: invalid signature")
	// ErrMalformedPayload means the body could not be decoded or lacks
	// required fields.
	ErrMalformedPayload = errors.New("gateway: malformed payload")
	// ErrUnknownProvider means no gateway claims the payload.
	ErrUnknownProvider = errors.New("gateway: unknown provider")
)

// Notification is a gateway delivery decoded once at the HTTP boundary:
// the provider tag plus the payload fields as their exact textual values.
// Signature reconstruction depends on the original text, so numbers are
// never round-tripped through float64.
type Notification struct {
	Provider types.PaymentProvider
	Fields   map[string]string
	Raw      []byte
}

func (n *Notification) Field(key string) string {
	if n == nil {
		return ""
	}
	return n.Fields[key]
}

// PaymentRequest is the input to CreatePayment at checkout time. OrderID is
// embedded in the gateway's pass-through field (extraData / vnp_TxnRef /
// custom) so the webhook can recover it.
type PaymentRequest struct {
	OrderID     string
	UserID      string
	Amount      int64
	Currency    string
	Description string
}

// Gateway is one payment provider integration.
type Gateway interface {
	Provider() types.PaymentProvider

	// ParseNotification decodes an inbound webhook delivery.
	ParseNotification(body []byte, query url.Values) (*Notification, error)

	// Verify authenticates the notification. For HMAC providers this is a
	// pure local check; for PayPal it re-queries the payment resource and
	// folds the authenticated outcome back into the notification fields.
	Verify(ctx context.Context, n *Notification) error

	// Normalize maps provider fields onto the common webhook result.
	Normalize(n *Notification) (*types.WebhookResult, error)

	// CreatePayment initiates a payment and returns the redirect URL.
	CreatePayment(ctx context.Context, req *PaymentRequest) (string, error)
}

// Registry resolves gateways by provider name or by payload sniffing.
type Registry struct {
	gateways map[types.PaymentProvider]Gateway
}

func NewRegistry(gws ...Gateway) *Registry {
	r := &Registry{gateways: make(map[types.PaymentProvider]Gateway, len(gws))}
	for _, g := range gws {
		r.gateways[g.Provider()] = g
	}
	return r
}

func (r *Registry) Get(p types.PaymentProvider) (Gateway, error) {
	g, ok := r.gateways[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	return g, nil
}

// Detect finds the owning gateway by provider-specific sentinel fields when
// the route does not name one.
func (r *Registry) Detect(body []byte, query url.Values) (Gateway, error) {
	fields, err := DecodeFields(body, query)
	if err != nil {
		return nil, err
	}

	var p types.PaymentProvider
	switch {
	case fields["partnerCode"] != "" || fields["resultCode"] != "":
		p = types.PaymentProviderMomo
	case fields["vnp_TmnCode"] != "" || fields["vnp_ResponseCode"] != "":
		p = types.PaymentProviderVNPay
	case fields["payer_id"] != "" || fields["payment_id"] != "" || fields["paymentId"] != "":
		p = types.PaymentProviderPayPal
	default:
		return nil, fmt.Errorf("%w: no sentinel field present", ErrUnknownProvider)
	}
	return r.Get(p)
}

// DecodeFields flattens a JSON body or form/query parameters into textual
// field values. JSON numbers keep their source representation.
func DecodeFields(body []byte, query url.Values) (map[string]string, error) {
	fields := make(map[string]string)
	for k, vs := range query {
		if len(vs) > 0 {
			fields[k] = vs[0]
		}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return fields, nil
	}

	if bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		for k, v := range m {
			fields[k] = fieldText(v)
		}
		return fields, nil
	}

	// Fall back to form encoding.
	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	for k, vs := range vals {
		if len(vs) > 0 {
			fields[k] = vs[0]
		}
	}
	return fields, nil
}

func fieldText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
