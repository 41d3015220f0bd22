package types

type PaymentProvider string

const (
	PaymentProviderMomo   PaymentProvider = "momo"
	PaymentProviderVNPay  PaymentProvider = "vnpay"
	PaymentProviderPayPal PaymentProvider = "paypal"
)

func (p PaymentProvider) Valid() bool {
	switch p {
	case PaymentProviderMomo, PaymentProviderVNPay, PaymentProviderPayPal:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

// Terminal reports whether no further status transition is permitted.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

// WebhookResult is the provider-independent outcome extracted from a
// gateway notification.
type WebhookResult struct {
	OrderID       string `json:"order_id"`
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
}

type PricingPackage struct {
	ID       string `json:"id" mapstructure:"id"`
	Name     string `json:"name" mapstructure:"name"`
	Currency string `json:"currency" mapstructure:"currency"`
	// Price is in currency minor units.
	Price        int64 `json:"price" mapstructure:"price"`
	DurationDays int   `json:"duration_days" mapstructure:"duration_days"`
}
