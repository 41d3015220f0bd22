package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/rankflow/billing/pkg/types"
)

type PaymentOrderExtra struct {
	// PackageSnapshot freezes the purchased package at order-creation time.
	PackageSnapshot *types.PricingPackage `json:"package_snapshot"`
	// PayURL is the gateway redirect URL handed to the client.
	PayURL string `json:"pay_url,omitempty"`
}

// PaymentOrder is one checkout attempt. Status is monotonic: once the order
// reaches completed or failed it never transitions again; webhook replays
// must observe the terminal state and do nothing.
type PaymentOrder struct {
	ID            string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID        string                `gorm:"column:user_id;type:varchar(64);not null;index:idx_order_user_id" json:"user_id"`
	PackageID     string                `gorm:"column:package_id;type:varchar(64);not null" json:"package_id"`
	Amount        int64                 `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Currency      string                `gorm:"column:currency;type:varchar(16);not null" json:"currency"`
	PaymentMethod types.PaymentProvider `gorm:"column:payment_method;type:varchar(32);not null" json:"payment_method"`
	Status        types.OrderStatus     `gorm:"column:status;type:varchar(32);not null;index:idx_order_status" json:"status"`
	// TransactionID is the provider-assigned identifier, set only on the
	// terminal transition.
	TransactionID *string `gorm:"column:transaction_id;type:varchar(128);default:null" json:"transaction_id"`
	// CompletedAt is set only when the order becomes completed.
	CompletedAt *time.Time `gorm:"column:completed_at;default:null" json:"completed_at"`

	Extra     datatypes.JSONType[*PaymentOrderExtra] `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time                              `json:"created_at"`
	UpdatedAt time.Time                              `json:"updated_at"`
}

func (PaymentOrder) TableName() string {
	return "payment_order"
}

func (o *PaymentOrder) GetPackageSnapshot() *types.PricingPackage {
	if o == nil || o.Extra.Data() == nil {
		return nil
	}
	return o.Extra.Data().PackageSnapshot
}
