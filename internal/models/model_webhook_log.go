package models

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookLogStatus string

const (
	WebhookLogStatusReceived     WebhookLogStatus = "received"
	WebhookLogStatusHandled      WebhookLogStatus = "handled"
	WebhookLogStatusHandleFailed WebhookLogStatus = "handle_failed"
	WebhookLogStatusRejected     WebhookLogStatus = "rejected"
)

// WebhookLog is the audit trail of gateway deliveries. Reconciliation after
// a handler failure starts from these rows.
type WebhookLog struct {
	ID            string           `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Provider      string           `gorm:"column:provider;type:varchar(32);not null" json:"provider"`
	TraceID       string           `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	OrderID       string           `gorm:"column:order_id;type:varchar(64);index:idx_webhook_log_order_id" json:"order_id"`
	TransactionID string           `gorm:"column:transaction_id;type:varchar(128)" json:"transaction_id"`
	Data          datatypes.JSON   `gorm:"column:data;type:jsonb" json:"data"`
	Result        *datatypes.JSON  `gorm:"column:result;type:jsonb" json:"result"`
	Status        WebhookLogStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (WebhookLog) TableName() string { return "webhook_log" }
