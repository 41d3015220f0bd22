package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/rankflow/billing/pkg/types"
)

// Subscription holds the single subscription row per user. Every completed
// payment overwrites it with a fresh validity window; remaining time from an
// earlier window is not carried over.
type Subscription struct {
	ID        string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID    string                   `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex" json:"user_id"`
	PackageID string                   `gorm:"column:package_id;type:varchar(64);not null" json:"package_id"`
	Status    types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	StartDate time.Time                `gorm:"column:start_date;not null" json:"start_date"`
	EndDate   time.Time                `gorm:"column:end_date;not null" json:"end_date"`
	// Extra stores additional JSON data (for example the order id that
	// granted the current window).
	Extra     datatypes.JSON `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

func (s *Subscription) Valid() bool {
	return s != nil &&
		s.Status == types.SubscriptionStatusActive &&
		s.EndDate.After(time.Now())
}
