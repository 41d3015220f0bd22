package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rankflow/billing/internal/models"
	"github.com/rankflow/billing/pkg/config"
	"github.com/rankflow/billing/pkg/logctx"
	"github.com/rankflow/billing/pkg/tool"
	"github.com/rankflow/billing/pkg/types"
)

const defaultValidityDays = 30

type Service struct {
	db       *gorm.DB
	log      *zap.SugaredLogger
	validity time.Duration
}

func NewService(db *gorm.DB, cfg *config.Config, log *zap.SugaredLogger) *Service {
	days := cfg.Subscription.ValidityDays
	if days <= 0 {
		days = defaultValidityDays
	}
	return &Service{db: db, log: log, validity: time.Duration(days) * 24 * time.Hour}
}

// newSubscription builds the replacement row for a completed payment. Each
// payment grants a fresh window from now; remaining time does not stack.
func newSubscription(userID, packageID string, now time.Time, validity time.Duration) *models.Subscription {
	return &models.Subscription{
		ID:        tool.GenerateUUIDV7(),
		UserID:    userID,
		PackageID: packageID,
		Status:    types.SubscriptionStatusActive,
		StartDate: now,
		EndDate:   now.Add(validity),
	}
}

// Activate upserts the single subscription row for the user. Invoked only
// after an order's first transition to completed; last writer wins.
func (s *Service) Activate(ctx context.Context, userID, packageID string) (*models.Subscription, error) {
	sub := newSubscription(userID, packageID, time.Now(), s.validity)

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"package_id", "status", "start_date", "end_date", "updated_at",
		}),
	}).Create(sub).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert subscription for user %s: %w", userID, err)
	}

	logctx.FromCtx(ctx, s.log).Infow("subscription activated",
		"user_id", userID, "package_id", packageID, "end_date", sub.EndDate)
	return sub, nil
}

// GetByUserID returns nil when the user has no subscription row.
func (s *Service) GetByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}
