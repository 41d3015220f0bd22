package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rankflow/billing/internal/models"
	"github.com/rankflow/billing/pkg/logctx"
	"github.com/rankflow/billing/pkg/tool"
	"github.com/rankflow/billing/pkg/types"
)

var (
	// ErrOrderNotFound means the webhook references an order id this
	// system never issued.
	ErrOrderNotFound = errors.New("order not found")
	// ErrTransitionConflict means the conditional update lost a race and
	// the re-read still observed pending. Providers retry, so surfacing
	// the conflict is safe.
	ErrTransitionConflict = errors.New("order transition conflict")
)

// TransitionResult reports a MarkTerminal call. PreviousStatus is pending
// exactly when this call won the transition; a terminal previous status
// means the delivery was a replay and downstream effects must be skipped.
type TransitionResult struct {
	Order          *models.PaymentOrder
	PreviousStatus types.OrderStatus
}

func (r *TransitionResult) FirstTransition() bool {
	return r != nil && r.PreviousStatus == types.OrderStatusPending
}

type ListRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ListResponse struct {
	Items []*models.PaymentOrder `json:"items"`
	Total int64                  `json:"total"`
}

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// Create persists a new pending order. The id is never reused; uuid v7 keeps
// creation ordering in the primary key.
func (s *Service) Create(ctx context.Context, o *models.PaymentOrder) error {
	if o.ID == "" {
		o.ID = tool.GenerateUUIDV7()
	}
	if o.Status == "" {
		o.Status = types.OrderStatusPending
	}
	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.PaymentOrder, error) {
	var o models.PaymentOrder
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &o, nil
}

// SavePayURL records the gateway redirect URL on the order extra. Best
// effort; checkout already returned the URL to the caller.
func (s *Service) SavePayURL(ctx context.Context, orderID, payURL string) error {
	o, err := s.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	extra := o.Extra.Data()
	if extra == nil {
		extra = &models.PaymentOrderExtra{}
	}
	extra.PayURL = payURL
	return s.db.WithContext(ctx).Model(o).
		Update("extra", datatypes.NewJSONType(extra)).Error
}

// MarkTerminal moves a pending order to completed or failed with a single
// conditional update. Concurrent deliveries for the same order race on the
// WHERE status = 'pending' guard; exactly one wins, the rest observe the
// terminal state and report a replay.
func (s *Service) MarkTerminal(ctx context.Context, orderID string, success bool, transactionID string) (*TransitionResult, error) {
	target := types.OrderStatusFailed
	updates := map[string]any{
		"status":         target,
		"transaction_id": transactionID,
	}
	if success {
		target = types.OrderStatusCompleted
		updates["status"] = target
		updates["completed_at"] = time.Now()
	}

	res := s.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Where("id = ? AND status = ?", orderID, types.OrderStatusPending).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", orderID, res.Error)
	}

	if res.RowsAffected == 0 {
		// Lost the race or unknown order; the re-read decides which.
		o, err := s.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if !o.Status.Terminal() {
			return nil, fmt.Errorf("%w: order %s", ErrTransitionConflict, orderID)
		}
		logctx.FromCtx(ctx, s.log).Infow("order already terminal, replay acknowledged",
			"order_id", orderID, "status", o.Status)
		return &TransitionResult{Order: o, PreviousStatus: o.Status}, nil
	}

	o, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &TransitionResult{Order: o, PreviousStatus: types.OrderStatusPending}, nil
}

// List serves the admin order table.
func (s *Service) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	q := s.db.WithContext(ctx).Model(&models.PaymentOrder{})
	for _, f := range lo.Compact(req.Filters) {
		q = q.Where(f)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	orderBy := sortBy
	if req.SortOrder == "desc" {
		orderBy += " desc"
	}

	size := req.Size
	if size <= 0 || size > 200 {
		size = 50
	}

	var items []*models.PaymentOrder
	if err := q.Order(orderBy).Offset(req.From).Limit(size).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return &ListResponse{Items: items, Total: total}, nil
}
