package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitea/hunt-backend/pkg/db/models"
	"github.com/kitea/hunt-backend/pkg/enums"
)

// Repository persists orders keyed by checkout session id.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePending(ctx context.Context, order *models.Order) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID, details PaidDetails) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error)
}

// PaidDetails is what the payment processor reports for a completed session.
type PaidDetails struct {
	PaymentIntentID string
	ShippingName    string
	ShippingAddress json.RawMessage
	PaidAt          time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreatePending inserts the order and its items.
func (r *repository) CreatePending(ctx context.Context, order *models.Order) error {
	order.Status = enums.OrderStatusPending
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("stripe_session_id = ?", sessionID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkPaid moves a pending order to paid. It reports false when the order had
// already left pending.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, details PaidDetails) (bool, error) {
	updates := map[string]any{
		"status":     enums.OrderStatusPaid,
		"paid_at":    details.PaidAt,
		"updated_at": time.Now().UTC(),
	}
	if details.PaymentIntentID != "" {
		updates["payment_intent_id"] = details.PaymentIntentID
	}
	if details.ShippingName != "" {
		updates["shipping_name"] = details.ShippingName
	}
	if len(details.ShippingAddress) > 0 {
		updates["shipping_address"] = details.ShippingAddress
	}
	return r.transition(ctx, id, updates)
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	return r.transition(ctx, id, map[string]any{
		"status":         enums.OrderStatusFailed,
		"failure_reason": reason,
		"updated_at":     time.Now().UTC(),
	})
}

func (r *repository) transition(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
