package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kitea/hunt-backend/pkg/enums"
)

// Order is keyed by the payment processor's checkout session id.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	StripeSessionID string            `gorm:"column:stripe_session_id;not null;uniqueIndex"`
	Status          enums.OrderStatus `gorm:"column:status;type:order_status_enum;not null;default:'pending'"`
	TotalAmount     decimal.Decimal   `gorm:"column:total_amount;type:numeric(10,2);not null"`
	Currency        string            `gorm:"column:currency;not null"`
	PaymentIntentID *string           `gorm:"column:payment_intent_id"`
	ShippingName    *string           `gorm:"column:shipping_name"`
	ShippingAddress json.RawMessage   `gorm:"column:shipping_address;type:jsonb"`
	PaidAt          *time.Time        `gorm:"column:paid_at"`
	FailureReason   *string           `gorm:"column:failure_reason"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

type OrderItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID  uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity   int             `gorm:"column:quantity;not null"`
	UnitAmount decimal.Decimal `gorm:"column:unit_amount;type:numeric(10,2);not null"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
