package payloads

import (
	"github.com/google/uuid"
)

// MintRequestedEvent asks the mint worker to mint one collectible for a
// (user, location-or-founder) key. HuntLocationID is nil for founders.
type MintRequestedEvent struct {
	UserID         uuid.UUID  `json:"user_id"`
	HuntLocationID *uuid.UUID `json:"hunt_location_id"`
	ScanID         *uuid.UUID `json:"scan_id"`
	ScanNumber     int        `json:"scan_number"`
	IsFounder      bool       `json:"is_founder"`
}

// WalletAttachedEvent is emitted when a profile receives its wallet address.
type WalletAttachedEvent struct {
	UserID        uuid.UUID `json:"user_id"`
	WalletAddress string    `json:"wallet_address"`
	Generated     bool      `json:"generated"`
}

// OrderPaidEvent is emitted once an order is confirmed by the payment webhook.
type OrderPaidEvent struct {
	OrderID         uuid.UUID   `json:"order_id"`
	UserID          uuid.UUID   `json:"user_id"`
	StripeSessionID string      `json:"stripe_session_id"`
	PaymentIntentID string      `json:"payment_intent_id,omitempty"`
	TotalAmount     string      `json:"total_amount"`
	Currency        string      `json:"currency"`
	ProductIDs      []uuid.UUID `json:"product_ids"`
}
