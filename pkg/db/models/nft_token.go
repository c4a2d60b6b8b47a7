package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitea/hunt-backend/pkg/enums"
)

// NFTToken is the mint record for one (user, location-or-founder) key.
// HuntLocationID is nil for the founder collectible.
type NFTToken struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID        `gorm:"column:user_id;type:uuid;not null"`
	HuntLocationID  *uuid.UUID       `gorm:"column:hunt_location_id;type:uuid"`
	ScanID          *uuid.UUID       `gorm:"column:scan_id;type:uuid"`
	IsFounder       bool             `gorm:"column:is_founder;not null"`
	TokenID         string           `gorm:"column:token_id;not null"`
	EditionNumber   int              `gorm:"column:edition_number;not null"`
	Status          enums.MintStatus `gorm:"column:status;type:mint_status_enum;not null;default:'pending'"`
	TransactionHash *string          `gorm:"column:transaction_hash"`
	ContractAddress string           `gorm:"column:contract_address;not null"`
	Chain           string           `gorm:"column:chain;not null"`
	ClaimedAt       *time.Time       `gorm:"column:claimed_at"`
	MintedAt        *time.Time       `gorm:"column:minted_at"`
	LastError       *string          `gorm:"column:last_error"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (NFTToken) TableName() string { return "nft_tokens" }

func (n *NFTToken) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
