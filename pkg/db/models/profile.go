package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile shares its id with the identity provider's user id.
type Profile struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email         *string    `gorm:"column:email"`
	FirstName     *string    `gorm:"column:first_name"`
	LastName      *string    `gorm:"column:last_name"`
	DateOfBirth   *time.Time `gorm:"column:date_of_birth;type:date"`
	MobileNumber  *string    `gorm:"column:mobile_number"`
	WalletAddress *string    `gorm:"column:wallet_address"`
	IsAdmin       bool       `gorm:"column:is_admin;not null"`
	FounderNumber *int       `gorm:"column:founder_number"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Profile) TableName() string { return "profiles" }

// HasWallet reports whether a wallet address has been attached.
func (p Profile) HasWallet() bool {
	return p.WalletAddress != nil && *p.WalletAddress != ""
}
