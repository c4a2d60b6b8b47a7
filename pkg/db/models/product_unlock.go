package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductUnlock struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	UnlockedAt time.Time `gorm:"column:unlocked_at;autoCreateTime"`
}

func (ProductUnlock) TableName() string { return "product_unlocks" }

func (u *ProductUnlock) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
