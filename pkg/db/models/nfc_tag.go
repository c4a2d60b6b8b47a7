package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NFCTag carries two historical uid columns; resolution matches either.
type NFCTag struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UID            *string    `gorm:"column:uid"`
	TagUID         *string    `gorm:"column:tag_uid"`
	HuntLocationID *uuid.UUID `gorm:"column:hunt_location_id;type:uuid"`
	IsActive       bool       `gorm:"column:is_active;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (NFCTag) TableName() string { return "nfc_tags" }

func (t *NFCTag) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
