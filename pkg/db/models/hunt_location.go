package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HuntLocation is a physical place carrying NFC tags.
type HuntLocation struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description *string   `gorm:"column:description"`
	Lat         float64   `gorm:"column:lat;type:numeric(9,6);not null"`
	Lng         float64   `gorm:"column:lng;type:numeric(9,6);not null"`
	PagePath    *string   `gorm:"column:page_path"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	TotalScans  int       `gorm:"column:total_scans;not null;default:0"`
	TokenID     *string   `gorm:"column:token_id"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (HuntLocation) TableName() string { return "hunt_locations" }

func (l *HuntLocation) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
