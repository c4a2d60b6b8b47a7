package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Scan is immutable once written. (user_id, location_id) is unique.
type Scan struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	LocationID uuid.UUID `gorm:"column:location_id;type:uuid;not null"`
	TagUID     string    `gorm:"column:tag_uid;not null"`
	ScanNumber int       `gorm:"column:scan_number;not null"`
	ScannedAt  time.Time `gorm:"column:scanned_at;autoCreateTime"`
}

func (Scan) TableName() string { return "scans" }

func (s *Scan) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
