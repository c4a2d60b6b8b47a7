package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a shop item. RequiresScan gates purchase behind a scan of RequiredLocationID.
type Product struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name               string          `gorm:"column:name;not null"`
	Description        *string         `gorm:"column:description"`
	ImageURL           *string         `gorm:"column:image_url"`
	Price              decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Currency           string          `gorm:"column:currency;not null;default:'aud'"`
	IsActive           bool            `gorm:"column:is_active;not null"`
	RequiresScan       bool            `gorm:"column:requires_scan;not null"`
	RequiredLocationID *uuid.UUID      `gorm:"column:required_location_id;type:uuid"`
	HuntLocationID     *uuid.UUID      `gorm:"column:hunt_location_id;type:uuid"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
