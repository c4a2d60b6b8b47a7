package scans

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitea/hunt-backend/pkg/db/models"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, scan *models.Scan) error
	FindByUserLocation(ctx context.Context, userID, locationID uuid.UUID) (*models.Scan, error)
	HasScanned(ctx context.Context, userID, locationID uuid.UUID) (bool, error)
	ListLocationIDsByUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, scan *models.Scan) error {
	return r.db.WithContext(ctx).Create(scan).Error
}

func (r *repository) FindByUserLocation(ctx context.Context, userID, locationID uuid.UUID) (*models.Scan, error) {
	var scan models.Scan
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND location_id = ?", userID, locationID).
		First(&scan).Error
	if err != nil {
		return nil, err
	}
	return &scan, nil
}

func (r *repository) HasScanned(ctx context.Context, userID, locationID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Scan{}).
		Where("user_id = ? AND location_id = ?", userID, locationID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ListLocationIDsByUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Scan{}).
		Where("user_id = ?", userID).
		Pluck("location_id", &ids).Error
	return ids, err
}
