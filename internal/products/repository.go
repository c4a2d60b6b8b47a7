package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kitea/hunt-backend/pkg/db/models"
)

// Repository reads the catalogue and records product unlocks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListActive(ctx context.Context) ([]models.Product, error)
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	HasUnlock(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	ListUnlockedProductIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	Unlock(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) (int, error)
	UnlockForLocation(ctx context.Context, tx *gorm.DB, userID, locationID uuid.UUID) (int, error)
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

func (r *repository) ListActive(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindActiveByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *repository) HasUnlock(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductUnlock{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ListUnlockedProductIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.ProductUnlock{}).
		Where("user_id = ?", userID).
		Pluck("product_id", &ids).Error
	return ids, err
}

// Unlock inserts unlock rows, skipping ones that already exist. It returns the number of new rows.
func (r *repository) Unlock(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) (int, error) {
	created := 0
	for _, productID := range productIDs {
		row := models.ProductUnlock{UserID: userID, ProductID: productID}
		res := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&row)
		if res.Error != nil {
			return created, res.Error
		}
		created += int(res.RowsAffected)
	}
	return created, nil
}

// UnlockForLocation unlocks every active product gated on the location.
func (r *repository) UnlockForLocation(ctx context.Context, tx *gorm.DB, userID, locationID uuid.UUID) (int, error) {
	repo := r.WithTx(tx).(*repository)
	var ids []uuid.UUID
	err := repo.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("is_active = ? AND requires_scan = ? AND required_location_id = ?", true, true, locationID).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	return repo.Unlock(ctx, userID, ids)
}
