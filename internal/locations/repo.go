package locations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitea/hunt-backend/pkg/db/models"
)

// Repository reads hunt locations and owns the scan counter.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.HuntLocation, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.HuntLocation, error)
	ListActive(ctx context.Context) ([]models.HuntLocation, error)
	IncrementTotalScans(ctx context.Context, id uuid.UUID) (int, error)
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

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.HuntLocation, error) {
	var location models.HuntLocation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&location).Error; err != nil {
		return nil, err
	}
	return &location, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.HuntLocation, error) {
	out := make(map[uuid.UUID]models.HuntLocation, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.HuntLocation
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.HuntLocation, error) {
	var rows []models.HuntLocation
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

// IncrementTotalScans bumps the counter in a single statement and returns the
// new value, which is the caller's edition number.
func (r *repository) IncrementTotalScans(ctx context.Context, id uuid.UUID) (int, error) {
	var total []int
	err := r.db.WithContext(ctx).
		Raw(`UPDATE hunt_locations SET total_scans = total_scans + 1, updated_at = ? WHERE id = ? RETURNING total_scans`, time.Now().UTC(), id).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if len(total) == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return total[0], nil
}
