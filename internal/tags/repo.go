package tags

import (
	"context"

	"gorm.io/gorm"

	"github.com/kitea/hunt-backend/pkg/db/models"
)

type Repository interface {
	FindActiveByUID(ctx context.Context, uid string) (*models.NFCTag, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// FindActiveByUID matches either alias column.
func (r *repository) FindActiveByUID(ctx context.Context, uid string) (*models.NFCTag, error) {
	var tag models.NFCTag
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("uid = ? OR tag_uid = ?", uid, uid).
		Order("created_at ASC").
		First(&tag).Error
	if err != nil {
		return nil, err
	}
	return &tag, nil
}
