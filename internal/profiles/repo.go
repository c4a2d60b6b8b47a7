package profiles

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kitea/hunt-backend/pkg/db/models"
	"github.com/kitea/hunt-backend/pkg/enums"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	CreateIfMissing(ctx context.Context, profile *models.Profile) (bool, error)
	Count(ctx context.Context) (int64, error)
	SetFounderNumber(ctx context.Context, id uuid.UUID, number int) error
	AttachWallet(ctx context.Context, id uuid.UUID, address string) (bool, error)
	ListWithPendingMints(ctx context.Context, limit int) ([]models.Profile, error)
	HasFounderMint(ctx context.Context, id uuid.UUID) (bool, error)
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

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateIfMissing inserts the profile and reports whether a row was created.
func (r *repository) CreateIfMissing(ctx context.Context, profile *models.Profile) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(profile)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Profile{}).Count(&count).Error
	return count, err
}

func (r *repository) SetFounderNumber(ctx context.Context, id uuid.UUID, number int) error {
	return r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"founder_number": number,
			"updated_at":     time.Now().UTC(),
		}).Error
}

// AttachWallet sets the wallet only while it is still empty. It returns false
// when the profile already carried an address.
func (r *repository) AttachWallet(ctx context.Context, id uuid.UUID, address string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ? AND wallet_address IS NULL", id).
		Updates(map[string]any{
			"wallet_address": address,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListWithPendingMints returns wallet holders that still have pending mint records.
func (r *repository) ListWithPendingMints(ctx context.Context, limit int) ([]models.Profile, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Profile
	err := r.db.WithContext(ctx).
		Where("wallet_address IS NOT NULL").
		Where("EXISTS (SELECT 1 FROM nft_tokens t WHERE t.user_id = profiles.id AND t.status = ?)", enums.MintStatusPending).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// HasFounderMint reports whether a founder record exists for the profile in any status.
func (r *repository) HasFounderMint(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.NFTToken{}).
		Where("user_id = ? AND is_founder = ?", id, true).
		Count(&count).Error
	return count > 0, err
}
