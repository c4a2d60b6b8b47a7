package mints

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitea/hunt-backend/pkg/db/models"
	"github.com/kitea/hunt-backend/pkg/enums"
)

const maxLastErrorLen = 1000

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.NFTToken, error)
	FindByKey(ctx context.Context, userID uuid.UUID, locationID *uuid.UUID) (*models.NFTToken, error)
	Create(ctx context.Context, record *models.NFTToken) error
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	Release(ctx context.Context, id uuid.UUID, cause error) error
	RecordSubmission(ctx context.Context, id uuid.UUID, txHash string) error
	MarkMinted(ctx context.Context, id uuid.UUID, txHash string) error
	ListStaleMinting(ctx context.Context, claimedBefore time.Time, limit int) ([]models.NFTToken, error)
	ListPendingByUser(ctx context.Context, userID uuid.UUID) ([]models.NFTToken, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.NFTToken, error)
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

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.NFTToken, error) {
	var record models.NFTToken
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByKey loads the record for (user, location). A nil location selects the founder record.
func (r *repository) FindByKey(ctx context.Context, userID uuid.UUID, locationID *uuid.UUID) (*models.NFTToken, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if locationID == nil {
		query = query.Where("is_founder = ?", true)
	} else {
		query = query.Where("hunt_location_id = ?", *locationID)
	}
	var record models.NFTToken
	if err := query.First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) Create(ctx context.Context, record *models.NFTToken) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Claim moves a pending record to minting. Only one caller observes true.
func (r *repository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.NFTToken{}).
		Where("id = ? AND status = ?", id, enums.MintStatusPending).
		Updates(map[string]any{
			"status":     enums.MintStatusMinting,
			"claimed_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Release hands a minting claim back to pending and records why. Only call it
// when no transaction for the claim can still land.
func (r *repository) Release(ctx context.Context, id uuid.UUID, cause error) error {
	updates := map[string]any{
		"status":           enums.MintStatusPending,
		"claimed_at":       nil,
		"transaction_hash": nil,
		"updated_at":       time.Now().UTC(),
	}
	if cause != nil {
		msg := cause.Error()
		if len(msg) > maxLastErrorLen {
			msg = msg[:maxLastErrorLen]
		}
		updates["last_error"] = msg
	}
	return r.db.WithContext(ctx).
		Model(&models.NFTToken{}).
		Where("id = ? AND status = ?", id, enums.MintStatusMinting).
		Updates(updates).Error
}

// RecordSubmission stores the broadcast hash on a claimed record.
func (r *repository) RecordSubmission(ctx context.Context, id uuid.UUID, txHash string) error {
	res := r.db.WithContext(ctx).
		Model(&models.NFTToken{}).
		Where("id = ? AND status = ?", id, enums.MintStatusMinting).
		Updates(map[string]any{
			"transaction_hash": txHash,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) MarkMinted(ctx context.Context, id uuid.UUID, txHash string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.NFTToken{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           enums.MintStatusMinted,
			"transaction_hash": txHash,
			"minted_at":        now,
			"last_error":       nil,
			"updated_at":       now,
		}).Error
}

// ListStaleMinting returns minting records claimed before the cutoff, oldest first.
func (r *repository) ListStaleMinting(ctx context.Context, claimedBefore time.Time, limit int) ([]models.NFTToken, error) {
	var rows []models.NFTToken
	query := r.db.WithContext(ctx).
		Where("status = ? AND (claimed_at IS NULL OR claimed_at < ?)", enums.MintStatusMinting, claimedBefore.UTC()).
		Order("claimed_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	return rows, err
}

func (r *repository) ListPendingByUser(ctx context.Context, userID uuid.UUID) ([]models.NFTToken, error) {
	var rows []models.NFTToken
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.MintStatusPending).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.NFTToken, error) {
	var rows []models.NFTToken
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_founder DESC, created_at ASC").
		Find(&rows).Error
	return rows, err
}
