package outbox

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/kitea/hunt-backend/pkg/db/models"
)

const (
	maxDLQErrorLen   = 1024
	defaultDLQReport = 50
)

// DLQRepository stores events the publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx writes the entry in the publisher's claim transaction so the
// outbox row and its dead letter commit together.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := truncateDLQError(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	if entry.FailedAt.IsZero() {
		entry.FailedAt = time.Now().UTC()
	}
	return tx.Create(&entry).Error
}

// CountSince counts dead letters recorded at or after since.
func (r *DLQRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.OutboxDLQ{}).
		Where("failed_at >= ?", since.UTC()).
		Count(&n).Error
	return n, err
}

// ListSince returns the newest dead letters recorded at or after since.
func (r *DLQRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = defaultDLQReport
	}
	var rows []models.OutboxDLQ
	err := r.db.WithContext(ctx).
		Where("failed_at >= ?", since.UTC()).
		Order("failed_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func truncateDLQError(message string) string {
	if len(message) <= maxDLQErrorLen {
		return message
	}
	cut := maxDLQErrorLen
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}
