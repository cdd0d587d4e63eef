package repository

import (
	"context"

	"gorm.io/gorm"

	"invoicing-service/internal/models"
)

// AccessLogRepository appends audit rows. Logging failures must never
// break the request they describe, so callers treat errors as advisory.
type AccessLogRepository interface {
	Create(ctx context.Context, entry *models.AccessLog) error
	ListRecent(ctx context.Context, limit int) ([]models.AccessLog, error)
}

type accessLogRepository struct {
	db *gorm.DB
}

func NewAccessLogRepository(db *gorm.DB) AccessLogRepository {
	return &accessLogRepository{db: db}
}

func (r *accessLogRepository) Create(ctx context.Context, entry *models.AccessLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *accessLogRepository) ListRecent(ctx context.Context, limit int) ([]models.AccessLog, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	var entries []models.AccessLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
