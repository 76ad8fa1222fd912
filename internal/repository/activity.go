package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warbler-social/warbler/internal/models"
	"gorm.io/gorm"
)

type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Create(ctx context.Context, event *models.ActivityEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to create activity event: %w", err)
	}
	return nil
}

// RecentForUser returns events where the user acted or was acted upon,
// newest first.
func (r *ActivityRepository) RecentForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ActivityEvent, error) {
	var events []*models.ActivityEvent
	if err := r.db.WithContext(ctx).
		Where("actor_id = ? OR target_user_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to get activity events: %w", err)
	}
	return events, nil
}

// DeleteOlderThan ages out events before the cutoff. The log is append-only
// from the application's point of view; this is operational retention only.
func (r *ActivityRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.ActivityEvent{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete old activity events: %w", res.Error)
	}
	return res.RowsAffected, nil
}
