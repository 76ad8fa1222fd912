package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/warbler-social/warbler/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LikeRepository struct {
	db *gorm.DB
}

func NewLikeRepository(db *gorm.DB) *LikeRepository {
	return &LikeRepository{db: db}
}

func (r *LikeRepository) Tx(tx *gorm.DB) *LikeRepository {
	return &LikeRepository{db: tx}
}

// Insert adds the like if it is not already present. Returns false when a
// concurrent call won the race; the unique index guarantees at most one row
// per (user, post) either way.
func (r *LikeRepository) Insert(ctx context.Context, like *models.Like) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(like)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create like: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Remove deletes the like if present. Returns false when there was nothing
// to remove.
func (r *LikeRepository) Remove(ctx context.Context, userID, postID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.Like{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete like: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *LikeRepository) Exists(ctx context.Context, userID, postID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check like status: %w", err)
	}
	return count > 0, nil
}

func (r *LikeRepository) CountByPost(ctx context.Context, postID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("post_id = ?", postID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return count, nil
}

// LikedSet returns, for one viewer and a batch of posts, the subset of post
// ids the viewer has liked. One query regardless of batch size.
func (r *LikeRepository) LikedSet(ctx context.Context, userID uuid.UUID, postIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	liked := make(map[uuid.UUID]bool, len(postIDs))
	if len(postIDs) == 0 {
		return liked, nil
	}
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to get liked set: %w", err)
	}
	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}

// DeleteByPost removes every like of a post, used when the post itself is
// deleted.
func (r *LikeRepository) DeleteByPost(ctx context.Context, postID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Delete(&models.Like{}).Error; err != nil {
		return fmt.Errorf("failed to delete likes by post: %w", err)
	}
	return nil
}
