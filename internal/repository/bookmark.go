package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/warbler-social/warbler/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookmarkRepository struct {
	db *gorm.DB
}

func NewBookmarkRepository(db *gorm.DB) *BookmarkRepository {
	return &BookmarkRepository{db: db}
}

func (r *BookmarkRepository) Tx(tx *gorm.DB) *BookmarkRepository {
	return &BookmarkRepository{db: tx}
}

// Insert adds the bookmark if absent; the unique index keeps concurrent
// duplicates out.
func (r *BookmarkRepository) Insert(ctx context.Context, bookmark *models.Bookmark) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(bookmark)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create bookmark: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Remove deletes the bookmark if present.
func (r *BookmarkRepository) Remove(ctx context.Context, userID, postID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.Bookmark{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete bookmark: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *BookmarkRepository) Exists(ctx context.Context, userID, postID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Bookmark{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check bookmark status: %w", err)
	}
	return count > 0, nil
}

// PostIDs returns the user's bookmarked post ids, newest bookmark first.
func (r *BookmarkRepository) PostIDs(ctx context.Context, userID uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Bookmark{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Pluck("post_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to get bookmarked post ids: %w", err)
	}
	return ids, nil
}

// DeleteByPost removes the post from every user's bookmarks, used when the
// post itself is deleted.
func (r *BookmarkRepository) DeleteByPost(ctx context.Context, postID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Delete(&models.Bookmark{}).Error; err != nil {
		return fmt.Errorf("failed to delete bookmarks by post: %w", err)
	}
	return nil
}
