package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warbler-social/warbler/internal/models"
	"gorm.io/gorm"
)

// Keyset identifies a position in the (created_at DESC, id DESC) post order.
// Queries given a keyset return only posts strictly older than it.
type Keyset struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Tx(tx *gorm.DB) *PostRepository {
	return &PostRepository{db: tx}
}

func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

func (r *PostRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &post, nil
}

func applyKeyset(db *gorm.DB, before *Keyset) *gorm.DB {
	if before == nil {
		return db
	}
	return db.Where(
		"created_at < ? OR (created_at = ? AND id < ?)",
		before.CreatedAt, before.CreatedAt, before.ID,
	)
}

// ByAuthor returns the author's posts newest first, ties broken by id
// descending so the order is stable across calls.
func (r *PostRepository) ByAuthor(ctx context.Context, authorID uuid.UUID, limit int, before *Keyset) ([]*models.Post, error) {
	var posts []*models.Post
	db := r.db.WithContext(ctx).Where("author_id = ?", authorID)
	db = applyKeyset(db, before)
	if err := db.Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to get posts by author: %w", err)
	}
	return posts, nil
}

// Recent returns the newest posts regardless of author.
func (r *PostRepository) Recent(ctx context.Context, limit int, before *Keyset) ([]*models.Post, error) {
	var posts []*models.Post
	db := applyKeyset(r.db.WithContext(ctx), before)
	if err := db.Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to get recent posts: %w", err)
	}
	return posts, nil
}

// GetByIDs fetches a batch of posts; missing ids are silently absent from the
// result.
func (r *PostRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var posts []*models.Post
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("created_at DESC, id DESC").
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to get posts by ids: %w", err)
	}
	return posts, nil
}

// Delete removes the post row permanently. Returns the number of rows
// removed; deleting an absent post is not an error.
func (r *PostRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete post: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *PostRepository) UpdateLikeCount(ctx context.Context, postID uuid.UUID, delta int64) error {
	if err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn("like_count", gorm.Expr("like_count + ?", delta)).Error; err != nil {
		return fmt.Errorf("failed to update like count: %w", err)
	}
	return nil
}
