package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/warbler-social/warbler/internal/metrics"
	"github.com/warbler-social/warbler/internal/models"
	"github.com/warbler-social/warbler/internal/moderation"
	"github.com/warbler-social/warbler/internal/repository"
	"github.com/warbler-social/warbler/pkg/logger"
	"gorm.io/gorm"
)

// MaxPostLength is the body limit in runes.
const MaxPostLength = 280

// FeedInvalidator drops cached feed pages after a write. Best-effort: a
// failed invalidation means a stale page until the TTL, not a wrong write.
type FeedInvalidator interface {
	InvalidateFeeds(ctx context.Context)
}

type PostService struct {
	db           *gorm.DB
	postRepo     *repository.PostRepository
	userRepo     *repository.UserRepository
	likeRepo     *repository.LikeRepository
	bookmarkRepo *repository.BookmarkRepository
	filter       *moderation.Filter
	recorder     ActivityRecorder
	invalidator  FeedInvalidator
	logger       *logger.Logger
}

func NewPostService(
	db *gorm.DB,
	postRepo *repository.PostRepository,
	userRepo *repository.UserRepository,
	likeRepo *repository.LikeRepository,
	bookmarkRepo *repository.BookmarkRepository,
	filter *moderation.Filter,
	recorder ActivityRecorder,
	invalidator FeedInvalidator,
	logger *logger.Logger,
) *PostService {
	return &PostService{
		db:           db,
		postRepo:     postRepo,
		userRepo:     userRepo,
		likeRepo:     likeRepo,
		bookmarkRepo: bookmarkRepo,
		filter:       filter,
		recorder:     recorder,
		invalidator:  invalidator,
		logger:       logger,
	}
}

type CreatePostRequest struct {
	Body string `json:"body" binding:"required"`
}

// Create validates and moderates the body, snapshots the author's public
// profile into the post, and persists it. Validation and moderation both
// reject before anything is written.
func (s *PostService) Create(ctx context.Context, authorID string, req *CreatePostRequest) (*models.Post, error) {
	authorUUID, err := uuid.Parse(authorID)
	if err != nil {
		return nil, &ValidationError{Field: "author id", Reason: "not a valid id"}
	}

	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, &ValidationError{Field: "body", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(body) > MaxPostLength {
		return nil, &ValidationError{Field: "body", Reason: fmt.Sprintf("must be at most %d characters", MaxPostLength)}
	}

	if verdict := s.filter.Classify(body); !verdict.Allowed {
		metrics.ModerationBlocked.WithLabelValues(verdict.Rule).Inc()
		return nil, &BlockedError{Rule: verdict.Rule}
	}

	author, err := s.userRepo.GetByID(ctx, authorUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get author: %w", err)
	}
	if author == nil {
		return nil, ErrNotFound
	}

	post := &models.Post{
		AuthorID:         authorUUID,
		Body:             body,
		AuthorName:       author.Name,
		AuthorUsername:   author.Username,
		AuthorProfilePic: author.ProfilePic,
		AuthorVerified:   author.Verified,
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	metrics.PostsCreated.Inc()
	s.recorder.Record(ctx, &models.ActivityEvent{
		Type:     models.ActivityPostCreated,
		ActorID:  authorUUID,
		PostID:   &post.ID,
		Metadata: models.JSONMap{"body_length": utf8.RuneCountInString(body)},
	})
	if s.invalidator != nil {
		s.invalidator.InvalidateFeeds(ctx)
	}

	s.logger.WithFields(map[string]interface{}{
		"post_id":   post.ID,
		"author_id": authorID,
	}).Info("Post created")
	return post, nil
}

func (s *PostService) GetByID(ctx context.Context, postID string) (*models.Post, error) {
	id, err := uuid.Parse(postID)
	if err != nil {
		return nil, &ValidationError{Field: "post id", Reason: "not a valid id"}
	}

	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if post == nil {
		return nil, ErrNotFound
	}
	return post, nil
}

// Delete removes the post and cascades into its likes and every user's
// bookmark of it. Deleting an absent post is a no-op so duplicate client
// retries succeed.
func (s *PostService) Delete(ctx context.Context, actorID, postID string) error {
	actorUUID, err := uuid.Parse(actorID)
	if err != nil {
		return &ValidationError{Field: "actor id", Reason: "not a valid id"}
	}
	postUUID, err := uuid.Parse(postID)
	if err != nil {
		return &ValidationError{Field: "post id", Reason: "not a valid id"}
	}

	post, err := s.postRepo.GetByID(ctx, postUUID)
	if err != nil {
		return fmt.Errorf("failed to get post: %w", err)
	}
	if post == nil {
		return nil
	}

	if post.AuthorID != actorUUID {
		return ErrPermissionDenied
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.postRepo.Tx(tx).Delete(ctx, postUUID); err != nil {
			return err
		}
		if err := s.likeRepo.Tx(tx).DeleteByPost(ctx, postUUID); err != nil {
			return err
		}
		return s.bookmarkRepo.Tx(tx).DeleteByPost(ctx, postUUID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	metrics.PostsDeleted.Inc()
	s.recorder.Record(ctx, &models.ActivityEvent{
		Type:    models.ActivityPostDeleted,
		ActorID: actorUUID,
		PostID:  &postUUID,
	})
	if s.invalidator != nil {
		s.invalidator.InvalidateFeeds(ctx)
	}

	s.logger.WithFields(map[string]interface{}{
		"post_id":  postID,
		"actor_id": actorID,
	}).Info("Post deleted")
	return nil
}

// ByAuthor returns the author's posts newest first.
func (s *PostService) ByAuthor(ctx context.Context, authorID string, limit int) ([]*models.Post, error) {
	id, err := uuid.Parse(authorID)
	if err != nil {
		return nil, &ValidationError{Field: "author id", Reason: "not a valid id"}
	}
	posts, err := s.postRepo.ByAuthor(ctx, id, limit, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get posts by author: %w", err)
	}
	return posts, nil
}
