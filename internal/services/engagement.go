package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/warbler-social/warbler/internal/metrics"
	"github.com/warbler-social/warbler/internal/models"
	"github.com/warbler-social/warbler/internal/repository"
	"github.com/warbler-social/warbler/pkg/logger"
	"gorm.io/gorm"
)

// EngagementService owns the like and bookmark toggles. A toggle is a
// compare-and-set, not a blind flip: the observed state picks the intended
// transition, and the conditional insert/delete applies it at most once. N
// concurrent identical calls therefore converge to one state change; the
// losers simply observe the winner's result.
type EngagementService struct {
	db           *gorm.DB
	postRepo     *repository.PostRepository
	likeRepo     *repository.LikeRepository
	bookmarkRepo *repository.BookmarkRepository
	userRepo     *repository.UserRepository
	recorder     ActivityRecorder
	invalidator  FeedInvalidator
	logger       *logger.Logger
}

func NewEngagementService(
	db *gorm.DB,
	postRepo *repository.PostRepository,
	likeRepo *repository.LikeRepository,
	bookmarkRepo *repository.BookmarkRepository,
	userRepo *repository.UserRepository,
	recorder ActivityRecorder,
	invalidator FeedInvalidator,
	logger *logger.Logger,
) *EngagementService {
	return &EngagementService{
		db:           db,
		postRepo:     postRepo,
		likeRepo:     likeRepo,
		bookmarkRepo: bookmarkRepo,
		userRepo:     userRepo,
		recorder:     recorder,
		invalidator:  invalidator,
		logger:       logger,
	}
}

type LikeResult struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"like_count"`
}

type BookmarkResult struct {
	Bookmarked bool `json:"bookmarked"`
}

// ToggleLike flips the caller's like on the post and returns the resulting
// state. An absent post is NotFound, never a silent no-op.
func (s *EngagementService) ToggleLike(ctx context.Context, postID, userID string) (*LikeResult, error) {
	postUUID, err := uuid.Parse(postID)
	if err != nil {
		return nil, &ValidationError{Field: "post id", Reason: "not a valid id"}
	}
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ValidationError{Field: "user id", Reason: "not a valid id"}
	}

	user, err := s.userRepo.GetByID(ctx, userUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}

	post, err := s.postRepo.GetByID(ctx, postUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if post == nil {
		return nil, ErrNotFound
	}

	liked, err := s.likeRepo.Exists(ctx, userUUID, postUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to check like status: %w", err)
	}

	var applied bool
	if !liked {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			inserted, err := s.likeRepo.Tx(tx).Insert(ctx, &models.Like{
				UserID: userUUID,
				PostID: postUUID,
			})
			if err != nil {
				return err
			}
			applied = inserted
			if !inserted {
				return nil
			}
			return s.postRepo.Tx(tx).UpdateLikeCount(ctx, postUUID, 1)
		})
		liked = true
	} else {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			removed, err := s.likeRepo.Tx(tx).Remove(ctx, userUUID, postUUID)
			if err != nil {
				return err
			}
			applied = removed
			if !removed {
				return nil
			}
			return s.postRepo.Tx(tx).UpdateLikeCount(ctx, postUUID, -1)
		})
		liked = false
	}
	if err != nil {
		return nil, fmt.Errorf("failed to toggle like: %w", err)
	}

	count, err := s.likeRepo.CountByPost(ctx, postUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to count likes: %w", err)
	}

	if applied {
		eventType := models.ActivityPostLiked
		result := "liked"
		if !liked {
			eventType = models.ActivityPostUnliked
			result = "unliked"
		}
		metrics.LikeToggles.WithLabelValues(result).Inc()
		s.recorder.Record(ctx, &models.ActivityEvent{
			Type:         eventType,
			ActorID:      userUUID,
			PostID:       &postUUID,
			TargetUserID: &post.AuthorID,
		})
		// Cached pages carry the viewer's like state, so a real transition
		// makes them stale immediately, not just until the TTL.
		if s.invalidator != nil {
			s.invalidator.InvalidateFeeds(ctx)
		}
	} else {
		metrics.LikeToggles.WithLabelValues("noop").Inc()
	}

	return &LikeResult{Liked: liked, LikeCount: count}, nil
}

// ToggleBookmark mirrors ToggleLike on the caller's bookmark set.
func (s *EngagementService) ToggleBookmark(ctx context.Context, userID, postID string) (*BookmarkResult, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ValidationError{Field: "user id", Reason: "not a valid id"}
	}
	postUUID, err := uuid.Parse(postID)
	if err != nil {
		return nil, &ValidationError{Field: "post id", Reason: "not a valid id"}
	}

	user, err := s.userRepo.GetByID(ctx, userUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}

	post, err := s.postRepo.GetByID(ctx, postUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if post == nil {
		return nil, ErrNotFound
	}

	bookmarked, err := s.bookmarkRepo.Exists(ctx, userUUID, postUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to check bookmark status: %w", err)
	}

	if !bookmarked {
		if _, err := s.bookmarkRepo.Insert(ctx, &models.Bookmark{
			UserID: userUUID,
			PostID: postUUID,
		}); err != nil {
			return nil, fmt.Errorf("failed to toggle bookmark: %w", err)
		}
		bookmarked = true
	} else {
		if _, err := s.bookmarkRepo.Remove(ctx, userUUID, postUUID); err != nil {
			return nil, fmt.Errorf("failed to toggle bookmark: %w", err)
		}
		bookmarked = false
	}

	return &BookmarkResult{Bookmarked: bookmarked}, nil
}
