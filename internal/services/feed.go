package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warbler-social/warbler/internal/config"
	"github.com/warbler-social/warbler/internal/metrics"
	"github.com/warbler-social/warbler/internal/models"
	"github.com/warbler-social/warbler/internal/repository"
	"github.com/warbler-social/warbler/pkg/cache"
	"github.com/warbler-social/warbler/pkg/logger"
)

// FeedCache is the slice of the redis client the feed assembler needs.
type FeedCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// FeedPost is a read-time projection: the stored post plus the viewer's like
// state. LikedByViewer is computed per request and never persisted.
type FeedPost struct {
	*models.Post
	LikedByViewer bool `json:"liked_by_viewer"`
}

type FeedPage struct {
	Posts      []*FeedPost `json:"posts"`
	NextCursor string      `json:"next_cursor,omitempty"`
	HasMore    bool        `json:"has_more"`
}

type FeedService struct {
	postRepo     *repository.PostRepository
	followRepo   *repository.FollowRepository
	userRepo     *repository.UserRepository
	likeRepo     *repository.LikeRepository
	bookmarkRepo *repository.BookmarkRepository
	cache        FeedCache
	config       *config.FeedConfig
	logger       *logger.Logger
}

func NewFeedService(
	postRepo *repository.PostRepository,
	followRepo *repository.FollowRepository,
	userRepo *repository.UserRepository,
	likeRepo *repository.LikeRepository,
	bookmarkRepo *repository.BookmarkRepository,
	feedCache FeedCache,
	cfg *config.FeedConfig,
	logger *logger.Logger,
) *FeedService {
	return &FeedService{
		postRepo:     postRepo,
		followRepo:   followRepo,
		userRepo:     userRepo,
		likeRepo:     likeRepo,
		bookmarkRepo: bookmarkRepo,
		cache:        feedCache,
		config:       cfg,
		logger:       logger,
	}
}

func (s *FeedService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		return s.config.MaxLimit
	}
	return limit
}

// EncodeCursor marks the position after post in the (created_at, id) order.
func EncodeCursor(post *models.Post) string {
	raw := fmt.Sprintf("%d:%s", post.CreatedAt.UnixNano(), post.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor is the inverse of EncodeCursor. An empty cursor means the
// first page.
func DecodeCursor(cursor string) (*repository.Keyset, error) {
	if cursor == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, &ValidationError{Field: "cursor", Reason: "malformed"}
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return nil, &ValidationError{Field: "cursor", Reason: "malformed"}
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, &ValidationError{Field: "cursor", Reason: "malformed"}
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, &ValidationError{Field: "cursor", Reason: "malformed"}
	}
	return &repository.Keyset{CreatedAt: time.Unix(0, nanos), ID: id}, nil
}

// HomeFeed merges the viewer's own posts with posts from everyone they
// follow: newest first, ties broken by id descending. The per-author fetch is
// capped so one prolific followee cannot blow up memory.
func (s *FeedService) HomeFeed(ctx context.Context, viewerID, cursor string, limit int) (*FeedPage, error) {
	defer metrics.ObserveFeedDuration("home", time.Now())
	return s.graphFeed(ctx, viewerID, cursor, limit, true)
}

// FollowingFeed is HomeFeed without the viewer's own posts.
func (s *FeedService) FollowingFeed(ctx context.Context, viewerID, cursor string, limit int) (*FeedPage, error) {
	defer metrics.ObserveFeedDuration("following", time.Now())
	return s.graphFeed(ctx, viewerID, cursor, limit, false)
}

func (s *FeedService) graphFeed(ctx context.Context, viewerID, cursor string, limit int, includeSelf bool) (*FeedPage, error) {
	viewerUUID, err := uuid.Parse(viewerID)
	if err != nil {
		return nil, &ValidationError{Field: "viewer id", Reason: "not a valid id"}
	}
	limit = s.clampLimit(limit)

	before, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	name := "following"
	if includeSelf {
		name = "home"
	}
	cacheKey := fmt.Sprintf("feed:%s:%s:%d", name, viewerID, limit)
	if cursor == "" {
		if page := s.cachedPage(ctx, cacheKey); page != nil {
			return page, nil
		}
	}

	viewer, err := s.userRepo.GetByID(ctx, viewerUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get viewer: %w", err)
	}
	if viewer == nil {
		return nil, ErrNotFound
	}

	authors, err := s.followRepo.FollowingIDs(ctx, viewerUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get following ids: %w", err)
	}
	if includeSelf {
		authors = append(authors, viewerUUID)
	}

	// limit+1 per author so a full page can tell whether more remain.
	var merged []*models.Post
	for _, authorID := range authors {
		posts, err := s.postRepo.ByAuthor(ctx, authorID, limit+1, before)
		if err != nil {
			return nil, fmt.Errorf("failed to get posts for author: %w", err)
		}
		merged = append(merged, posts...)
	}

	page, err := s.buildPage(ctx, merged, &viewerUUID, limit)
	if err != nil {
		return nil, err
	}

	if cursor == "" {
		s.storePage(ctx, cacheKey, page)
	}
	return page, nil
}

// PublicFeed is the global recent-posts query for discovery and logged-out
// views. viewerID is optional; without it no like projection happens.
func (s *FeedService) PublicFeed(ctx context.Context, viewerID, cursor string, limit int) (*FeedPage, error) {
	defer metrics.ObserveFeedDuration("public", time.Now())
	limit = s.clampLimit(limit)

	before, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	var viewerUUID *uuid.UUID
	if viewerID != "" {
		id, err := uuid.Parse(viewerID)
		if err != nil {
			return nil, &ValidationError{Field: "viewer id", Reason: "not a valid id"}
		}
		viewerUUID = &id
	}

	cacheKey := fmt.Sprintf("feed:public:%s:%d", viewerID, limit)
	if cursor == "" {
		if page := s.cachedPage(ctx, cacheKey); page != nil {
			return page, nil
		}
	}

	posts, err := s.postRepo.Recent(ctx, limit+1, before)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent posts: %w", err)
	}

	page, err := s.buildPage(ctx, posts, viewerUUID, limit)
	if err != nil {
		return nil, err
	}

	if cursor == "" {
		s.storePage(ctx, cacheKey, page)
	}
	return page, nil
}

// BookmarkFeed resolves the user's bookmarks to post projections, newest
// post first. Bookmarks of since-deleted posts are skipped.
func (s *FeedService) BookmarkFeed(ctx context.Context, userID string, limit int) (*FeedPage, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ValidationError{Field: "user id", Reason: "not a valid id"}
	}
	limit = s.clampLimit(limit)

	ids, err := s.bookmarkRepo.PostIDs(ctx, userUUID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmarks: %w", err)
	}

	posts, err := s.postRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmarked posts: %w", err)
	}

	return s.buildPage(ctx, posts, &userUUID, limit)
}

// buildPage sorts, truncates and projects a merged post set.
func (s *FeedService) buildPage(ctx context.Context, posts []*models.Post, viewerID *uuid.UUID, limit int) (*FeedPage, error) {
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID.String() > posts[j].ID.String()
	})

	hasMore := len(posts) > limit
	if hasMore {
		posts = posts[:limit]
	}

	liked := map[uuid.UUID]bool{}
	if viewerID != nil && len(posts) > 0 {
		ids := make([]uuid.UUID, len(posts))
		for i, p := range posts {
			ids[i] = p.ID
		}
		var err error
		liked, err = s.likeRepo.LikedSet(ctx, *viewerID, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to get liked set: %w", err)
		}
	}

	page := &FeedPage{
		Posts:   make([]*FeedPost, len(posts)),
		HasMore: hasMore,
	}
	for i, p := range posts {
		page.Posts[i] = &FeedPost{Post: p, LikedByViewer: liked[p.ID]}
	}
	if hasMore && len(posts) > 0 {
		page.NextCursor = EncodeCursor(posts[len(posts)-1])
	}
	return page, nil
}

func (s *FeedService) cachedPage(ctx context.Context, key string) *FeedPage {
	if s.cache == nil {
		return nil
	}
	var page FeedPage
	if err := s.cache.GetJSON(ctx, key, &page); err != nil {
		if !cache.IsMiss(err) {
			s.logger.WithError(err).Warn("Feed cache read failed")
		}
		return nil
	}
	return &page
}

func (s *FeedService) storePage(ctx context.Context, key string, page *FeedPage) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, page, s.config.CacheTTL); err != nil {
		s.logger.WithError(err).Warn("Feed cache write failed")
	}
}

// InvalidateFeeds drops every cached feed page. Coarse, but a post create or
// delete can affect any follower's page and the pages are cheap to rebuild.
func (s *FeedService) InvalidateFeeds(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "feed:*"); err != nil {
		s.logger.WithError(err).Warn("Feed cache invalidation failed")
	}
}
