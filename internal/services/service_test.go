package services

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"github.com/warbler-social/warbler/internal/config"
	"github.com/warbler-social/warbler/internal/locks"
	"github.com/warbler-social/warbler/internal/models"
	"github.com/warbler-social/warbler/internal/moderation"
	"github.com/warbler-social/warbler/internal/repository"
	"github.com/warbler-social/warbler/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// memoryRecorder captures activity events in-process so tests can assert on
// them without a broker.
type memoryRecorder struct {
	mu     sync.Mutex
	events []*models.ActivityEvent
}

func (r *memoryRecorder) Record(_ context.Context, event *models.ActivityEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *memoryRecorder) eventsOfType(t models.ActivityType) []*models.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ActivityEvent
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// memoryCache is a map-backed FeedCache, so cache coherence tests run without
// a redis server. Misses report redis.Nil the way the real client does.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if !ok {
		return redis.Nil
	}
	return json.Unmarshal(data, dest)
}

func (c *memoryCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	return nil
}

func (c *memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *memoryCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every goroutine on the same in-memory store.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, repository.Migrate(db))
	return db
}

type fixture struct {
	db         *gorm.DB
	recorder   *memoryRecorder
	users      *UserService
	posts      *PostService
	engagement *EngagementService
	feeds      *FeedService
	activity   *ActivityService

	userRepo     *repository.UserRepository
	followRepo   *repository.FollowRepository
	postRepo     *repository.PostRepository
	likeRepo     *repository.LikeRepository
	bookmarkRepo *repository.BookmarkRepository
	activityRepo *repository.ActivityRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithCache(t, nil)
}

// newCachedFixture wires a live in-memory cache so tests can observe cached
// pages and their invalidation.
func newCachedFixture(t *testing.T) (*fixture, *memoryCache) {
	t.Helper()
	feedCache := newMemoryCache()
	return newFixtureWithCache(t, feedCache), feedCache
}

func newFixtureWithCache(t *testing.T, feedCache FeedCache) *fixture {
	t.Helper()

	db := newTestDB(t)
	log := logger.NewNop()
	recorder := &memoryRecorder{}

	f := &fixture{
		db:           db,
		recorder:     recorder,
		userRepo:     repository.NewUserRepository(db),
		followRepo:   repository.NewFollowRepository(db),
		postRepo:     repository.NewPostRepository(db),
		likeRepo:     repository.NewLikeRepository(db),
		bookmarkRepo: repository.NewBookmarkRepository(db),
		activityRepo: repository.NewActivityRepository(db),
	}

	filter, err := moderation.NewFilter(nil)
	require.NoError(t, err)

	feedCfg := &config.FeedConfig{
		DefaultLimit: 20,
		MaxLimit:     100,
		CacheTTL:     time.Minute,
	}

	f.feeds = NewFeedService(f.postRepo, f.followRepo, f.userRepo, f.likeRepo, f.bookmarkRepo, feedCache, feedCfg, log)
	f.users = NewUserService(db, f.userRepo, f.followRepo, locks.NewKeyedMutex(), recorder, f.feeds, log)
	f.posts = NewPostService(db, f.postRepo, f.userRepo, f.likeRepo, f.bookmarkRepo, filter, recorder, f.feeds, log)
	f.engagement = NewEngagementService(db, f.postRepo, f.likeRepo, f.bookmarkRepo, f.userRepo, recorder, f.feeds, log)
	f.activity = NewActivityService(f.activityRepo, log)
	return f
}

func (f *fixture) createUser(t *testing.T, username string) *models.User {
	t.Helper()
	user, err := f.users.Register(context.Background(), &RegisterRequest{
		Name:     username,
		Username: username,
		Email:    username + "@example.com",
		Password: "hunter22",
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) createPost(t *testing.T, author *models.User, body string) *models.Post {
	t.Helper()
	post, err := f.posts.Create(context.Background(), author.ID.String(), &CreatePostRequest{Body: body})
	require.NoError(t, err)
	return post
}
