package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warbler-social/warbler/internal/models"
)

func TestToggleLikeRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	post := f.createPost(t, bob, "morning coffee thread")

	result, err := f.engagement.ToggleLike(ctx, post.ID.String(), alice.ID.String())
	require.NoError(t, err)
	assert.True(t, result.Liked)
	assert.Equal(t, int64(1), result.LikeCount)

	stored, err := f.posts.GetByID(ctx, post.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.LikeCount)

	result, err = f.engagement.ToggleLike(ctx, post.ID.String(), alice.ID.String())
	require.NoError(t, err)
	assert.False(t, result.Liked)
	assert.Equal(t, int64(0), result.LikeCount)

	stored, err = f.posts.GetByID(ctx, post.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.LikeCount)

	liked := f.recorder.eventsOfType(models.ActivityPostLiked)
	unliked := f.recorder.eventsOfType(models.ActivityPostUnliked)
	require.Len(t, liked, 1)
	require.Len(t, unliked, 1)
	assert.Equal(t, alice.ID, liked[0].ActorID)
	require.NotNil(t, liked[0].TargetUserID)
	assert.Equal(t, bob.ID, *liked[0].TargetUserID)
}

func TestToggleLikeMissingPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")

	_, err := f.engagement.ToggleLike(ctx, uuid.NewString(), alice.ID.String())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.engagement.ToggleLike(ctx, "garbage", alice.ID.String())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestToggleLikeMissingUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bob := f.createUser(t, "bob")
	post := f.createPost(t, bob, "hello")

	_, err := f.engagement.ToggleLike(ctx, post.ID.String(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

// Concurrent toggles on the same (user, post) pair must leave the like row
// and the counter consistent: at most one state change per real transition,
// count equal to the number of surviving rows.
func TestToggleLikeConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	post := f.createPost(t, bob, "pile on")

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := f.engagement.ToggleLike(ctx, post.ID.String(), alice.ID.String())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	exists, err := f.likeRepo.Exists(ctx, alice.ID, post.ID)
	require.NoError(t, err)

	stored, err := f.posts.GetByID(ctx, post.ID.String())
	require.NoError(t, err)

	if exists {
		assert.Equal(t, int64(1), stored.LikeCount)
	} else {
		assert.Equal(t, int64(0), stored.LikeCount)
	}
}

func TestToggleBookmarkRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	post := f.createPost(t, bob, "save this for later")

	result, err := f.engagement.ToggleBookmark(ctx, alice.ID.String(), post.ID.String())
	require.NoError(t, err)
	assert.True(t, result.Bookmarked)

	exists, err := f.bookmarkRepo.Exists(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	result, err = f.engagement.ToggleBookmark(ctx, alice.ID.String(), post.ID.String())
	require.NoError(t, err)
	assert.False(t, result.Bookmarked)

	exists, err = f.bookmarkRepo.Exists(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestToggleBookmarkMissingPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")

	_, err := f.engagement.ToggleBookmark(ctx, alice.ID.String(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}
