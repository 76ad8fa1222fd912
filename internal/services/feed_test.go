package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warbler-social/warbler/internal/models"
)

// createPostAt inserts a post with a pinned timestamp so ordering tests are
// deterministic.
func (f *fixture) createPostAt(t *testing.T, author *models.User, body string, at time.Time) *models.Post {
	t.Helper()
	post := &models.Post{
		AuthorID:       author.ID,
		Body:           body,
		AuthorName:     author.Name,
		AuthorUsername: author.Username,
		CreatedAt:      at,
	}
	require.NoError(t, f.postRepo.Create(context.Background(), post))
	return post
}

func TestHomeFeedContainment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	carol := f.createUser(t, "carol")

	require.NoError(t, f.users.Follow(ctx, alice.ID.String(), bob.ID.String()))

	base := time.Now().Add(-time.Hour)
	mine := f.createPostAt(t, alice, "my own post", base.Add(1*time.Minute))
	followed := f.createPostAt(t, bob, "bob's post", base.Add(2*time.Minute))
	stranger := f.createPostAt(t, carol, "carol's post", base.Add(3*time.Minute))

	page, err := f.feeds.HomeFeed(ctx, alice.ID.String(), "", 10)
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)
	assert.False(t, page.HasMore)

	// Newest first; carol is not followed so her post never appears.
	assert.Equal(t, followed.ID, page.Posts[0].ID)
	assert.Equal(t, mine.ID, page.Posts[1].ID)
	for _, p := range page.Posts {
		assert.NotEqual(t, stranger.ID, p.ID)
	}
}

func TestFollowingFeedExcludesSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	require.NoError(t, f.users.Follow(ctx, alice.ID.String(), bob.ID.String()))

	base := time.Now().Add(-time.Hour)
	f.createPostAt(t, alice, "my own post", base.Add(1*time.Minute))
	bobs := f.createPostAt(t, bob, "bob's post", base.Add(2*time.Minute))

	page, err := f.feeds.FollowingFeed(ctx, alice.ID.String(), "", 10)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, bobs.ID, page.Posts[0].ID)
}

func TestHomeFeedTieBreakByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	require.NoError(t, f.users.Follow(ctx, alice.ID.String(), bob.ID.String()))

	// Two posts share one timestamp; the id tie-break keeps the order stable.
	at := time.Now().Add(-time.Hour)
	first := f.createPostAt(t, bob, "tied a", at)
	second := f.createPostAt(t, alice, "tied b", at)

	page, err := f.feeds.HomeFeed(ctx, alice.ID.String(), "", 10)
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)
	assert.Greater(t, page.Posts[0].ID.String(), page.Posts[1].ID.String())

	ids := []uuid.UUID{page.Posts[0].ID, page.Posts[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}

func TestHomeFeedCursorWalk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	require.NoError(t, f.users.Follow(ctx, alice.ID.String(), bob.ID.String()))

	base := time.Now().Add(-time.Hour)
	var all []*models.Post
	for i := 0; i < 5; i++ {
		all = append(all, f.createPostAt(t, bob, "post", base.Add(time.Duration(i)*time.Minute)))
	}
	all = append(all, f.createPostAt(t, alice, "mine", base.Add(5*time.Minute)))

	var seen []uuid.UUID
	cursor := ""
	for {
		page, err := f.feeds.HomeFeed(ctx, alice.ID.String(), cursor, 2)
		require.NoError(t, err)
		for _, p := range page.Posts {
			seen = append(seen, p.ID)
		}
		if !page.HasMore {
			break
		}
		require.NotEmpty(t, page.NextCursor)
		cursor = page.NextCursor
	}

	// Every post exactly once, newest first.
	require.Len(t, seen, len(all))
	unique := map[uuid.UUID]bool{}
	for _, id := range seen {
		assert.False(t, unique[id], "post %s appeared twice", id)
		unique[id] = true
	}
	for i, p := range all {
		assert.Equal(t, p.ID, seen[len(all)-1-i])
	}
}

func TestHomeFeedLikedByViewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	require.NoError(t, f.users.Follow(ctx, alice.ID.String(), bob.ID.String()))

	base := time.Now().Add(-time.Hour)
	liked := f.createPostAt(t, bob, "liked one", base.Add(1*time.Minute))
	f.createPostAt(t, bob, "plain one", base.Add(2*time.Minute))

	_, err := f.engagement.ToggleLike(ctx, liked.ID.String(), alice.ID.String())
	require.NoError(t, err)

	page, err := f.feeds.HomeFeed(ctx, alice.ID.String(), "", 10)
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)

	for _, p := range page.Posts {
		if p.ID == liked.ID {
			assert.True(t, p.LikedByViewer)
		} else {
			assert.False(t, p.LikedByViewer)
		}
	}
}

func TestFollowInvalidatesCachedFeeds(t *testing.T) {
	f, feedCache := newCachedFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	bobPost := f.createPostAt(t, bob, "already published", time.Now().Add(-time.Hour))

	// First page gets cached while alice follows nobody.
	page, err := f.feeds.HomeFeed(ctx, alice.ID.String(), "", 10)
	require.NoError(t, err)
	require.Empty(t, page.Posts)
	require.NotZero(t, feedCache.len())

	// The follow must push bob's existing posts into the next page, not
	// serve the stale cached empty one.
	require.NoError(t, f.users.Follow(ctx, alice.ID.String(), bob.ID.String()))

	page, err = f.feeds.HomeFeed(ctx, alice.ID.String(), "", 10)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, bobPost.ID, page.Posts[0].ID)

	// And symmetrically on unfollow.
	require.NoError(t, f.users.Unfollow(ctx, alice.ID.String(), bob.ID.String()))

	page, err = f.feeds.HomeFeed(ctx, alice.ID.String(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
}

func TestToggleLikeRefreshesCachedFeed(t *testing.T) {
	f, _ := newCachedFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	post := f.createPostAt(t, bob, "soon to be liked", time.Now().Add(-time.Hour))
	require.NoError(t, f.users.Follow(ctx, alice.ID.String(), bob.ID.String()))

	page, err := f.feeds.HomeFeed(ctx, alice.ID.String(), "", 10)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	require.False(t, page.Posts[0].LikedByViewer)

	_, err = f.engagement.ToggleLike(ctx, post.ID.String(), alice.ID.String())
	require.NoError(t, err)

	// The viewer's own like is visible immediately, not after the TTL.
	page, err = f.feeds.HomeFeed(ctx, alice.ID.String(), "", 10)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.True(t, page.Posts[0].LikedByViewer)
	assert.Equal(t, int64(1), page.Posts[0].LikeCount)
}

func TestHomeFeedUnknownViewer(t *testing.T) {
	f := newFixture(t)

	_, err := f.feeds.HomeFeed(context.Background(), uuid.NewString(), "", 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, cursor := range []string{"not base64 !!", "bm9jb2xvbg", "MTIzNDU2Nzg5OmJhZC11dWlk"} {
		_, err := DecodeCursor(cursor)
		assert.ErrorIs(t, err, ErrValidation, "cursor %q", cursor)
	}

	before, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, before)
}

func TestPublicFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")

	base := time.Now().Add(-time.Hour)
	older := f.createPostAt(t, alice, "older", base.Add(1*time.Minute))
	newer := f.createPostAt(t, bob, "newer", base.Add(2*time.Minute))

	// No viewer: everything visible, no like projection.
	page, err := f.feeds.PublicFeed(ctx, "", "", 10)
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, newer.ID, page.Posts[0].ID)
	assert.Equal(t, older.ID, page.Posts[1].ID)
	assert.False(t, page.Posts[0].LikedByViewer)

	_, err = f.engagement.ToggleLike(ctx, newer.ID.String(), alice.ID.String())
	require.NoError(t, err)

	page, err = f.feeds.PublicFeed(ctx, alice.ID.String(), "", 10)
	require.NoError(t, err)
	assert.True(t, page.Posts[0].LikedByViewer)
}

func TestBookmarkFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")

	base := time.Now().Add(-time.Hour)
	kept := f.createPostAt(t, bob, "kept", base.Add(1*time.Minute))
	doomed := f.createPostAt(t, bob, "doomed", base.Add(2*time.Minute))

	_, err := f.engagement.ToggleBookmark(ctx, alice.ID.String(), kept.ID.String())
	require.NoError(t, err)
	_, err = f.engagement.ToggleBookmark(ctx, alice.ID.String(), doomed.ID.String())
	require.NoError(t, err)

	page, err := f.feeds.BookmarkFeed(ctx, alice.ID.String(), 10)
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)

	// A bookmark of a since-deleted post disappears from the listing.
	require.NoError(t, f.posts.Delete(ctx, bob.ID.String(), doomed.ID.String()))

	page, err = f.feeds.BookmarkFeed(ctx, alice.ID.String(), 10)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, kept.ID, page.Posts[0].ID)
}
