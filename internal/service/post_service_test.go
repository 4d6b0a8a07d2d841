package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"snapshare/internal/models"
	"snapshare/internal/notifications"
	"snapshare/internal/repository"
	"snapshare/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostService_CreatePost(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice")

	_, err := e.postSvc.CreatePost(ctx, CreatePostInput{AuthorID: alice.ID, Caption: "hi"})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeValidation))

	post, err := e.postSvc.CreatePost(ctx, CreatePostInput{
		AuthorID: alice.ID,
		Caption:  "sunset",
		Image:    "/media/posts/a.jpg",
	})
	require.NoError(t, err)
	assert.NotZero(t, post.ID)
	assert.Equal(t, "alice", post.Author.Username)
	assert.Empty(t, post.Author.Email)
	assert.Empty(t, post.LikedBy)
	assert.NotNil(t, post.Comments)

	feed, err := e.postSvc.ListFeed(ctx, Page{})
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "sunset", feed[0].Caption)
}

func TestPostService_CreatePostUnknownAuthor(t *testing.T) {
	e := newEngine(t)

	_, err := e.postSvc.CreatePost(context.Background(), CreatePostInput{AuthorID: 99, Image: "x.jpg"})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostService_LikeTwiceKeepsSingleLike(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice")
	bob := testutil.CreateUser(t, e.db, "bob")
	post := testutil.CreatePost(t, e.db, alice.ID, "p")

	require.NoError(t, e.postSvc.LikePost(ctx, bob.ID, post.ID))
	require.NoError(t, e.postSvc.LikePost(ctx, bob.ID, post.ID))

	likes, err := e.posts.LikedBy(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, likes)
	e.flush()
	assert.Len(t, e.notifier.sent(), 1, "second like must not notify")
}

func TestPostService_LikeThenUnlikeRestoresLikes(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice")
	bob := testutil.CreateUser(t, e.db, "bob")
	carol := testutil.CreateUser(t, e.db, "carol")
	post := testutil.CreatePost(t, e.db, alice.ID, "p")
	require.NoError(t, e.postSvc.LikePost(ctx, carol.ID, post.ID))

	before, err := e.posts.LikedBy(ctx, post.ID)
	require.NoError(t, err)

	require.NoError(t, e.postSvc.LikePost(ctx, bob.ID, post.ID))
	require.NoError(t, e.postSvc.UnlikePost(ctx, bob.ID, post.ID))

	after, err := e.posts.LikedBy(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// Unliking again changes nothing and sends nothing.
	e.flush()
	sentBefore := len(e.notifier.sent())
	require.NoError(t, e.postSvc.UnlikePost(ctx, bob.ID, post.ID))
	e.flush()
	assert.Len(t, e.notifier.sent(), sentBefore)
}

func TestPostService_LikeNotifiesAuthorWithActorSummary(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice")
	bob := testutil.CreateUser(t, e.db, "bob")
	post := testutil.CreatePost(t, e.db, alice.ID, "p")

	require.NoError(t, e.postSvc.LikePost(ctx, bob.ID, post.ID))
	require.NoError(t, e.postSvc.UnlikePost(ctx, bob.ID, post.ID))

	e.flush()
	sent := e.notifier.sent()
	require.Len(t, sent, 2)

	byType := map[string]sentEvent{}
	for _, se := range sent {
		byType[se.event.Type] = se
	}
	like := byType[notifications.EventLike]
	assert.Equal(t, alice.ID, like.recipientID)
	assert.Equal(t, notifications.EventLike, like.event.Type)
	assert.Equal(t, bob.ID, like.event.ActorID)
	assert.Equal(t, post.ID, like.event.PostID)
	require.NotNil(t, like.event.Actor)
	assert.Equal(t, "bob", like.event.Actor.Username)
	assert.Equal(t, notifications.MessageLike, like.event.Message)

	dislike, ok := byType[notifications.EventDislike]
	require.True(t, ok)
	assert.Equal(t, alice.ID, dislike.recipientID)
	assert.Equal(t, notifications.MessageDislike, dislike.event.Message)
}

// blockingNotifier holds every Notify call until release is closed.
type blockingNotifier struct {
	release chan struct{}
	calls   chan uint
}

func (n *blockingNotifier) Notify(_ context.Context, recipientID uint, _ notifications.Event) {
	n.calls <- recipientID
	<-n.release
}

func TestPostService_LikeDoesNotWaitForNotifier(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	notifier := &blockingNotifier{release: make(chan struct{}), calls: make(chan uint, 1)}
	users := repository.NewUserRepository(db)
	svc := NewPostService(repository.NewPostRepository(db), repository.NewBookmarkRepository(db), users, notifier)

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	post := testutil.CreatePost(t, db, alice.ID, "p")

	done := make(chan error, 1)
	go func() { done <- svc.LikePost(ctx, bob.ID, post.ID) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("LikePost waited on the notifier")
	}

	select {
	case recipient := <-notifier.calls:
		assert.Equal(t, alice.ID, recipient)
	case <-time.After(time.Second):
		t.Fatal("notification never handed off")
	}
	close(notifier.release)
	svc.WaitNotifications()
}

func TestPostService_SelfLikeDoesNotNotify(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice")
	post := testutil.CreatePost(t, e.db, alice.ID, "p")

	require.NoError(t, e.postSvc.LikePost(ctx, alice.ID, post.ID))

	likes, err := e.posts.LikedBy(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{alice.ID}, likes)
	e.flush()
	assert.Empty(t, e.notifier.sent())
}

func TestPostService_LikeMissingPost(t *testing.T) {
	e := newEngine(t)
	bob := testutil.CreateUser(t, e.db, "bob")

	err := e.postSvc.LikePost(context.Background(), bob.ID, 404)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	e.flush()
	assert.Empty(t, e.notifier.sent())
}

func TestPostService_DeleteByNonAuthorIsForbidden(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice")
	bob := testutil.CreateUser(t, e.db, "bob")
	post := testutil.CreatePost(t, e.db, alice.ID, "p")
	_, err := e.commentSvc.AddComment(ctx, AddCommentInput{AuthorID: bob.ID, PostID: post.ID, Text: "hey"})
	require.NoError(t, err)
	require.NoError(t, e.postSvc.LikePost(ctx, bob.ID, post.ID))

	err = e.postSvc.DeletePost(ctx, DeletePostInput{ActorID: bob.ID, PostID: post.ID})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeForbidden))
	assert.Equal(t, 403, models.StatusFor(err))

	got, err := e.posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, got.ID)

	comments, err := e.commentSvc.ListComments(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 1)

	likes, err := e.posts.LikedBy(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, likes)
}

func TestPostService_DeleteByAuthorCascades(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice")
	bob := testutil.CreateUser(t, e.db, "bob")
	post := testutil.CreatePost(t, e.db, alice.ID, "doomed")
	keep := testutil.CreatePost(t, e.db, alice.ID, "keep")

	_, err := e.commentSvc.AddComment(ctx, AddCommentInput{AuthorID: bob.ID, PostID: post.ID, Text: "first"})
	require.NoError(t, err)
	require.NoError(t, e.postSvc.LikePost(ctx, bob.ID, post.ID))
	state, err := e.postSvc.ToggleBookmark(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	require.Equal(t, BookmarkSaved, state)

	require.NoError(t, e.postSvc.DeletePost(ctx, DeletePostInput{ActorID: alice.ID, PostID: post.ID}))

	feed, err := e.postSvc.ListFeed(ctx, Page{})
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, keep.ID, feed[0].ID)

	var count int64
	require.NoError(t, e.db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, e.db.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&count).Error)
	assert.Zero(t, count)

	saved, err := e.bookmarks.ListPosts(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, saved)

	_, err = e.commentSvc.ListComments(ctx, post.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostService_BookmarkToggle(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice")
	bob := testutil.CreateUser(t, e.db, "bob")
	post := testutil.CreatePost(t, e.db, alice.ID, "p")

	state, err := e.postSvc.ToggleBookmark(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, BookmarkSaved, state)

	saved, err := e.bookmarks.ListPosts(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, post.ID, saved[0].ID)

	state, err = e.postSvc.ToggleBookmark(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, BookmarkUnsaved, state)

	saved, err = e.bookmarks.ListPosts(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, saved)

	_, err = e.postSvc.ToggleBookmark(ctx, bob.ID, 404)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostService_ListUserPostsOnlyOwnNewestFirst(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice")
	bob := testutil.CreateUser(t, e.db, "bob")
	first := testutil.CreatePost(t, e.db, alice.ID, "first")
	testutil.CreatePost(t, e.db, bob.ID, "bob's")
	second := testutil.CreatePost(t, e.db, alice.ID, "second")

	posts, err := e.postSvc.ListUserPosts(ctx, alice.ID, Page{Limit: 500})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, second.ID, posts[0].ID)
	assert.Equal(t, first.ID, posts[1].ID)
}

func TestPostService_ListFeedWithoutLimitReturnsEveryPost(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice")
	bob := testutil.CreateUser(t, e.db, "bob")
	for i := 0; i < 25; i++ {
		testutil.CreatePost(t, e.db, alice.ID, fmt.Sprintf("alice %d", i))
	}
	testutil.CreatePost(t, e.db, bob.ID, "bob")

	feed, err := e.postSvc.ListFeed(ctx, Page{})
	require.NoError(t, err)
	assert.Len(t, feed, 26)

	own, err := e.postSvc.ListUserPosts(ctx, alice.ID, Page{})
	require.NoError(t, err)
	assert.Len(t, own, 25)

	page, err := e.postSvc.ListFeed(ctx, Page{Limit: 10, Offset: 20})
	require.NoError(t, err)
	assert.Len(t, page, 6)

	tail, err := e.postSvc.ListFeed(ctx, Page{Offset: 24})
	require.NoError(t, err)
	assert.Len(t, tail, 2)
}

func TestPage_Normalize(t *testing.T) {
	assert.Equal(t, Page{}, Page{}.normalize())
	assert.Equal(t, Page{}, Page{Limit: -4}.normalize())
	assert.Equal(t, Page{Limit: MaxPageSize, Offset: 0}, Page{Limit: 1000, Offset: -3}.normalize())
	assert.Equal(t, Page{Limit: 5, Offset: 10}, Page{Limit: 5, Offset: 10}.normalize())
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	getByIDFn       func(context.Context, uint) (*models.Post, error)
	addLikeFn       func(context.Context, uint, uint) (bool, error)
	deleteCascadeFn func(context.Context, uint) error
}

func (s *postRepoStub) Create(context.Context, *models.Post) error { return nil }
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) List(context.Context, int, int) ([]*models.Post, error) { return nil, nil }
func (s *postRepoStub) ListByAuthor(context.Context, uint, int, int) ([]*models.Post, error) {
	return nil, nil
}
func (s *postRepoStub) AddLike(ctx context.Context, userID, postID uint) (bool, error) {
	return s.addLikeFn(ctx, userID, postID)
}
func (s *postRepoStub) RemoveLike(context.Context, uint, uint) (bool, error) { return false, nil }
func (s *postRepoStub) LikedBy(context.Context, uint) ([]uint, error)        { return nil, nil }
func (s *postRepoStub) DeleteCascade(ctx context.Context, postID uint) error {
	return s.deleteCascadeFn(ctx, postID)
}

func TestPostService_LikeStorageFailureDoesNotNotify(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := NewPostService(&postRepoStub{
		getByIDFn: func(context.Context, uint) (*models.Post, error) {
			return &models.Post{ID: 1, AuthorID: 2}, nil
		},
		addLikeFn: func(context.Context, uint, uint) (bool, error) {
			return false, models.NewInternalError(errors.New("connection reset"))
		},
	}, nil, nil, notifier)

	err := svc.LikePost(context.Background(), 3, 1)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeInternal))
	svc.WaitNotifications()
	assert.Empty(t, notifier.sent())
}

func TestPostService_DeleteDoesNotCascadeWhenForbidden(t *testing.T) {
	called := false
	svc := NewPostService(&postRepoStub{
		getByIDFn: func(context.Context, uint) (*models.Post, error) {
			return &models.Post{ID: 1, AuthorID: 2}, nil
		},
		deleteCascadeFn: func(context.Context, uint) error {
			called = true
			return nil
		},
	}, nil, nil, nil)

	err := svc.DeletePost(context.Background(), DeletePostInput{ActorID: 3, PostID: 1})
	assert.True(t, models.IsCode(err, models.CodeForbidden))
	assert.False(t, called)
}

// Bob likes Alice's post while Alice has a socket open on the hub.
func TestPostService_LikeReachesConnectedAuthorOnce(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, rdb := testutil.NewRedis(t)
	ctx := context.Background()

	hub := notifications.NewHub(rdb)
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })
	dispatcher := notifications.NewDispatcher(hub, notifications.NewNotifier(rdb))

	users := repository.NewUserRepository(db)
	svc := NewPostService(repository.NewPostRepository(db), repository.NewBookmarkRepository(db), users, dispatcher)

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	post := testutil.CreatePost(t, db, alice.ID, "p")

	aliceConn, err := hub.Register(alice.ID, nil)
	require.NoError(t, err)

	require.NoError(t, svc.LikePost(ctx, bob.ID, post.ID))

	select {
	case raw := <-aliceConn.Send:
		var ev notifications.Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, notifications.EventLike, ev.Type)
		assert.Equal(t, bob.ID, ev.ActorID)
		assert.Equal(t, post.ID, ev.PostID)
		require.NotNil(t, ev.Actor)
		assert.Equal(t, "bob", ev.Actor.Username)
	case <-time.After(2 * time.Second):
		t.Fatal("alice did not receive the like notification")
	}

	require.NoError(t, svc.LikePost(ctx, bob.ID, post.ID))
	select {
	case raw := <-aliceConn.Send:
		t.Fatalf("unexpected second notification: %s", raw)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPostService_ConcurrentLikesAndUnlikesCommute(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice")
	post := testutil.CreatePost(t, e.db, alice.ID, "p")

	const actors = 16
	var want []uint
	var wg sync.WaitGroup
	for i := 0; i < actors; i++ {
		u := testutil.CreateUser(t, e.db, fmt.Sprintf("fan%d", i))
		keep := i%2 == 0
		if keep {
			want = append(want, u.ID)
		}
		wg.Add(1)
		go func(userID uint, keep bool) {
			defer wg.Done()
			assert.NoError(t, e.postSvc.LikePost(ctx, userID, post.ID))
			if keep {
				assert.NoError(t, e.postSvc.LikePost(ctx, userID, post.ID))
				return
			}
			assert.NoError(t, e.postSvc.UnlikePost(ctx, userID, post.ID))
		}(u.ID, keep)
	}
	wg.Wait()
	e.flush()

	likes, err := e.posts.LikedBy(ctx, post.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, want, likes)

	var likeEvents int
	for _, se := range e.notifier.sent() {
		if se.event.Type == notifications.EventLike {
			likeEvents++
		}
	}
	assert.Equal(t, actors, likeEvents, "one like notification per actor")
}
