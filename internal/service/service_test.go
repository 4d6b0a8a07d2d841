package service

import (
	"context"
	"sync"
	"testing"

	"snapshare/internal/notifications"
	"snapshare/internal/repository"
	"snapshare/internal/testutil"

	"gorm.io/gorm"
)

type sentEvent struct {
	recipientID uint
	event       notifications.Event
}

// recordingNotifier captures every Notify call.
type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) Notify(_ context.Context, recipientID uint, ev notifications.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{recipientID: recipientID, event: ev})
}

func (n *recordingNotifier) sent() []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEvent(nil), n.events...)
}

type engine struct {
	db        *gorm.DB
	users     repository.UserRepository
	posts     repository.PostRepository
	comments  repository.CommentRepository
	follows   repository.FollowRepository
	bookmarks repository.BookmarkRepository
	notifier  *recordingNotifier

	postSvc    *PostService
	commentSvc *CommentService
	followSvc  *FollowService
}

// flush waits for notifications queued by the services.
func (e *engine) flush() {
	e.postSvc.WaitNotifications()
	e.followSvc.WaitNotifications()
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	db := testutil.NewTestDB(t)
	e := &engine{
		db:        db,
		users:     repository.NewUserRepository(db),
		posts:     repository.NewPostRepository(db),
		comments:  repository.NewCommentRepository(db),
		follows:   repository.NewFollowRepository(db),
		bookmarks: repository.NewBookmarkRepository(db),
		notifier:  &recordingNotifier{},
	}
	e.postSvc = NewPostService(e.posts, e.bookmarks, e.users, e.notifier)
	e.commentSvc = NewCommentService(e.comments, e.posts)
	e.followSvc = NewFollowService(e.follows, e.users, e.notifier)
	return e
}
