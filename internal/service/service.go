// Package service implements the engagement rules and account flows on top of
// the repositories.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"snapshare/internal/middleware"
	"snapshare/internal/models"
	"snapshare/internal/notifications"
	"snapshare/internal/repository"
)

// MaxPageSize caps an explicit page limit.
const MaxPageSize = 100

// Notifier receives best-effort engagement events. Services call it from a
// background goroutine.
type Notifier interface {
	Notify(ctx context.Context, recipientID uint, ev notifications.Event)
}

// Page is a limit/offset window over a newest-first listing. A zero Limit
// means the whole listing.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize() Page {
	if p.Limit < 0 {
		p.Limit = 0
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// notifyTimeout bounds the actor lookup and hand-off of one notification.
const notifyTimeout = 3 * time.Second

// notifyQueue hands engagement events to the notifier off the request path.
// The actor summary is resolved in the background, so a slow cache or
// database delays the event and never the operation.
type notifyQueue struct {
	notifier Notifier
	users    repository.UserRepository
	wg       sync.WaitGroup
}

func newNotifyQueue(n Notifier, users repository.UserRepository) *notifyQueue {
	return &notifyQueue{notifier: n, users: users}
}

func (q *notifyQueue) send(ctx context.Context, recipientID uint, ev notifications.Event) {
	if q == nil || q.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer cancel()
		if actor, err := q.users.GetByID(ctx, ev.ActorID); err == nil {
			ev.Actor = actor.Summary()
		} else {
			middleware.Logger.WarnContext(ctx, "notification actor lookup failed",
				slog.Uint64("actor_id", uint64(ev.ActorID)),
				slog.String("error", err.Error()),
			)
		}
		q.notifier.Notify(ctx, recipientID, ev)
	}()
}

// wait blocks until every queued notification has been handed off.
func (q *notifyQueue) wait() {
	if q != nil {
		q.wg.Wait()
	}
}

func summarize(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	return &models.User{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}
