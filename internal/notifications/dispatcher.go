// Package notifications delivers live, best-effort events to connected users.
package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"snapshare/internal/middleware"
	"snapshare/internal/models"
	"snapshare/internal/observability"
)

// Event types.
const (
	EventLike    = "like"
	EventDislike = "dislike"
	EventFollow  = "follow"
)

// Default messages per event type.
const (
	MessageLike    = "Your post was liked"
	MessageDislike = "Your post was unliked"
	MessageFollow  = "started following you"
)

const publishTimeout = 2 * time.Second

// Event is the payload pushed to a recipient's sockets.
type Event struct {
	Type    string              `json:"type"`
	ActorID uint                `json:"userId"`
	Actor   *models.UserSummary `json:"userDetails,omitempty"`
	PostID  uint                `json:"postId,omitempty"`
	Message string              `json:"message"`
}

// Presence is the live-connection registry the dispatcher delivers through.
// IsOnline must answer from memory.
type Presence interface {
	IsOnline(userID uint) bool
	Broadcast(userID uint, message string)
}

// RemotePresence is implemented by registries that can also see sockets held
// by other instances. The dispatcher only calls it off the request path.
type RemotePresence interface {
	OnlineElsewhere(ctx context.Context, userID uint) bool
}

// Publisher fans an already-encoded event out to other instances.
type Publisher interface {
	PublishUser(ctx context.Context, userID uint, payload string) error
}

// Dispatcher is an at-most-once, non-persistent notifier. Notify does no
// network I/O on the caller's goroutine and never reports failure.
type Dispatcher struct {
	presence  Presence
	publisher Publisher
}

// NewDispatcher returns a dispatcher. publisher may be nil for single-instance
// deployments.
func NewDispatcher(presence Presence, publisher Publisher) *Dispatcher {
	return &Dispatcher{presence: presence, publisher: publisher}
}

// Notify delivers ev to recipientID if they are online anywhere, and drops it
// otherwise. Local sockets get the event before Notify returns; the remote
// presence check and the Redis publish run in the background.
func (d *Dispatcher) Notify(ctx context.Context, recipientID uint, ev Event) {
	if d == nil || d.presence == nil {
		return
	}
	local := d.presence.IsOnline(recipientID)
	if !local && d.publisher == nil {
		observability.NotificationsDropped.WithLabelValues(ev.Type, "offline").Inc()
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		observability.NotificationsDropped.WithLabelValues(ev.Type, "encode").Inc()
		middleware.Logger.ErrorContext(ctx, "failed to encode notification",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
		return
	}

	if local {
		d.presence.Broadcast(recipientID, string(payload))
		observability.NotificationsSent.WithLabelValues(ev.Type).Inc()
	}
	if d.publisher == nil {
		return
	}

	// Detached from the request so a finished response does not cancel fan-out.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	go func() {
		defer cancel()
		if !local {
			if !d.onlineElsewhere(pubCtx, recipientID) {
				observability.NotificationsDropped.WithLabelValues(ev.Type, "offline").Inc()
				return
			}
			observability.NotificationsSent.WithLabelValues(ev.Type).Inc()
		}
		if err := d.publisher.PublishUser(pubCtx, recipientID, string(payload)); err != nil {
			middleware.Logger.WarnContext(pubCtx, "failed to publish notification",
				slog.Uint64("recipient_id", uint64(recipientID)),
				slog.String("type", ev.Type),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (d *Dispatcher) onlineElsewhere(ctx context.Context, userID uint) bool {
	remote, ok := d.presence.(RemotePresence)
	return ok && remote.OnlineElsewhere(ctx, userID)
}
