package service

import (
	"context"

	"snapshare/internal/models"
	"snapshare/internal/notifications"
	"snapshare/internal/observability"
	"snapshare/internal/repository"
)

// FollowState is the result of a follow toggle.
type FollowState string

const (
	Followed   FollowState = "followed"
	Unfollowed FollowState = "unfollowed"
)

type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	notify     *notifyQueue
}

func NewFollowService(followRepo repository.FollowRepository, userRepo repository.UserRepository, notifier Notifier) *FollowService {
	return &FollowService{followRepo: followRepo, userRepo: userRepo, notify: newNotifyQueue(notifier, userRepo)}
}

// WaitNotifications blocks until every queued follow notification has been
// handed to the notifier.
func (s *FollowService) WaitNotifications() {
	s.notify.wait()
}

// FollowOrUnfollow toggles the actor -> target edge. Both users' views change
// together because they read the same row.
func (s *FollowService) FollowOrUnfollow(ctx context.Context, actorID, targetID uint) (FollowState, error) {
	if actorID == targetID {
		return "", models.NewValidationError("You can't follow/unfollow yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, actorID); err != nil {
		return "", err
	}
	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		return "", err
	}

	following, err := s.followRepo.Toggle(ctx, actorID, targetID)
	if err != nil {
		return "", err
	}
	if !following {
		observability.EngagementEvents.WithLabelValues("unfollow").Inc()
		return Unfollowed, nil
	}

	observability.EngagementEvents.WithLabelValues("follow").Inc()
	s.notify.send(ctx, targetID, notifications.Event{
		Type:    notifications.EventFollow,
		ActorID: actorID,
		Message: notifications.MessageFollow,
	})
	return Followed, nil
}
