package service

import (
	"context"
	"strings"

	"snapshare/internal/models"
	"snapshare/internal/notifications"
	"snapshare/internal/observability"
	"snapshare/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// BookmarkState is the result of a bookmark toggle.
type BookmarkState string

const (
	BookmarkSaved   BookmarkState = "saved"
	BookmarkUnsaved BookmarkState = "unsaved"
)

const maxCaptionLen = 2200

type PostService struct {
	postRepo     repository.PostRepository
	bookmarkRepo repository.BookmarkRepository
	userRepo     repository.UserRepository
	notify       *notifyQueue
}

type CreatePostInput struct {
	AuthorID uint
	Caption  string
	Image    string
}

type DeletePostInput struct {
	ActorID uint
	PostID  uint
}

func NewPostService(
	postRepo repository.PostRepository,
	bookmarkRepo repository.BookmarkRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
) *PostService {
	return &PostService{
		postRepo:     postRepo,
		bookmarkRepo: bookmarkRepo,
		userRepo:     userRepo,
		notify:       newNotifyQueue(notifier, userRepo),
	}
}

// WaitNotifications blocks until every like notification queued so far has
// been handed to the notifier.
func (s *PostService) WaitNotifications() { s.notify.wait() }

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if strings.TrimSpace(in.Image) == "" {
		return nil, models.NewValidationError("Image required")
	}
	if len(in.Caption) > maxCaptionLen {
		return nil, models.NewValidationError("Caption too long (max 2200 characters)")
	}

	author, err := s.userRepo.GetByID(ctx, in.AuthorID)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		AuthorID: in.AuthorID,
		Caption:  in.Caption,
		Image:    in.Image,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	post.Author = summarize(author)
	post.LikedBy = []uint{}
	post.Comments = []models.Comment{}
	return post, nil
}

// ListFeed returns every post, newest first.
func (s *PostService) ListFeed(ctx context.Context, page Page) ([]*models.Post, error) {
	page = page.normalize()
	return s.postRepo.List(ctx, page.Limit, page.Offset)
}

// ListUserPosts returns the actor's own posts, newest first.
func (s *PostService) ListUserPosts(ctx context.Context, actorID uint, page Page) ([]*models.Post, error) {
	page = page.normalize()
	return s.postRepo.ListByAuthor(ctx, actorID, page.Limit, page.Offset)
}

// LikePost adds actorID to the post's likes. Repeating it is a no-op and does
// not notify again.
func (s *PostService) LikePost(ctx context.Context, actorID, postID uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "PostService.LikePost",
		attribute.Int64("post.id", int64(postID)))
	defer func() { observability.EndSpan(span, err) }()

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	inserted, err := s.postRepo.AddLike(ctx, actorID, postID)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}
	observability.EngagementEvents.WithLabelValues("like").Inc()

	if actorID != post.AuthorID {
		s.notify.send(ctx, post.AuthorID, notifications.Event{
			Type:    notifications.EventLike,
			ActorID: actorID,
			PostID:  postID,
			Message: notifications.MessageLike,
		})
	}
	return nil
}

// UnlikePost removes actorID from the post's likes. Idempotent.
func (s *PostService) UnlikePost(ctx context.Context, actorID, postID uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "PostService.UnlikePost",
		attribute.Int64("post.id", int64(postID)))
	defer func() { observability.EndSpan(span, err) }()

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	removed, err := s.postRepo.RemoveLike(ctx, actorID, postID)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}
	observability.EngagementEvents.WithLabelValues("unlike").Inc()

	if actorID != post.AuthorID {
		s.notify.send(ctx, post.AuthorID, notifications.Event{
			Type:    notifications.EventDislike,
			ActorID: actorID,
			PostID:  postID,
			Message: notifications.MessageDislike,
		})
	}
	return nil
}

// DeletePost removes a post and everything hanging off it. Only the author may.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) (err error) {
	ctx, span := observability.StartSpan(ctx, "PostService.DeletePost",
		attribute.Int64("post.id", int64(in.PostID)))
	defer func() { observability.EndSpan(span, err) }()

	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return err
	}
	if post.AuthorID != in.ActorID {
		return models.NewForbiddenError("Unauthorized")
	}
	if err := s.postRepo.DeleteCascade(ctx, in.PostID); err != nil {
		return err
	}
	observability.EngagementEvents.WithLabelValues("delete").Inc()
	return nil
}

func (s *PostService) ToggleBookmark(ctx context.Context, actorID, postID uint) (BookmarkState, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return "", err
	}
	saved, err := s.bookmarkRepo.Toggle(ctx, actorID, postID)
	if err != nil {
		return "", err
	}
	if saved {
		observability.EngagementEvents.WithLabelValues("bookmark").Inc()
		return BookmarkSaved, nil
	}
	observability.EngagementEvents.WithLabelValues("unbookmark").Inc()
	return BookmarkUnsaved, nil
}
