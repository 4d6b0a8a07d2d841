package service

import (
	"context"
	"strings"

	"snapshare/internal/models"
	"snapshare/internal/observability"
	"snapshare/internal/repository"
)

const maxCommentLen = 2200

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
}

type AddCommentInput struct {
	AuthorID uint
	PostID   uint
	Text     string
}

func NewCommentService(commentRepo repository.CommentRepository, postRepo repository.PostRepository) *CommentService {
	return &CommentService{commentRepo: commentRepo, postRepo: postRepo}
}

func (s *CommentService) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, models.NewValidationError("Text is required")
	}
	if len(text) > maxCommentLen {
		return nil, models.NewValidationError("Text too long (max 2200 characters)")
	}
	if _, err := s.postRepo.GetByID(ctx, in.PostID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Text:     text,
		AuthorID: in.AuthorID,
		PostID:   in.PostID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	comment.Author = summarize(comment.Author)
	observability.EngagementEvents.WithLabelValues("comment").Inc()
	return comment, nil
}

// ListComments returns the post's comments, newest first.
func (s *CommentService) ListComments(ctx context.Context, postID uint) ([]*models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID)
}
