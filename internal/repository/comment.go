package repository

import (
	"context"
	"errors"

	"snapshare/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create loads the author and inserts the comment in one transaction, so a
// failed lookup never leaves a comment the caller was told did not save.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	var author models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := selectSummary(tx).First(&author, comment.AuthorID).Error; err != nil {
			return err
		}
		return tx.Create(comment).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("User", comment.AuthorID)
		}
		return models.NewInternalError(err)
	}
	comment.Author = &author
	return nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	if err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Preload("Author", selectSummary).
		Order("created_at DESC, id DESC").
		Find(&comments).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}
