package repository

import (
	"context"

	"snapshare/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookmarkRepository stores a user's saved posts.
type BookmarkRepository interface {
	// Toggle flips the bookmark and reports whether the post is now saved.
	Toggle(ctx context.Context, userID, postID uint) (bool, error)
	ListPosts(ctx context.Context, userID uint) ([]models.Post, error)
}

type bookmarkRepository struct {
	db *gorm.DB
}

// NewBookmarkRepository creates a new bookmark repository
func NewBookmarkRepository(db *gorm.DB) BookmarkRepository {
	return &bookmarkRepository{db: db}
}

func (r *bookmarkRepository) Toggle(ctx context.Context, userID, postID uint) (bool, error) {
	var saved bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Bookmark{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			saved = false
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Bookmark{UserID: userID, PostID: postID}).Error; err != nil {
			return err
		}
		saved = true
		return nil
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return saved, nil
}

// ListPosts returns bookmarked posts, most recently saved first.
func (r *bookmarkRepository) ListPosts(ctx context.Context, userID uint) ([]models.Post, error) {
	var bookmarks []models.Bookmark
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Post").
		Order("id DESC").
		Find(&bookmarks).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	posts := make([]models.Post, 0, len(bookmarks))
	for _, b := range bookmarks {
		if b.Post != nil {
			posts = append(posts, *b.Post)
		}
	}
	return posts, nil
}
