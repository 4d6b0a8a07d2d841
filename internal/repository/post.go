package repository

import (
	"context"
	"errors"
	"math"

	"snapshare/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	ListByAuthor(ctx context.Context, authorID uint, limit, offset int) ([]*models.Post, error)
	// AddLike reports whether a new like row was inserted.
	AddLike(ctx context.Context, userID, postID uint) (bool, error)
	// RemoveLike reports whether a like row was deleted.
	RemoveLike(ctx context.Context, userID, postID uint) (bool, error)
	LikedBy(ctx context.Context, postID uint) ([]uint, error)
	// DeleteCascade removes the post with its comments, likes and bookmarks
	// in one transaction.
	DeleteCascade(ctx context.Context, postID uint) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Author", selectSummary).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	return r.find(r.db.WithContext(ctx), limit, offset)
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint, limit, offset int) ([]*models.Post, error) {
	return r.find(r.db.WithContext(ctx).Where("author_id = ?", authorID), limit, offset)
}

// find loads posts newest first with author, like set and comments (newest
// first, each with its author). limit <= 0 loads every matching post.
func (r *postRepository) find(q *gorm.DB, limit, offset int) ([]*models.Post, error) {
	q = withPostDetails(q).Order("created_at DESC, id DESC")
	if offset > 0 {
		if limit <= 0 {
			// SQLite rejects OFFSET without LIMIT.
			limit = math.MaxInt32
		}
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var posts []*models.Post
	err := q.Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, p := range posts {
		p.FlattenLikes()
	}
	return posts, nil
}

func withPostDetails(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Author", selectSummary).
		Preload("Likes").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC, id DESC")
		}).
		Preload("Comments.Author", selectSummary)
}

// selectSummary narrows a preloaded user to the public summary columns.
func selectSummary(db *gorm.DB) *gorm.DB {
	return db.Select("id", "username", "avatar")
}

func (r *postRepository) AddLike(ctx context.Context, userID, postID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Like{UserID: userID, PostID: postID})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *postRepository) RemoveLike(ctx context.Context, userID, postID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.Like{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *postRepository) LikedBy(ctx context.Context, postID uint) ([]uint, error) {
	ids := make([]uint, 0)
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("post_id = ?", postID).
		Order("id").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *postRepository) DeleteCascade(ctx context.Context, postID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Bookmark{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, postID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", postID)
		}
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return models.NewInternalError(err)
	}
	return nil
}
