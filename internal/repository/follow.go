package repository

import (
	"context"

	"snapshare/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository stores directed follow edges. One row backs both the
// follower's following list and the target's followers list.
type FollowRepository interface {
	// Toggle flips the edge follower->following and reports whether it now exists.
	Toggle(ctx context.Context, followerID, followingID uint) (bool, error)
	IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error)
	Followers(ctx context.Context, userID uint) ([]uint, error)
	Following(ctx context.Context, userID uint) ([]uint, error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Toggle(ctx context.Context, followerID, followingID uint) (bool, error) {
	var following bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).
			Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			following = false
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Follow{FollowerID: followerID, FollowingID: followingID}).Error; err != nil {
			return err
		}
		following = true
		return nil
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return following, nil
}

func (r *followRepository) IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *followRepository) Followers(ctx context.Context, userID uint) ([]uint, error) {
	return r.pluck(ctx, "follower_id", "following_id = ?", userID)
}

func (r *followRepository) Following(ctx context.Context, userID uint) ([]uint, error) {
	return r.pluck(ctx, "following_id", "follower_id = ?", userID)
}

func (r *followRepository) pluck(ctx context.Context, column, where string, userID uint) ([]uint, error) {
	ids := make([]uint, 0)
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where(where, userID).
		Order("id").
		Pluck(column, &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
