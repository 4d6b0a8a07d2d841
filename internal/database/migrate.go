package database

import (
	"fmt"

	"snapshare/internal/models"

	"gorm.io/gorm"
)

// AllModels lists every persistent model in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.Like{},
		&models.Follow{},
		&models.Bookmark{},
	}
}

// Migrate creates or updates the schema for AllModels.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
