// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"testing"

	"snapshare/internal/cache"
	"snapshare/internal/database"
	"snapshare/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/disintegration/imaging"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewTestDB returns a private, migrated in-memory SQLite database.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// NewRedis starts miniredis and returns a client for it. The client is not
// installed as the global cache client; use WithCache for that.
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// WithCache installs a miniredis-backed global cache client for the test.
func WithCache(t testing.TB) *miniredis.Miniredis {
	t.Helper()
	mr, rdb := NewRedis(t)
	cache.SetClient(rdb)
	t.Cleanup(func() { cache.SetClient(nil) })
	return mr
}

// CreateUser inserts a user with a derived unique email.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    fmt.Sprintf("%s@example.com", username),
		Password: "not-a-real-hash",
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreatePost inserts a post by author.
func CreatePost(t testing.TB, db *gorm.DB, authorID uint, caption string) *models.Post {
	t.Helper()
	p := &models.Post{AuthorID: authorID, Caption: caption, Image: "https://cdn.example.com/p.jpg"}
	require.NoError(t, db.Create(p).Error)
	return p
}

// TinyPNG returns an encoded w x h PNG.
func TinyPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 90, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, image.Image(img), imaging.PNG))
	return buf.Bytes()
}
