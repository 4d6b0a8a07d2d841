// Package seed fills a database with demo accounts and generated engagement
// for development and testing.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"snapshare/internal/middleware"
	"snapshare/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Options configures a seeding run.
type Options struct {
	// FixturePath is a YAML fixture; empty uses the built-in demo accounts.
	FixturePath string
	// NumUsers and NumPosts are generated on top of the fixture.
	NumUsers    int
	NumPosts    int
	ShouldClean bool
	// RandSeed makes generated data repeatable; 0 picks one from the clock.
	RandSeed int64
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Result counts what a run inserted.
type Result struct {
	Users     int
	Posts     int
	Likes     int
	Comments  int
	Follows   int
	Bookmarks int
}

// Seeder writes demo data through GORM.
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a seeder bound to db.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

var unsafeUsernameChars = regexp.MustCompile(`[^a-z0-9._]`)

// Run loads the fixture, then generates NumUsers users and NumPosts posts
// with likes, comments, follows and bookmarks spread across everyone.
// Fixture accounts that already exist are left alone, so Run is safe to
// repeat without ShouldClean.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	fixture, err := LoadFixture(opts.FixturePath)
	if err != nil {
		return nil, err
	}

	if opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(fixture.Password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}

	randSeed := opts.RandSeed
	if randSeed == 0 {
		randSeed = time.Now().UnixNano()
	}
	faker := gofakeit.New(randSeed)

	res := &Result{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users, err := s.applyFixture(tx, fixture, string(hash), res)
		if err != nil {
			return err
		}
		generated, err := s.createUsers(tx, faker, opts.NumUsers, string(hash), res)
		if err != nil {
			return err
		}
		users = append(users, generated...)
		if len(users) == 0 || (opts.NumUsers == 0 && opts.NumPosts == 0) {
			return nil
		}

		posts, err := s.createPosts(tx, faker, users, opts.NumPosts, res)
		if err != nil {
			return err
		}
		return s.createEngagement(tx, faker, users, posts, res)
	})
	if err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "database seeded",
		slog.Int("users", res.Users),
		slog.Int("posts", res.Posts),
		slog.Int("likes", res.Likes),
		slog.Int("comments", res.Comments),
		slog.Int("follows", res.Follows),
		slog.Int("bookmarks", res.Bookmarks),
	)
	return res, nil
}

// ClearAll deletes every row, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{
			&models.Bookmark{}, &models.Like{}, &models.Comment{},
			&models.Follow{}, &models.Post{}, &models.User{},
		} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return fmt.Errorf("clear %T: %w", m, err)
			}
		}
		return nil
	})
}

func (s *Seeder) applyFixture(tx *gorm.DB, f *Fixture, hash string, res *Result) ([]models.User, error) {
	byName := make(map[string]uint, len(f.Users))
	users := make([]models.User, 0, len(f.Users))

	for _, fu := range f.Users {
		var existing models.User
		err := tx.Where("email = ?", strings.ToLower(fu.Email)).First(&existing).Error
		switch {
		case err == nil:
			byName[fu.Username] = existing.ID
			users = append(users, existing)
			continue
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}

		u := models.User{
			Username: fu.Username,
			Email:    strings.ToLower(fu.Email),
			Password: hash,
			Bio:      fu.Bio,
			Gender:   fu.Gender,
		}
		if err := tx.Create(&u).Error; err != nil {
			return nil, fmt.Errorf("create fixture user %s: %w", fu.Username, err)
		}
		res.Users++
		byName[fu.Username] = u.ID
		users = append(users, u)

		for _, fp := range fu.Posts {
			if err := tx.Create(&models.Post{AuthorID: u.ID, Caption: fp.Caption, Image: fp.Image}).Error; err != nil {
				return nil, fmt.Errorf("create fixture post: %w", err)
			}
			res.Posts++
		}
	}

	for _, pair := range f.Follows {
		edge := models.Follow{FollowerID: byName[pair[0]], FollowingID: byName[pair[1]]}
		inserted := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge)
		if inserted.Error != nil {
			return nil, inserted.Error
		}
		res.Follows += int(inserted.RowsAffected)
	}
	return users, nil
}

func (s *Seeder) createUsers(tx *gorm.DB, faker *gofakeit.Faker, n int, hash string, res *Result) ([]models.User, error) {
	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		username := fakeUsername(faker, i)
		u := models.User{
			Username: username,
			Email:    username + "@example.com",
			Password: hash,
			Bio:      truncate(faker.HipsterSentence(8), 150),
			Gender:   faker.Gender(),
			Avatar:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
		}
		if err := tx.Create(&u).Error; err != nil {
			return nil, fmt.Errorf("create user %s: %w", username, err)
		}
		users = append(users, u)
	}
	res.Users += len(users)
	return users, nil
}

// fakeUsername returns a handle that passes signup validation. The index
// suffix keeps it unique within a run.
func fakeUsername(faker *gofakeit.Faker, i int) string {
	base := unsafeUsernameChars.ReplaceAllString(strings.ToLower(faker.Username()), "")
	base = strings.Trim(base, "._")
	if len(base) > 20 {
		base = base[:20]
	}
	if len(base) < 2 {
		base = "user"
	}
	return fmt.Sprintf("%s_%d", base, i+1)
}

func (s *Seeder) createPosts(tx *gorm.DB, faker *gofakeit.Faker, users []models.User, n int, res *Result) ([]models.Post, error) {
	posts := make([]models.Post, 0, n)
	for i := 0; i < n; i++ {
		author := users[faker.Number(0, len(users)-1)]
		p := models.Post{
			AuthorID:  author.ID,
			Caption:   truncate(faker.Sentence(faker.Number(3, 12)), 2200),
			Image:     fmt.Sprintf("https://picsum.photos/seed/%s/800/800", faker.UUID()),
			CreatedAt: time.Now().Add(-time.Duration(faker.Number(0, 60*24*30)) * time.Minute),
		}
		if err := tx.Create(&p).Error; err != nil {
			return nil, fmt.Errorf("create post: %w", err)
		}
		posts = append(posts, p)
	}
	res.Posts += len(posts)
	return posts, nil
}

// createEngagement gives each generated post a handful of likes and comments
// and has each user follow and bookmark a few others.
func (s *Seeder) createEngagement(tx *gorm.DB, faker *gofakeit.Faker, users []models.User, posts []models.Post, res *Result) error {
	ignore := clause.OnConflict{DoNothing: true}

	for _, p := range posts {
		for i, likes := 0, faker.Number(0, min(len(users), 8)); i < likes; i++ {
			u := users[faker.Number(0, len(users)-1)]
			r := tx.Clauses(ignore).Create(&models.Like{UserID: u.ID, PostID: p.ID})
			if r.Error != nil {
				return fmt.Errorf("create like: %w", r.Error)
			}
			res.Likes += int(r.RowsAffected)
		}
		for i, comments := 0, faker.Number(0, 4); i < comments; i++ {
			u := users[faker.Number(0, len(users)-1)]
			c := models.Comment{AuthorID: u.ID, PostID: p.ID, Text: truncate(faker.Sentence(faker.Number(2, 10)), 2200)}
			if err := tx.Create(&c).Error; err != nil {
				return fmt.Errorf("create comment: %w", err)
			}
			res.Comments++
		}
	}

	if len(users) < 2 {
		return nil
	}
	for _, u := range users {
		for i, follows := 0, faker.Number(0, min(len(users)-1, 5)); i < follows; i++ {
			target := users[faker.Number(0, len(users)-1)]
			if target.ID == u.ID {
				continue
			}
			r := tx.Clauses(ignore).Create(&models.Follow{FollowerID: u.ID, FollowingID: target.ID})
			if r.Error != nil {
				return fmt.Errorf("create follow: %w", r.Error)
			}
			res.Follows += int(r.RowsAffected)
		}
		if len(posts) == 0 {
			continue
		}
		for i, saves := 0, faker.Number(0, 3); i < saves; i++ {
			p := posts[faker.Number(0, len(posts)-1)]
			r := tx.Clauses(ignore).Create(&models.Bookmark{UserID: u.ID, PostID: p.ID})
			if r.Error != nil {
				return fmt.Errorf("create bookmark: %w", r.Error)
			}
			res.Bookmarks += int(r.RowsAffected)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
