package service

import (
	"context"
	"strings"

	"snapshare/internal/models"
	"snapshare/internal/repository"
	"snapshare/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const suggestedUsersLimit = 20

// ImageProcessor turns an upload into a stored image URL, and removes one
// that ended up unused.
type ImageProcessor interface {
	Process(ctx context.Context, in UploadInput) (string, error)
	Discard(ctx context.Context, imageURL string)
}

type UserService struct {
	userRepo     repository.UserRepository
	postRepo     repository.PostRepository
	followRepo   repository.FollowRepository
	bookmarkRepo repository.BookmarkRepository
	images       ImageProcessor
	bcryptCost   int
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

// EditProfileInput carries optional changes; nil fields are left alone.
type EditProfileInput struct {
	UserID uint
	Bio    *string
	Gender *string
	Photo  *UploadInput
}

func NewUserService(
	userRepo repository.UserRepository,
	postRepo repository.PostRepository,
	followRepo repository.FollowRepository,
	bookmarkRepo repository.BookmarkRepository,
	images ImageProcessor,
) *UserService {
	return &UserService{
		userRepo:     userRepo,
		postRepo:     postRepo,
		followRepo:   followRepo,
		bookmarkRepo: bookmarkRepo,
		images:       images,
		bcryptCost:   bcrypt.DefaultCost,
	}
}

// WithBcryptCost overrides the hashing cost, for tests.
func (s *UserService) WithBcryptCost(cost int) *UserService {
	s.bcryptCost = cost
	return s
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(validation.RegisterRequest{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
	}); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("email already exist")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks credentials and returns the user with their profile
// collections resolved.
func (s *UserService) Authenticate(ctx context.Context, in LoginInput) (*models.Profile, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(validation.LoginRequest{Email: email, Password: in.Password}); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Incorrect email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, models.NewUnauthorizedError("Incorrect email or password")
	}
	return s.buildProfile(ctx, user)
}

// GetProfile returns the user with posts, bookmarks and follow ids.
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.buildProfile(ctx, user)
}

func (s *UserService) buildProfile(ctx context.Context, user *models.User) (*models.Profile, error) {
	posts, err := s.postRepo.ListByAuthor(ctx, user.ID, 0, 0)
	if err != nil {
		return nil, err
	}
	bookmarks, err := s.bookmarkRepo.ListPosts(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	followers, err := s.followRepo.Followers(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	following, err := s.followRepo.Following(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	profile := &models.Profile{
		User:      *user,
		Bookmarks: bookmarks,
		Followers: followers,
		Following: following,
	}
	profile.Posts = make([]models.Post, 0, len(posts))
	for _, p := range posts {
		profile.Posts = append(profile.Posts, *p)
	}
	return profile, nil
}

func (s *UserService) EditProfile(ctx context.Context, in EditProfileInput) (*models.User, error) {
	if err := validation.Struct(validation.ProfileEditRequest{Bio: in.Bio, Gender: in.Gender}); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	var uploaded string
	if in.Bio != nil {
		user.Bio = *in.Bio
	}
	if in.Gender != nil {
		user.Gender = *in.Gender
	}
	if in.Photo != nil {
		if s.images == nil {
			return nil, models.NewValidationError("Profile photo uploads are disabled")
		}
		photo := *in.Photo
		photo.Kind = ImageKindAvatar
		url, err := s.images.Process(ctx, photo)
		if err != nil {
			return nil, err
		}
		user.Avatar = url
		uploaded = url
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if uploaded != "" {
			s.images.Discard(ctx, uploaded)
		}
		return nil, err
	}
	return user, nil
}

// SuggestedUsers lists other users. An empty list is not an error.
func (s *UserService) SuggestedUsers(ctx context.Context, actorID uint) ([]models.User, error) {
	users, err := s.userRepo.ListExcept(ctx, actorID, suggestedUsersLimit)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}
