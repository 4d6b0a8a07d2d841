package models

import "time"

// Gender values accepted on profile edit. Empty means unset.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// User is an account. Follow and bookmark sets live in their own edge tables.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email,omitempty"`
	Password  string    `gorm:"not null" json:"-"`
	Bio       string    `json:"bio"`
	Gender    string    `json:"gender,omitempty"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Posts []Post `gorm:"foreignKey:AuthorID" json:"posts,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// UserSummary is the author snapshot attached to posts, comments and notifications.
type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Summary returns the public snapshot of u.
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

// Profile is a user with the derived collections resolved.
type Profile struct {
	User
	Bookmarks []Post `json:"bookmarks"`
	Followers []uint `json:"followers"`
	Following []uint `json:"following"`
}
