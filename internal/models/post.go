package models

import "time"

// Post is an image post. Likes and comments hang off it by post_id.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Image     string    `gorm:"not null" json:"image"`
	Caption   string    `json:"caption"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Likes    []Like    `gorm:"foreignKey:PostID" json:"-"`
	Comments []Comment `gorm:"foreignKey:PostID" json:"comments"`

	// LikedBy is the like set flattened to user ids for responses.
	LikedBy []uint `gorm:"-" json:"likes"`
}

func (Post) TableName() string {
	return "posts"
}

// FlattenLikes fills LikedBy from the preloaded Likes.
func (p *Post) FlattenLikes() {
	p.LikedBy = make([]uint, 0, len(p.Likes))
	for _, l := range p.Likes {
		p.LikedBy = append(p.LikedBy, l.UserID)
	}
}

// Comment belongs to exactly one post and is only removed with it.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Text      string    `gorm:"not null" json:"text"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Comment) TableName() string {
	return "comments"
}
