package models

import (
	"time"

	"gorm.io/gorm"
)

// PostStatus is the publication state of a post
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// Valid reports whether s is a known status
func (s PostStatus) Valid() bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// Post represents a blog post.
// Slug is assigned once from the title and never changes afterwards.
// ReadTime is derived from Content on every save.
type Post struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	Title      string         `gorm:"size:100;not null" json:"title"`
	Subtitle   string         `gorm:"size:200" json:"subtitle"`
	Slug       string         `gorm:"size:120;uniqueIndex;not null" json:"slug"`
	Content    string         `gorm:"type:text;not null" json:"content"`
	DatePosted time.Time      `gorm:"index" json:"date_posted"`
	Status     PostStatus     `gorm:"type:varchar(20);default:'published';index" json:"status"`
	ReadTime   uint           `gorm:"default:1" json:"read_time"`
	AuthorID   uint           `gorm:"not null;index" json:"author_id"`

	// Relationships
	Author    User      `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Tags      []Tag     `gorm:"many2many:post_tags;" json:"tags,omitempty"`
	Likes     []User    `gorm:"many2many:post_likes;" json:"-"`
	Bookmarks []User    `gorm:"many2many:post_bookmarks;" json:"-"`
	Comments  []Comment `gorm:"foreignKey:PostID" json:"comments,omitempty"`
}
