package models

import (
	"time"

	"gorm.io/gorm"
)

// Comment is a reader's comment on a post
type Comment struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	PostID     uint           `gorm:"not null;index" json:"post_id"`
	AuthorID   uint           `gorm:"not null;index" json:"author_id"`
	Content    string         `gorm:"type:text;not null" json:"content"`
	DatePosted time.Time      `json:"date_posted"`

	// Relationships
	Post   Post `gorm:"foreignKey:PostID" json:"-"`
	Author User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}
