package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account that can write posts and react to them
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Name         string         `gorm:"not null" json:"name"`

	// Relationships
	Posts           []Post `gorm:"foreignKey:AuthorID" json:"posts,omitempty"`
	LikedPosts      []Post `gorm:"many2many:post_likes;" json:"-"`
	BookmarkedPosts []Post `gorm:"many2many:post_bookmarks;" json:"-"`
}
