package models

import "time"

// Tag represents a label that can be applied to posts.
// Slug is the normalized key and identifies the tag; Name is the display text
// from the most recent submission. Tags are not soft-deleted so that a key can
// always be resolved by the unique index.
type Tag struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Slug      string    `gorm:"size:100;uniqueIndex;not null" json:"slug"`

	// Relationships
	Posts []Post `gorm:"many2many:post_tags;" json:"posts,omitempty"`
}
