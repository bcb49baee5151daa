package publish

import (
	"context"
	"errors"

	"github.com/mikepea/inkwell/pkg/inkwell/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagStore resolves tags by normalized key.
type TagStore interface {
	// GetOrCreate returns the tag with key, inserting it with name if it does
	// not exist yet. It must be atomic with respect to concurrent callers.
	GetOrCreate(ctx context.Context, key, name string) (*models.Tag, error)
	// FindByKey returns ErrNotFound when no tag has the key.
	FindByKey(ctx context.Context, key string) (*models.Tag, error)
	Rename(ctx context.Context, tag *models.Tag, name string) error
}

// PostStore is the part of post persistence the save pipeline depends on.
type PostStore interface {
	// SlugExists reports whether a post other than excludeID holds slug.
	// Soft-deleted posts still hold their slug.
	SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error)
	// ReplacePostTags makes tags the post's complete tag set.
	ReplacePostTags(ctx context.Context, post *models.Post, tags []models.Tag) error
}

// GormStore implements TagStore and PostStore on a gorm handle, which may be a
// transaction.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store backed by db
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// GetOrCreate inserts the tag with ON CONFLICT DO NOTHING and reads back the stored row.
func (s *GormStore) GetOrCreate(ctx context.Context, key, name string) (*models.Tag, error) {
	tag := models.Tag{Slug: key, Name: name}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "slug"}}, DoNothing: true}).
		Create(&tag)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 1 && tag.ID != 0 {
		return &tag, nil
	}

	// Someone else owns the key; read their row.
	return s.FindByKey(ctx, key)
}

// FindByKey looks a tag up by its normalized key.
func (s *GormStore) FindByKey(ctx context.Context, key string) (*models.Tag, error) {
	var tag models.Tag
	if err := s.db.WithContext(ctx).Where("slug = ?", key).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tag, nil
}

// Rename updates a tag's display name in place.
func (s *GormStore) Rename(ctx context.Context, tag *models.Tag, name string) error {
	if err := s.db.WithContext(ctx).Model(tag).Update("name", name).Error; err != nil {
		return err
	}
	tag.Name = name
	return nil
}

// SlugExists checks every post, soft-deleted ones included.
func (s *GormStore) SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error) {
	query := s.db.WithContext(ctx).Unscoped().Model(&models.Post{}).Where("slug = ?", slug)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ReplacePostTags replaces the post's tag association. An empty set clears it.
func (s *GormStore) ReplacePostTags(ctx context.Context, post *models.Post, tags []models.Tag) error {
	assoc := s.db.WithContext(ctx).Model(post).Association("Tags")
	if len(tags) == 0 {
		if err := assoc.Clear(); err != nil {
			return err
		}
		post.Tags = nil
		return nil
	}
	return assoc.Replace(tags)
}
