package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mikepea/inkwell/pkg/inkwell/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultMaxAttempts is how many times a save is tried when it loses a
// uniqueness race.
const DefaultMaxAttempts = 5

var (
	// ErrNotFound is returned when the post being updated does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the requester is not the post's author.
	ErrForbidden = errors.New("not the author")
	// ErrConflict is returned when every save attempt lost a uniqueness race.
	ErrConflict = errors.New("unique constraint conflict")
)

// SaveRequest carries one post submission. PostID is zero for a new post.
// An empty Status publishes a new post and leaves an existing post's status alone.
type SaveRequest struct {
	PostID   uint
	AuthorID uint
	Title    string
	Subtitle string
	Content  string
	Status   models.PostStatus
	Tags     string
}

// Service runs the post save pipeline: tag resolution, slug assignment, read
// time, persistence and tag association, all in one transaction.
type Service struct {
	db          *gorm.DB
	logger      *slog.Logger
	maxAttempts int
	now         func() time.Time
}

// NewService creates a save service. A nil logger uses slog.Default().
func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:          db,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
}

// Save creates or updates a post. A conflicting concurrent write on a slug or
// tag key causes the whole transaction to be rerun; ErrConflict is returned
// only once every attempt has lost.
func (s *Service) Save(ctx context.Context, req SaveRequest) (*models.Post, error) {
	var post *models.Post
	err := s.retryOnConflict(ctx, func() error {
		var err error
		post, err = s.saveOnce(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (s *Service) retryOnConflict(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = fn()
		if err == nil || !IsConflict(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.logger.Warn("save lost a uniqueness race, retrying", "attempt", attempt, "error", err)
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrConflict, s.maxAttempts, err)
}

func (s *Service) saveOnce(ctx context.Context, req SaveRequest) (*models.Post, error) {
	var post models.Post

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := NewGormStore(tx)

		if req.PostID != 0 {
			if err := tx.First(&post, req.PostID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return err
			}
			if post.AuthorID != req.AuthorID {
				return ErrForbidden
			}
		} else {
			post.AuthorID = req.AuthorID
			post.DatePosted = s.now()
		}

		tags, err := ResolveTags(ctx, store, req.Tags)
		if err != nil {
			return err
		}

		post.Title = strings.TrimSpace(req.Title)
		post.Subtitle = strings.TrimSpace(req.Subtitle)
		post.Content = req.Content
		if req.Status != "" {
			post.Status = req.Status
		} else if req.PostID == 0 {
			post.Status = models.PostStatusPublished
		}
		post.ReadTime = ReadTime(post.Content)

		if post.Slug == "" {
			slug, err := AssignSlug(ctx, store, post.Title, post.ID)
			if err != nil {
				return err
			}
			post.Slug = slug
			s.logger.Debug("assigned slug", "slug", slug, "title", post.Title)
		}

		if err := tx.Omit(clause.Associations).Save(&post).Error; err != nil {
			return err
		}

		return store.ReplacePostTags(ctx, &post, tags)
	})
	if err != nil {
		return nil, err
	}

	return &post, nil
}

// SetTags replaces a post's tag set from tag text without touching the rest
// of the post.
func (s *Service) SetTags(ctx context.Context, postID, authorID uint, text string) ([]models.Tag, error) {
	var tags []models.Tag
	err := s.retryOnConflict(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var post models.Post
			if err := tx.First(&post, postID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return err
			}
			if post.AuthorID != authorID {
				return ErrForbidden
			}

			store := NewGormStore(tx)
			resolved, err := ResolveTags(ctx, store, text)
			if err != nil {
				return err
			}
			if err := store.ReplacePostTags(ctx, &post, resolved); err != nil {
				return err
			}
			tags = resolved
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// IsConflict reports whether err is a unique-constraint violation.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}
