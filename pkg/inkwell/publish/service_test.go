package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mikepea/inkwell/pkg/inkwell/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	user := models.User{Email: email, PasswordHash: "hash", Name: "Test User"}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func loadTags(t *testing.T, db *gorm.DB, postID uint) []models.Tag {
	var post models.Post
	require.NoError(t, db.Preload("Tags", func(db *gorm.DB) *gorm.DB {
		return db.Order("tags.slug")
	}).First(&post, postID).Error)
	return post.Tags
}

func TestSaveCreatesPost(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "author@example.com")
	svc := NewService(db, nil)

	post, err := svc.Save(context.Background(), SaveRequest{
		AuthorID: user.ID,
		Title:    "  Hello, World!  ",
		Subtitle: "a first post",
		Content:  words(400),
		Tags:     "Design, startup,  AI ",
	})
	require.NoError(t, err)

	assert.NotZero(t, post.ID)
	assert.Equal(t, "hello-world", post.Slug)
	assert.Equal(t, "Hello, World!", post.Title)
	assert.Equal(t, uint(2), post.ReadTime)
	assert.Equal(t, models.PostStatusPublished, post.Status)
	assert.False(t, post.DatePosted.IsZero())

	tags := loadTags(t, db, post.ID)
	require.Len(t, tags, 3)
	assert.Equal(t, "ai", tags[0].Slug)
	assert.Equal(t, "AI", tags[0].Name)
	assert.Equal(t, "design", tags[1].Slug)
	assert.Equal(t, "Design", tags[1].Name)
	assert.Equal(t, "startup", tags[2].Slug)
	assert.Equal(t, "startup", tags[2].Name)
}

func TestSaveAssignsDistinctSlugs(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "author@example.com")
	svc := NewService(db, nil)

	titles := []string{"Same Title", "same title", "Same -- Title!", "SAME TITLE"}
	var got []string
	for _, title := range titles {
		post, err := svc.Save(context.Background(), SaveRequest{AuthorID: user.ID, Title: title, Content: "x"})
		require.NoError(t, err)
		got = append(got, post.Slug)
	}

	assert.Equal(t, []string{"same-title", "same-title-1", "same-title-2", "same-title-3"}, got)
}

func TestSaveUpdateKeepsSlug(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "author@example.com")
	svc := NewService(db, nil)
	ctx := context.Background()

	created, err := svc.Save(ctx, SaveRequest{AuthorID: user.ID, Title: "Original", Content: "x"})
	require.NoError(t, err)

	resaved, err := svc.Save(ctx, SaveRequest{PostID: created.ID, AuthorID: user.ID, Title: "Original", Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, created.Slug, resaved.Slug)

	renamed, err := svc.Save(ctx, SaveRequest{
		PostID:   created.ID,
		AuthorID: user.ID,
		Title:    "A Completely New Title",
		Content:  words(50),
		Status:   models.PostStatusDraft,
	})
	require.NoError(t, err)
	assert.Equal(t, "original", renamed.Slug)
	assert.Equal(t, "A Completely New Title", renamed.Title)
	assert.Equal(t, models.PostStatusDraft, renamed.Status)
	assert.Equal(t, uint(1), renamed.ReadTime)

	var count int64
	db.Model(&models.Post{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestSaveUpdateWithoutStatusKeepsDraft(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "author@example.com")
	svc := NewService(db, nil)
	ctx := context.Background()

	draft, err := svc.Save(ctx, SaveRequest{AuthorID: user.ID, Title: "Work in progress", Content: "x", Status: models.PostStatusDraft})
	require.NoError(t, err)

	edited, err := svc.Save(ctx, SaveRequest{PostID: draft.ID, AuthorID: user.ID, Title: "Work in progress", Content: "more words"})
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusDraft, edited.Status)

	var stored models.Post
	require.NoError(t, db.First(&stored, draft.ID).Error)
	assert.Equal(t, models.PostStatusDraft, stored.Status)

	published, err := svc.Save(ctx, SaveRequest{PostID: draft.ID, AuthorID: user.ID, Title: "Work in progress", Content: "x", Status: models.PostStatusPublished})
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, published.Status)
}

func TestSaveRenamesTagInsteadOfDuplicating(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "author@example.com")
	svc := NewService(db, nil)
	ctx := context.Background()

	post, err := svc.Save(ctx, SaveRequest{AuthorID: user.ID, Title: "Post", Content: "x", Tags: "design"})
	require.NoError(t, err)

	_, err = svc.Save(ctx, SaveRequest{PostID: post.ID, AuthorID: user.ID, Title: "Post", Content: "x", Tags: "Design"})
	require.NoError(t, err)

	var tags []models.Tag
	require.NoError(t, db.Find(&tags).Error)
	require.Len(t, tags, 1)
	assert.Equal(t, "design", tags[0].Slug)
	assert.Equal(t, "Design", tags[0].Name)
}

func TestSaveEmptyTagsDetachesAll(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "author@example.com")
	svc := NewService(db, nil)
	ctx := context.Background()

	post, err := svc.Save(ctx, SaveRequest{AuthorID: user.ID, Title: "Post", Content: "x", Tags: "go, sql"})
	require.NoError(t, err)
	require.Len(t, loadTags(t, db, post.ID), 2)

	_, err = svc.Save(ctx, SaveRequest{PostID: post.ID, AuthorID: user.ID, Title: "Post", Content: "x", Tags: "   "})
	require.NoError(t, err)
	assert.Empty(t, loadTags(t, db, post.ID))

	var tagCount int64
	db.Model(&models.Tag{}).Count(&tagCount)
	assert.Equal(t, int64(2), tagCount, "tags outlive their associations")
}

func TestSaveReplacesTagSet(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "author@example.com")
	svc := NewService(db, nil)
	ctx := context.Background()

	post, err := svc.Save(ctx, SaveRequest{AuthorID: user.ID, Title: "Post", Content: "x", Tags: "go, sql"})
	require.NoError(t, err)
	other, err := svc.Save(ctx, SaveRequest{AuthorID: user.ID, Title: "Other", Content: "x", Tags: "sql"})
	require.NoError(t, err)

	_, err = svc.Save(ctx, SaveRequest{PostID: post.ID, AuthorID: user.ID, Title: "Post", Content: "x", Tags: "sql, web"})
	require.NoError(t, err)

	tags := loadTags(t, db, post.ID)
	require.Len(t, tags, 2)
	assert.Equal(t, "sql", tags[0].Slug)
	assert.Equal(t, "web", tags[1].Slug)

	otherTags := loadTags(t, db, other.ID)
	require.Len(t, otherTags, 1)
	assert.Equal(t, "sql", otherTags[0].Slug)
}

func TestSaveSharesTagsAcrossPosts(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "author@example.com")
	svc := NewService(db, nil)
	ctx := context.Background()

	first, err := svc.Save(ctx, SaveRequest{AuthorID: user.ID, Title: "One", Content: "x", Tags: "Go"})
	require.NoError(t, err)
	second, err := svc.Save(ctx, SaveRequest{AuthorID: user.ID, Title: "Two", Content: "x", Tags: "go"})
	require.NoError(t, err)

	a := loadTags(t, db, first.ID)
	b := loadTags(t, db, second.ID)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].ID, b[0].ID)
	assert.Equal(t, "go", b[0].Name)
}

func TestSaveRejectsOtherAuthor(t *testing.T) {
	db := setupTestDB(t)
	author := createTestUser(t, db, "author@example.com")
	other := createTestUser(t, db, "other@example.com")
	svc := NewService(db, nil)
	ctx := context.Background()

	post, err := svc.Save(ctx, SaveRequest{AuthorID: author.ID, Title: "Mine", Content: "x", Tags: "keep"})
	require.NoError(t, err)

	_, err = svc.Save(ctx, SaveRequest{PostID: post.ID, AuthorID: other.ID, Title: "Stolen", Content: "y", Tags: ""})
	assert.ErrorIs(t, err, ErrForbidden)

	var reloaded models.Post
	require.NoError(t, db.First(&reloaded, post.ID).Error)
	assert.Equal(t, "Mine", reloaded.Title)
	assert.Len(t, loadTags(t, db, post.ID), 1)
}

func TestSaveUnknownPost(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "author@example.com")

	_, err := NewService(db, nil).Save(context.Background(), SaveRequest{PostID: 999, AuthorID: user.ID, Title: "x", Content: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveSkipsSoftDeletedSlugs(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "author@example.com")
	svc := NewService(db, nil)
	ctx := context.Background()

	post, err := svc.Save(ctx, SaveRequest{AuthorID: user.ID, Title: "Gone", Content: "x"})
	require.NoError(t, err)
	require.NoError(t, db.Delete(post).Error)

	again, err := svc.Save(ctx, SaveRequest{AuthorID: user.ID, Title: "Gone", Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, "gone-1", again.Slug)
}

func TestGormStoreGetOrCreate(t *testing.T) {
	db := setupTestDB(t)
	store := NewGormStore(db)
	ctx := context.Background()

	created, err := store.GetOrCreate(ctx, "design", "Design")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	existing, err := store.GetOrCreate(ctx, "design", "DESIGN")
	require.NoError(t, err)
	assert.Equal(t, created.ID, existing.ID)
	assert.Equal(t, "Design", existing.Name, "GetOrCreate never renames")

	_, err = store.FindByKey(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetryOnConflict(t *testing.T) {
	svc := NewService(nil, nil)
	ctx := context.Background()

	calls := 0
	err := svc.retryOnConflict(ctx, func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("insert post: %w", gorm.ErrDuplicatedKey)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = svc.retryOnConflict(ctx, func() error {
		calls++
		return gorm.ErrDuplicatedKey
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, DefaultMaxAttempts, calls)

	calls = 0
	boom := errors.New("boom")
	err = svc.retryOnConflict(ctx, func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestSaveRetriesAfterSlugIndexConflict(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "author@example.com")

	// The first insert of a post finds its slug taken by a row written after
	// the uniqueness check ran.
	attempts := 0
	var insertErrs []error
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:competing_post", func(tx *gorm.DB) {
		post, ok := tx.Statement.Dest.(*models.Post)
		if !ok {
			return
		}
		attempts++
		if attempts > 1 {
			return
		}
		now := time.Now()
		err := tx.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO posts (title, slug, content, status, read_time, author_id, date_posted, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			"Competing", post.Slug, "x", models.PostStatusPublished, 1, user.ID, now, now, now,
		).Error
		require.NoError(t, err)
	}))
	require.NoError(t, db.Callback().Create().After("gorm:create").Register("test:record_insert", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*models.Post); ok {
			insertErrs = append(insertErrs, tx.Error)
		}
	}))

	post, err := NewService(db, nil).Save(context.Background(), SaveRequest{AuthorID: user.ID, Title: "Race", Content: "x"})
	require.NoError(t, err)

	assert.Equal(t, 2, attempts)
	require.Len(t, insertErrs, 2)
	assert.ErrorIs(t, insertErrs[0], gorm.ErrDuplicatedKey)
	assert.True(t, IsConflict(insertErrs[0]))
	assert.NoError(t, insertErrs[1])
	assert.Equal(t, "race", post.Slug)

	// The losing attempt rolled back together with the row it collided with.
	var count int64
	db.Model(&models.Post{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestIsConflict(t *testing.T) {
	assert.False(t, IsConflict(nil))
	assert.True(t, IsConflict(gorm.ErrDuplicatedKey))
	assert.True(t, IsConflict(errors.New("UNIQUE constraint failed: posts.slug")))
	assert.True(t, IsConflict(errors.New(`ERROR: duplicate key value violates unique constraint "idx_posts_slug"`)))
	assert.False(t, IsConflict(errors.New("no such table: posts")))
}

func TestSaveLongTitle(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "author@example.com")

	post, err := NewService(db, nil).Save(context.Background(), SaveRequest{
		AuthorID: user.ID,
		Title:    strings.Repeat("word ", 40),
		Content:  "x",
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(post.Slug), PostSlugMaxLength)
}

func TestSetTags(t *testing.T) {
	db := setupTestDB(t)
	author := createTestUser(t, db, "author@example.com")
	other := createTestUser(t, db, "other@example.com")
	svc := NewService(db, nil)
	ctx := context.Background()

	post, err := svc.Save(ctx, SaveRequest{AuthorID: author.ID, Title: "Post", Content: words(10), Tags: "old"})
	require.NoError(t, err)

	tags, err := svc.SetTags(ctx, post.ID, author.ID, "New, newer, NEW")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "new", tags[0].Slug)
	assert.Equal(t, "NEW", tags[0].Name)

	stored := loadTags(t, db, post.ID)
	require.Len(t, stored, 2)
	assert.Equal(t, "new", stored[0].Slug)
	assert.Equal(t, "newer", stored[1].Slug)

	var reloaded models.Post
	require.NoError(t, db.First(&reloaded, post.ID).Error)
	assert.Equal(t, post.Slug, reloaded.Slug)
	assert.Equal(t, post.ReadTime, reloaded.ReadTime)

	_, err = svc.SetTags(ctx, post.ID, other.ID, "hijack")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.SetTags(ctx, 999, author.ID, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}
