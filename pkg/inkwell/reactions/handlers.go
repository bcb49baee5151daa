package reactions

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/inkwell/pkg/inkwell/auth"
	"github.com/mikepea/inkwell/pkg/inkwell/models"
	"gorm.io/gorm"
)

// Kind names a reaction and the post association that stores it
type Kind string

const (
	Like     Kind = "Likes"
	Bookmark Kind = "Bookmarks"
)

func (k Kind) joinTable() string {
	if k == Bookmark {
		return "post_bookmarks"
	}
	return "post_likes"
}

// Handler handles like and bookmark toggles
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new reactions handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// ToggleResponse is the requester's reaction state after a toggle
type ToggleResponse struct {
	Active bool  `json:"active"`
	Count  int64 `json:"count"`
}

// Summary holds the reaction counts of a post and the requester's state
type Summary struct {
	LikeCount     int64 `json:"like_count"`
	BookmarkCount int64 `json:"bookmark_count"`
	HasLiked      bool  `json:"has_liked"`
	HasBookmarked bool  `json:"has_bookmarked"`
}

// Has reports whether userID holds a reaction of kind on postID
func Has(db *gorm.DB, kind Kind, postID, userID uint) (bool, error) {
	var count int64
	err := db.Table(kind.joinTable()).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error
	return count > 0, err
}

// Counts returns the number of reactions of kind per post for the given posts
func Counts(db *gorm.DB, kind Kind, postIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		PostID uint
		N      int64
	}
	err := db.Table(kind.joinTable()).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.PostID] = r.N
	}
	return counts, nil
}

// Summarize builds the reaction summary of one post. A zero userID is anonymous.
func Summarize(db *gorm.DB, post *models.Post, userID uint) (Summary, error) {
	var s Summary
	var err error
	if s.LikeCount, err = countFor(db, Like, post.ID); err != nil {
		return s, err
	}
	if s.BookmarkCount, err = countFor(db, Bookmark, post.ID); err != nil {
		return s, err
	}
	if userID == 0 {
		return s, nil
	}
	if s.HasLiked, err = Has(db, Like, post.ID, userID); err != nil {
		return s, err
	}
	s.HasBookmarked, err = Has(db, Bookmark, post.ID, userID)
	return s, err
}

func countFor(db *gorm.DB, kind Kind, postID uint) (int64, error) {
	counts, err := Counts(db, kind, []uint{postID})
	if err != nil {
		return 0, err
	}
	return counts[postID], nil
}

// Toggle adds the reaction if the user does not hold it and removes it otherwise
func Toggle(db *gorm.DB, kind Kind, post *models.Post, user *models.User) (ToggleResponse, error) {
	var resp ToggleResponse
	err := db.Transaction(func(tx *gorm.DB) error {
		active, err := Has(tx, kind, post.ID, user.ID)
		if err != nil {
			return err
		}

		assoc := tx.Model(post).Association(string(kind))
		if active {
			err = assoc.Delete(user)
		} else {
			err = assoc.Append(user)
		}
		if err != nil {
			return err
		}

		resp.Active = !active
		resp.Count, err = countFor(tx, kind, post.ID)
		return err
	})
	return resp, err
}

func (h *Handler) toggle(c *gin.Context, kind Kind) {
	userID, _ := auth.GetUserID(c)

	var post models.Post
	if err := h.db.Where("slug = ?", c.Param("slug")).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	if post.Status != models.PostStatusPublished && post.AuthorID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	resp, err := Toggle(h.db, kind, &post, &user)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update reaction"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ToggleLike likes or unlikes a post
func (h *Handler) ToggleLike(c *gin.Context) {
	h.toggle(c, Like)
}

// ToggleBookmark bookmarks or unbookmarks a post
func (h *Handler) ToggleBookmark(c *gin.Context) {
	h.toggle(c, Bookmark)
}

// RegisterRoutes registers reaction routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	protected := rg.Group("")
	protected.Use(auth.AuthMiddleware())
	protected.POST("/posts/:slug/like", h.ToggleLike)
	protected.POST("/posts/:slug/bookmark", h.ToggleBookmark)
}
