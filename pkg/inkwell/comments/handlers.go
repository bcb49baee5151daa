package comments

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/inkwell/pkg/inkwell/auth"
	"github.com/mikepea/inkwell/pkg/inkwell/models"
	"gorm.io/gorm"
)

// Handler handles comment requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new comments handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateCommentRequest represents the request to comment on a post
type CreateCommentRequest struct {
	Content string `json:"content" binding:"required,max=5000"`
}

// CommentResponse represents a comment in API responses
type CommentResponse struct {
	ID         uint                `json:"id"`
	Content    string              `json:"content"`
	DatePosted time.Time           `json:"date_posted"`
	Author     auth.AuthorResponse `json:"author"`
}

// ToResponse converts comments for API responses. Authors must be preloaded.
func ToResponse(comments []models.Comment) []CommentResponse {
	out := make([]CommentResponse, len(comments))
	for i, cm := range comments {
		out[i] = CommentResponse{
			ID:         cm.ID,
			Content:    cm.Content,
			DatePosted: cm.DatePosted,
			Author:     auth.ToAuthor(cm.Author),
		}
	}
	return out
}

// ForPost loads a post's comments, oldest first
func ForPost(db *gorm.DB, postID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := db.Preload("Author").
		Where("post_id = ?", postID).
		Order("date_posted ASC, id ASC").
		Find(&comments).Error
	return comments, err
}

// findPost loads a post by slug. Drafts are only found by their author.
func (h *Handler) findPost(c *gin.Context) (*models.Post, bool) {
	var post models.Post
	if err := h.db.Where("slug = ?", c.Param("slug")).First(&post).Error; err != nil {
		return nil, false
	}
	if post.Status != models.PostStatusPublished {
		userID, ok := auth.GetUserID(c)
		if !ok || userID != post.AuthorID {
			return nil, false
		}
	}
	return &post, true
}

// List returns the comments on a post
func (h *Handler) List(c *gin.Context) {
	post, ok := h.findPost(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	comments, err := ForPost(h.db, post.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comments"})
		return
	}

	c.JSON(http.StatusOK, ToResponse(comments))
}

// Create adds a comment to a post
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	post, ok := h.findPost(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Comment cannot be empty"})
		return
	}

	comment := models.Comment{
		PostID:     post.ID,
		AuthorID:   userID,
		Content:    content,
		DatePosted: time.Now(),
	}
	if err := h.db.Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}
	if err := h.db.Preload("Author").First(&comment, comment.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load comment"})
		return
	}

	c.JSON(http.StatusCreated, ToResponse([]models.Comment{comment})[0])
}

// RegisterRoutes registers comment routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/posts/:slug/comments", auth.OptionalAuth(), h.List)
	rg.POST("/posts/:slug/comments", auth.AuthMiddleware(), h.Create)
}
