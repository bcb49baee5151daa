package tags

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/inkwell/pkg/inkwell/auth"
	"github.com/mikepea/inkwell/pkg/inkwell/models"
	"github.com/mikepea/inkwell/pkg/inkwell/publish"
	"gorm.io/gorm"
)

// Handler handles tag-related requests
type Handler struct {
	db  *gorm.DB
	svc *publish.Service
}

// NewHandler creates a new tags handler
func NewHandler(db *gorm.DB, svc *publish.Service) *Handler {
	return &Handler{db: db, svc: svc}
}

// TagResponse represents a tag in API responses
type TagResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	PostCount int    `json:"post_count,omitempty"`
}

// SetTagsRequest carries comma-separated tag text, e.g. "design, startup, ai"
type SetTagsRequest struct {
	Tags string `json:"tags"`
}

// ToResponse converts tags for API responses
func ToResponse(tags []models.Tag) []TagResponse {
	out := make([]TagResponse, len(tags))
	for i, t := range tags {
		out[i] = TagResponse{ID: t.ID, Name: t.Name, Slug: t.Slug}
	}
	return out
}

// visiblePost loads a post by slug if the requester may see it
func (h *Handler) visiblePost(c *gin.Context) (*models.Post, bool) {
	var post models.Post
	if err := h.db.Preload("Tags").Where("slug = ?", c.Param("slug")).First(&post).Error; err != nil {
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

// List returns every tag used by at least one published post
func (h *Handler) List(c *gin.Context) {
	type tagWithCount struct {
		ID        uint
		Name      string
		Slug      string
		PostCount int
	}

	var results []tagWithCount
	err := h.db.Table("tags").
		Select("tags.id, tags.name, tags.slug, COUNT(DISTINCT posts.id) AS post_count").
		Joins("INNER JOIN post_tags ON tags.id = post_tags.tag_id").
		Joins("INNER JOIN posts ON post_tags.post_id = posts.id AND posts.status = ? AND posts.deleted_at IS NULL", models.PostStatusPublished).
		Group("tags.id, tags.name, tags.slug").
		Order("post_count DESC, tags.slug ASC").
		Find(&results).Error

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tags"})
		return
	}

	tags := make([]TagResponse, len(results))
	for i, r := range results {
		tags[i] = TagResponse{
			ID:        r.ID,
			Name:      r.Name,
			Slug:      r.Slug,
			PostCount: r.PostCount,
		}
	}

	c.JSON(http.StatusOK, tags)
}

// GetPostTags returns tags for a specific post
func (h *Handler) GetPostTags(c *gin.Context) {
	post, ok := h.visiblePost(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	c.JSON(http.StatusOK, ToResponse(post.Tags))
}

// SetPostTags replaces the tags of a post (author only)
func (h *Handler) SetPostTags(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var post models.Post
	if err := h.db.Where("slug = ?", c.Param("slug")).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	var req SetTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tags, err := h.svc.SetTags(c.Request.Context(), post.ID, userID, req.Tags)
	if err != nil {
		switch {
		case errors.Is(err, publish.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the author can change tags"})
		case errors.Is(err, publish.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tags"})
		}
		return
	}

	c.JSON(http.StatusOK, ToResponse(tags))
}

// RegisterRoutes registers tag routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tags", h.List)
	rg.GET("/posts/:slug/tags", auth.OptionalAuth(), h.GetPostTags)
	rg.PUT("/posts/:slug/tags", auth.AuthMiddleware(), h.SetPostTags)
}
