package posts

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/inkwell/pkg/inkwell/auth"
	"github.com/mikepea/inkwell/pkg/inkwell/comments"
	"github.com/mikepea/inkwell/pkg/inkwell/models"
	"github.com/mikepea/inkwell/pkg/inkwell/publish"
	"github.com/mikepea/inkwell/pkg/inkwell/reactions"
	"github.com/mikepea/inkwell/pkg/inkwell/tags"
	"gorm.io/gorm"
)

// DefaultPageSize is used when the handler is built with a non-positive page size
const DefaultPageSize = 6

// Handler handles post requests
type Handler struct {
	db       *gorm.DB
	svc      *publish.Service
	pageSize int
}

// NewHandler creates a new posts handler
func NewHandler(db *gorm.DB, svc *publish.Service, pageSize int) *Handler {
	registerValidators()
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Handler{db: db, svc: svc, pageSize: pageSize}
}

// PostRequest represents the request to create or update a post.
// Tags is comma-separated free text, e.g. "design, startup, ai".
type PostRequest struct {
	Title    string            `json:"title" binding:"required,max=100"`
	Subtitle string            `json:"subtitle" binding:"max=200"`
	Content  string            `json:"content" binding:"required"`
	Status   models.PostStatus `json:"status" binding:"omitempty,poststatus"`
	Tags     string            `json:"tags"`
}

// PostResponse represents a post in API responses
type PostResponse struct {
	ID         uint                `json:"id"`
	Title      string              `json:"title"`
	Subtitle   string              `json:"subtitle"`
	Slug       string              `json:"slug"`
	Content    string              `json:"content"`
	Status     models.PostStatus   `json:"status"`
	ReadTime   uint                `json:"read_time"`
	DatePosted time.Time           `json:"date_posted"`
	UpdatedAt  time.Time           `json:"updated_at"`
	Author     auth.AuthorResponse `json:"author"`
	Tags       []tags.TagResponse  `json:"tags"`
	LikeCount  int64               `json:"like_count"`
}

// PostDetailResponse is a single post with its comments and reactions
type PostDetailResponse struct {
	PostResponse
	BookmarkCount int64                      `json:"bookmark_count"`
	HasLiked      bool                       `json:"has_liked"`
	HasBookmarked bool                       `json:"has_bookmarked"`
	Comments      []comments.CommentResponse `json:"comments"`
}

// PageResponse is one page of a post listing
type PageResponse struct {
	Posts    []PostResponse `json:"posts"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Total    int64          `json:"total"`
	HasNext  bool           `json:"has_next"`
}

func postToResponse(post models.Post, likes int64) PostResponse {
	return PostResponse{
		ID:         post.ID,
		Title:      post.Title,
		Subtitle:   post.Subtitle,
		Slug:       post.Slug,
		Content:    post.Content,
		Status:     post.Status,
		ReadTime:   post.ReadTime,
		DatePosted: post.DatePosted,
		UpdatedAt:  post.UpdatedAt,
		Author:     auth.ToAuthor(post.Author),
		Tags:       tags.ToResponse(post.Tags),
		LikeCount:  likes,
	}
}

func (h *Handler) loadPost(id uint) (models.Post, error) {
	var post models.Post
	err := h.db.Preload("Author").Preload("Tags").First(&post, id).Error
	return post, err
}

// writeSaveError maps save pipeline errors to HTTP responses
func writeSaveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, publish.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the author can edit this post"})
	case errors.Is(err, publish.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
	case errors.Is(err, publish.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Post could not be saved, please retry"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save post"})
	}
}

// paginate writes one page of the posts matched by query, newest first
func (h *Handler) paginate(c *gin.Context, query *gorm.DB) {
	page := 1
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}
	if maxPage := math.MaxInt32 / h.pageSize; page > maxPage {
		page = maxPage
	}

	base := query.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count posts"})
		return
	}

	var found []models.Post
	err := base.Select("posts.*").
		Preload("Author").
		Preload("Tags").
		Order("posts.date_posted DESC, posts.id DESC").
		Limit(h.pageSize).
		Offset((page - 1) * h.pageSize).
		Find(&found).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	ids := make([]uint, len(found))
	for i, p := range found {
		ids[i] = p.ID
	}
	likes, err := reactions.Counts(h.db, reactions.Like, ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch likes"})
		return
	}

	responses := make([]PostResponse, len(found))
	for i, p := range found {
		responses[i] = postToResponse(p, likes[p.ID])
	}

	c.JSON(http.StatusOK, PageResponse{
		Posts:    responses,
		Page:     page,
		PageSize: h.pageSize,
		Total:    total,
		HasNext:  int64(page*h.pageSize) < total,
	})
}

func (h *Handler) published() *gorm.DB {
	return h.db.Model(&models.Post{}).Where("posts.status = ?", models.PostStatusPublished)
}

// List returns published posts, newest first
func (h *Handler) List(c *gin.Context) {
	h.paginate(c, h.published())
}

// ByTag returns published posts carrying a tag, looked up by its normalized key
func (h *Handler) ByTag(c *gin.Context) {
	tag, err := publish.NewGormStore(h.db).FindByKey(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, publish.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tag"})
		return
	}

	query := h.published().
		Joins("JOIN post_tags ON post_tags.post_id = posts.id").
		Where("post_tags.tag_id = ?", tag.ID)
	h.paginate(c, query)
}

// Bookmarks returns the requester's bookmarked published posts
func (h *Handler) Bookmarks(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	query := h.published().
		Joins("JOIN post_bookmarks ON post_bookmarks.post_id = posts.id").
		Where("post_bookmarks.user_id = ?", userID)
	h.paginate(c, query)
}

// Get returns a post by slug. Drafts are only visible to their author.
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var post models.Post
	if err := h.db.Preload("Author").Preload("Tags").Where("slug = ?", c.Param("slug")).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	if post.Status != models.PostStatusPublished && post.AuthorID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	postComments, err := comments.ForPost(h.db, post.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comments"})
		return
	}

	summary, err := reactions.Summarize(h.db, &post, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reactions"})
		return
	}

	c.JSON(http.StatusOK, PostDetailResponse{
		PostResponse:  postToResponse(post, summary.LikeCount),
		BookmarkCount: summary.BookmarkCount,
		HasLiked:      summary.HasLiked,
		HasBookmarked: summary.HasBookmarked,
		Comments:      comments.ToResponse(postComments),
	})
}

// Create creates a new post authored by the requester
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := h.svc.Save(c.Request.Context(), publish.SaveRequest{
		AuthorID: userID,
		Title:    req.Title,
		Subtitle: req.Subtitle,
		Content:  req.Content,
		Status:   req.Status,
		Tags:     req.Tags,
	})
	if err != nil {
		writeSaveError(c, err)
		return
	}

	post, err := h.loadPost(saved.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load post"})
		return
	}

	c.JSON(http.StatusCreated, postToResponse(post, 0))
}

// Update replaces a post's editable fields. The slug never changes.
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var existing models.Post
	if err := h.db.Where("slug = ?", c.Param("slug")).First(&existing).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := h.svc.Save(c.Request.Context(), publish.SaveRequest{
		PostID:   existing.ID,
		AuthorID: userID,
		Title:    req.Title,
		Subtitle: req.Subtitle,
		Content:  req.Content,
		Status:   req.Status,
		Tags:     req.Tags,
	})
	if err != nil {
		writeSaveError(c, err)
		return
	}

	post, err := h.loadPost(saved.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load post"})
		return
	}
	likes, err := reactions.Counts(h.db, reactions.Like, []uint{post.ID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch likes"})
		return
	}

	c.JSON(http.StatusOK, postToResponse(post, likes[post.ID]))
}

// Delete soft-deletes a post. Its slug stays reserved.
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var post models.Post
	if err := h.db.Where("slug = ?", c.Param("slug")).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	if post.AuthorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the author can delete this post"})
		return
	}

	if err := h.db.Delete(&post).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete post"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

// RegisterRoutes registers post routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/posts", h.List)
	rg.GET("/posts/:slug", auth.OptionalAuth(), h.Get)
	rg.GET("/tags/:slug/posts", h.ByTag)

	protected := rg.Group("")
	protected.Use(auth.AuthMiddleware())
	protected.POST("/posts", h.Create)
	protected.PUT("/posts/:slug", h.Update)
	protected.DELETE("/posts/:slug", h.Delete)
	protected.GET("/bookmarks", h.Bookmarks)
}
