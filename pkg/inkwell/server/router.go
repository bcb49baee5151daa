package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mikepea/inkwell/pkg/inkwell/auth"
	"github.com/mikepea/inkwell/pkg/inkwell/comments"
	"github.com/mikepea/inkwell/pkg/inkwell/logging"
	"github.com/mikepea/inkwell/pkg/inkwell/posts"
	"github.com/mikepea/inkwell/pkg/inkwell/publish"
	"github.com/mikepea/inkwell/pkg/inkwell/reactions"
	"github.com/mikepea/inkwell/pkg/inkwell/tags"
	"gorm.io/gorm"
)

// Options configures the router
type Options struct {
	PageSize           int
	CORSAllowedOrigins []string
	Logger             *slog.Logger
}

// NewRouter creates a gin engine with every route registered
func NewRouter(db *gorm.DB, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(logger))

	if len(opts.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSAllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
		}))
	}

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	svc := publish.NewService(db, logger)

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"service": "inkwell",
			})
		})

		// Auth routes (public)
		authHandler := auth.NewHandler(db)
		authHandler.RegisterRoutes(api.Group("/auth"))

		// Posts, listings and bookmarks
		postsHandler := posts.NewHandler(db, svc, opts.PageSize)
		postsHandler.RegisterRoutes(api)

		// Tags
		tagsHandler := tags.NewHandler(db, svc)
		tagsHandler.RegisterRoutes(api)

		// Comments
		commentsHandler := comments.NewHandler(db)
		commentsHandler.RegisterRoutes(api)

		// Likes and bookmarks
		reactionsHandler := reactions.NewHandler(db)
		reactionsHandler.RegisterRoutes(api)
	}

	return r
}
