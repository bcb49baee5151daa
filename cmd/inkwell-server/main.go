package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/inkwell/pkg/inkwell/config"
	"github.com/mikepea/inkwell/pkg/inkwell/database"
	"github.com/mikepea/inkwell/pkg/inkwell/logging"
	"github.com/mikepea/inkwell/pkg/inkwell/models"
	"github.com/mikepea/inkwell/pkg/inkwell/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	// Connect to database
	if err := database.Connect(cfg.DBDriver, cfg.DBDSN); err != nil {
		logger.Error("failed to connect to database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}

	// Run auto-migrations
	if err := models.AutoMigrate(database.GetDB()); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations completed", "driver", cfg.DBDriver)

	router := server.NewRouter(database.GetDB(), server.Options{
		PageSize:           cfg.PageSize,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:             logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting inkwell server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := database.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}
}
