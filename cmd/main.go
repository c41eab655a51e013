package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rugbuster/internal/auth"
	"rugbuster/internal/config"
	"rugbuster/internal/database"
	"rugbuster/internal/handlers"
	"rugbuster/internal/jobs"
	"rugbuster/internal/logger"
	"rugbuster/internal/realtime"
	"rugbuster/internal/services"
	"rugbuster/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	logger.Initialize(logger.Configuration{
		Level:   cfg.Log.Level,
		LogFile: cfg.Log.File,
		Console: true,
	})

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	// Realtime change feed
	hub := realtime.NewHub()

	// Image storage
	images, err := storage.NewDiskStore(cfg.Upload.Dir, cfg.Upload.PublicBaseURL)
	if err != nil {
		logger.Fatal("failed to initialize image store", zap.Error(err))
	}

	// Initialize services
	db := database.GetDB()
	authService := services.NewAuthService(db)
	adminService := services.NewAdminService(db, hub)
	nominationService := services.NewNominationService(db, hub)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, adminService)
	nominationHandler := handlers.NewNominationHandler(nominationService, adminService)
	adminHandler := handlers.NewAdminHandler(adminService, images)
	realtimeHandler := handlers.NewRealtimeHandler(hub)

	// Daily platform stats snapshot
	statsJob := jobs.NewStatsJob(adminService)
	statsJob.Start(24 * time.Hour)

	// Set up Gin router
	router := gin.Default()

	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	allowedOrigins = append(allowedOrigins, cfg.Server.AllowedOrigins...)

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Uploaded images
	router.Static("/images", images.Dir())

	// Realtime change feed
	router.GET("/ws", realtimeHandler.Subscribe)

	// Authentication routes (public)
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/wallet", authHandler.WalletLogin)
		authRoutes.POST("/logout", authHandler.Logout)
	}

	// Authenticated /auth/me route
	authProtected := router.Group("/auth")
	authProtected.Use(auth.AuthMiddleware())
	{
		authProtected.GET("/me", authHandler.GetMe)
	}

	// Public leaderboard routes
	router.GET("/api/nominations", nominationHandler.GetNominations)
	router.GET("/api/nominations/pending", nominationHandler.GetPendingNominations)
	router.GET("/api/nominations/:id", nominationHandler.GetNominationByID)

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		api.POST("/nominations", nominationHandler.SubmitNomination)
		api.POST("/nominations/:id/vote", nominationHandler.Vote)
		api.POST("/nominations/:id/sign", nominationHandler.SignLawsuit)
	}

	// Admin routes (protected + allow-listed)
	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware())
	admin.Use(adminHandler.AdminMiddleware())
	{
		admin.GET("/dashboard", adminHandler.GetDashboard)
		admin.GET("/logs", adminHandler.GetAdminLogs)

		admin.GET("/nominations", adminHandler.GetNominations)
		admin.PUT("/nominations/:id", adminHandler.UpdateNomination)
		admin.POST("/nominations/:id/counter", adminHandler.AdjustCounter)
		admin.POST("/nominations/:id/status", adminHandler.SetStatus)
		admin.POST("/nominations/:id/pin", adminHandler.SetPinned)
		admin.POST("/nominations/:id/image", adminHandler.UploadImage)
		admin.DELETE("/nominations/:id", adminHandler.DeleteNomination)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	statsJob.Stop()

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
