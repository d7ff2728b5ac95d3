// Package main runs the Cyblex HTTP API with the chat WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyblex/backend/config"
	"github.com/cyblex/backend/internal/admin"
	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/internal/chat"
	"github.com/cyblex/backend/internal/lawyers"
	"github.com/cyblex/backend/internal/middleware"
	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/internal/notifications"
	"github.com/cyblex/backend/internal/payhere"
	"github.com/cyblex/backend/internal/payments"
	"github.com/cyblex/backend/internal/queries"
	"github.com/cyblex/backend/internal/ratings"
	"github.com/cyblex/backend/internal/realtime"
	"github.com/cyblex/backend/internal/validation"
	"github.com/cyblex/backend/pkg/database"
	applog "github.com/cyblex/backend/pkg/logger"
	"github.com/cyblex/backend/pkg/queue"
	"github.com/cyblex/backend/pkg/redis"
	"github.com/cyblex/backend/pkg/response"
	"github.com/cyblex/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		applog.New("info").Fatal("load config", zap.Error(err))
	}
	logger := applog.New(cfg.Log.Level)
	defer logger.Sync()
	payhereLogger := applog.Tee(logger, applog.FileConfig{Path: cfg.PayHere.LogFile, MaxBackups: 5, MaxAgeDays: 30}, "payhere")

	if err := validation.Register(); err != nil {
		logger.Fatal("register validators", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var (
		docStore  lawyers.DocumentStore
		docLinker admin.DocumentLinker
	)
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			DocumentsBucket:      cfg.AWS.DocumentsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			docStore, docLinker = s3Client, s3Client
		}
	} else {
		logger.Warn("s3 disabled: AWS_REGION not set, verification uploads are unavailable")
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	revocations := auth.NewRevocations(rdb.Client)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, pubsub, pubsub)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, revocations, auth.CookieConfig{
		Name:   cfg.JWT.CookieName,
		Secure: cfg.Server.SecureCookies,
	}, logger)

	// Queries, chat and ratings
	queryRepo := queries.NewRepository(pool)
	queryService := queries.NewService(queryRepo, hub, logger)
	queryHandler := queries.NewHandler(queryService, logger)

	chatService := chat.NewService(chat.NewRepository(pool), queryRepo, hub, logger)
	chatHandler := chat.NewHandler(chatService, logger)

	ratingService := ratings.NewService(ratings.NewRepository(pool), queryRepo, logger)
	ratingHandler := ratings.NewHandler(ratingService, logger)

	// Payments (PayHere)
	payhereClient := payhere.NewClient(cfg.PayHere.Environment, cfg.PayHere.AppID, cfg.PayHere.AppSecret, 15*time.Second)
	paymentService := payments.NewService(payments.NewRepository(pool), payments.Config{
		Merchant:       cfg.PayHere.Merchant(),
		MinAmountCents: cfg.PayHere.MinAmountCents,
		MaxAmountCents: cfg.PayHere.MaxAmountCents,
		PendingTimeout: time.Duration(cfg.PayHere.TimeoutSeconds) * time.Second,
	}, payhereClient, hub, jobQueue, payhereLogger)
	paymentHandler := payments.NewHandler(paymentService, cfg.Server.FrontendURL, payhereLogger)
	paymentWebhook := payments.NewWebhookHandler(paymentService, payhereLogger)
	if cfg.PayHere.MerchantID == "" || cfg.PayHere.MerchantSecret == "" {
		payhereLogger.Warn("payhere merchant credentials missing, checkouts and notifications will be rejected")
	}

	// Lawyers, notifications and admin
	lawyerHandler := lawyers.NewHandler(lawyers.NewService(lawyers.NewRepository(pool), docStore, logger), logger)
	notificationHandler := notifications.NewHandler(notifications.NewService(notifications.NewRepository(pool), jobQueue, logger), logger)
	adminHandler := admin.NewHandler(admin.NewService(admin.NewRepository(pool), queryService, ratingService, docLinker, logger), logger)

	// Rate limits (shared across instances through Redis)
	limiterStore, err := middleware.NewLimiterStore(rdb.Client)
	if err != nil {
		logger.Fatal("rate limiter store", zap.Error(err))
	}
	authLimit, err := middleware.RateLimit(limiterStore, cfg.RateLimit.Auth, "auth", logger)
	if err != nil {
		logger.Fatal("auth rate limit", zap.Error(err))
	}

	wsAuthenticate := func(ctx context.Context, token string) (auth.Identity, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return auth.Identity{}, err
		}
		id := auth.IdentityFromClaims(claims)
		revoked, err := revocations.IsRevoked(ctx, id.TokenID)
		if err != nil {
			logger.Warn("revocation check failed", zap.Error(err))
		} else if revoked {
			return auth.Identity{}, auth.ErrInvalidToken
		}
		return id, nil
	}

	client := middleware.RequireRole(models.UserTypeClient)
	lawyer := middleware.RequireRole(models.UserTypeLawyer)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authLimit, authHandler.Login)
		authGroup.POST("/register", authLimit, authHandler.Register)
	}
	router.GET("/categories", queryHandler.Categories)

	// PayHere callbacks (no JWT; notifications are verified by signature)
	payments.RegisterCallbacks(router, paymentWebhook, paymentHandler)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService, revocations, cfg.JWT.CookieName, logger))
	{
		api.POST("/auth/logout", authHandler.Logout)
		api.GET("/auth/me", authHandler.Me)

		// Legal queries
		api.POST("/queries", client, queryHandler.Submit)
		api.GET("/queries", queryHandler.List)
		api.GET("/queries/pending", lawyer, queryHandler.Pending)
		api.GET("/queries/:id", queryHandler.Get)
		api.POST("/queries/:id/accept", lawyer, queryHandler.Accept)
		api.POST("/queries/:id/start-chat", queryHandler.StartChat)
		api.POST("/queries/:id/complete", queryHandler.Complete)
		api.POST("/queries/:id/cancel", client, queryHandler.Cancel)

		// Chat
		api.POST("/queries/:id/messages", chatHandler.Send)
		api.GET("/queries/:id/messages", chatHandler.Messages)
		api.GET("/queries/:id/messages/new", chatHandler.CheckNew)

		// Ratings
		api.POST("/queries/:id/rating", client, ratingHandler.Submit)
		api.GET("/queries/:id/rating", ratingHandler.Get)

		// Payments
		api.POST("/payments/initialize", client, paymentHandler.Initialize)
		api.POST("/payments/checkout", client, paymentHandler.Checkout)
		api.GET("/payments/status", paymentHandler.Status)
		api.POST("/payments/status", paymentHandler.Status)
		api.POST("/payments/override", paymentHandler.Override)

		// Lawyer profile and verification
		api.GET("/lawyers/me", lawyer, lawyerHandler.Me)
		api.PUT("/lawyers/me", lawyer, lawyerHandler.Update)
		api.POST("/lawyers/me/verification", lawyer, lawyerHandler.SubmitVerification)

		// Notifications
		api.GET("/notifications", notificationHandler.List)
		api.POST("/notifications/:id/read", notificationHandler.MarkRead)
	}

	// Admin
	adminGroup := api.Group("/admin", middleware.RequireRole(models.UserTypeAdmin))
	{
		adminGroup.GET("/analytics", adminHandler.Analytics)
		adminGroup.GET("/users", adminHandler.Users)
		adminGroup.PATCH("/users/:id/status", adminHandler.SetUserStatus)
		adminGroup.GET("/queries", adminHandler.Queries)
		adminGroup.GET("/reviews", adminHandler.Reviews)
		adminGroup.GET("/verifications", adminHandler.Verifications)
		adminGroup.GET("/verifications/:id/document", adminHandler.Document)
		adminGroup.POST("/lawyers/:id/verify", adminHandler.VerifyLawyer)
		adminGroup.POST("/notifications", notificationHandler.Broadcast)
		adminGroup.GET("/logs", adminHandler.Logs)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, wsAuthenticate, chatService.CanJoin))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.Stringer("payhere_env", cfg.PayHere.Environment))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
