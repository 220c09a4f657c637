package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	approvalapp "github.com/mfi/backend/internal/application/approval"
	eventapp "github.com/mfi/backend/internal/application/event"
	identityapp "github.com/mfi/backend/internal/application/identity"
	ledgerapp "github.com/mfi/backend/internal/application/ledger"
	lendingapp "github.com/mfi/backend/internal/application/lending"
	"github.com/mfi/backend/internal/domain/approval"
	"github.com/mfi/backend/internal/infrastructure/amortization"
	"github.com/mfi/backend/internal/infrastructure/auth"
	"github.com/mfi/backend/internal/infrastructure/authz"
	"github.com/mfi/backend/internal/infrastructure/cache"
	"github.com/mfi/backend/internal/infrastructure/config"
	"github.com/mfi/backend/internal/infrastructure/event"
	"github.com/mfi/backend/internal/infrastructure/logger"
	"github.com/mfi/backend/internal/infrastructure/persistence"
	"github.com/mfi/backend/internal/infrastructure/scheduler"
	"github.com/mfi/backend/internal/interfaces/http/handler"
	"github.com/mfi/backend/internal/interfaces/http/middleware"
	"github.com/mfi/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting lending backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Redis backs the token blacklist and the amortization recalc queue.
	// The server still comes up without it, with degraded guarantees.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	redisErr := redisClient.Ping(pingCtx).Err()
	pingCancel()

	var tokenBlacklist auth.TokenBlacklist
	if redisErr != nil {
		log.Warn("Redis unavailable, using in-memory token blacklist", zap.Error(redisErr))
		tokenBlacklist = auth.NewInMemoryTokenBlacklist()
	} else {
		tokenBlacklist = auth.NewRedisTokenBlacklistWithClient(redisClient)
	}

	// Initialize repositories
	workflowRepo := persistence.NewGormWorkflowRepository(db.DB)
	requestRepo := persistence.NewGormApprovalRequestRepository(db.DB)
	loanRepo := persistence.NewGormLoanRepository(db.DB)
	ledgerPoster := persistence.NewGormLedgerPoster(db.DB)
	userRepo := persistence.NewGormUserRepository(db.DB)
	roleRepo := persistence.NewGormRoleRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	// Initialize event serializer and register all event types
	eventSerializer := event.NewEventSerializer()
	event.RegisterAllEvents(eventSerializer)

	// Create outbox publisher for transactional event saving
	outboxPublisher := event.NewOutboxPublisher(eventSerializer)

	// Inject outbox publisher into repositories that need transactional event publishing
	workflowRepo.SetOutboxEventSaver(outboxPublisher)
	requestRepo.SetOutboxEventSaver(outboxPublisher)
	loanRepo.SetOutboxEventSaver(outboxPublisher)

	// Completion handlers route terminal approval outcomes back into the
	// loan lifecycle, one handler per gated entity type
	registry := approvalapp.NewCompletionRegistry()
	registry.Register(approval.EntityTypeLoan, lendingapp.NewLoanApprovalHandler(loanRepo, log))
	registry.Register(approval.EntityTypeDisbursement, lendingapp.NewDisbursementApprovalHandler(loanRepo, log))
	registry.Register(approval.EntityTypeRateChange, lendingapp.NewRateChangeApprovalHandler(loanRepo, log))
	registry.Register(approval.EntityTypeWriteOff, lendingapp.NewWriteOffApprovalHandler(loanRepo, log))

	// Initialize application services
	authorizer := authz.NewGormLevelAuthorizer(db.DB, log)
	approvalService := approvalapp.NewApprovalService(workflowRepo, requestRepo, authorizer, registry, log)
	workflowService := approvalapp.NewWorkflowService(workflowRepo, log)
	loanService := lendingapp.NewLoanService(loanRepo, approvalService, log)
	outboxService := eventapp.NewOutboxService(outboxRepo, log)

	// Identity services (auth, user, role)
	jwtService := auth.NewJWTService(cfg.JWT)
	authService := identityapp.NewAuthService(userRepo, roleRepo, jwtService, identityapp.DefaultAuthServiceConfig(), log)
	authService.SetTokenBlacklist(tokenBlacklist)
	userService := identityapp.NewUserService(userRepo, roleRepo, log)
	roleService := identityapp.NewRoleService(roleRepo, log)

	// Initialize event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)

	// Idempotency store guards the ledger handlers against outbox redelivery
	idempotencyStore := cache.NewIdempotencyStore(cfg.Redis, log)

	// Register event handlers for cross-context integration
	// Tranche disbursed -> ledger disbursement posting
	trancheDisbursedHandler := ledgerapp.NewTrancheDisbursedHandler(ledgerPoster, log)
	eventBus.Subscribe(event.NewIdempotentHandler(trancheDisbursedHandler, idempotencyStore, log))

	// Loan written off -> ledger write-off posting
	loanWrittenOffHandler := ledgerapp.NewLoanWrittenOffHandler(ledgerPoster, log)
	eventBus.Subscribe(event.NewIdempotentHandler(loanWrittenOffHandler, idempotencyStore, log))

	// Rate change applied -> amortization schedule recalculation
	recalcQueue := amortization.NewRedisRecalcQueue(redisClient, "amortization:recalc", log)
	rateChangeAppliedHandler := ledgerapp.NewRateChangeAppliedHandler(recalcQueue, log)
	eventBus.Subscribe(event.NewIdempotentHandler(rateChangeAppliedHandler, idempotencyStore, log))

	log.Info("Event handlers registered",
		zap.Strings("tranche_disbursed_events", trancheDisbursedHandler.EventTypes()),
		zap.Strings("loan_written_off_events", loanWrittenOffHandler.EventTypes()),
		zap.Strings("rate_change_applied_events", rateChangeAppliedHandler.EventTypes()),
	)

	// Start event bus
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Initialize and start outbox processor for guaranteed event delivery
	// The outbox processor reads events from the outbox_events table and publishes them to the event bus
	if cfg.Event.ProcessorEnabled {
		outboxProcessorConfig := event.DefaultOutboxProcessorConfig()
		if cfg.Event.BatchSize > 0 {
			outboxProcessorConfig.BatchSize = cfg.Event.BatchSize
		}
		if cfg.Event.PollInterval > 0 {
			outboxProcessorConfig.PollInterval = cfg.Event.PollInterval
		}
		outboxProcessorConfig.CleanupEnabled = cfg.Event.CleanupEnabled
		if cfg.Event.CleanupRetention > 0 {
			outboxProcessorConfig.CleanupRetention = cfg.Event.CleanupRetention
		}
		outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, eventSerializer, outboxProcessorConfig, log)
		if err := outboxProcessor.Start(context.Background()); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			if err := outboxProcessor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
		log.Info("Outbox processor started",
			zap.Int("batch_size", outboxProcessorConfig.BatchSize),
			zap.Duration("poll_interval", outboxProcessorConfig.PollInterval),
		)
	}

	// Background jobs: SLA breach scanning and due rate change application
	if cfg.Scheduler.Enabled {
		slaScanner, err := scheduler.NewSLAScanner(scheduler.SLAScannerConfig{
			Enabled:      true,
			ScanInterval: cfg.Scheduler.SLAScanInterval,
			JobTimeout:   cfg.Scheduler.JobTimeout,
		}, approvalService, log)
		if err != nil {
			log.Fatal("Failed to create SLA scanner", zap.Error(err))
		}
		if err := slaScanner.Start(context.Background()); err != nil {
			log.Fatal("Failed to start SLA scanner", zap.Error(err))
		}
		defer func() {
			if err := slaScanner.Stop(context.Background()); err != nil {
				log.Error("Error stopping SLA scanner", zap.Error(err))
			}
		}()

		rateChangeSweeper, err := scheduler.NewRateChangeSweeper(scheduler.RateChangeSweeperConfig{
			Enabled:       true,
			SweepInterval: cfg.Scheduler.RateChangeSweepInterval,
			JobTimeout:    cfg.Scheduler.JobTimeout,
		}, loanService, log)
		if err != nil {
			log.Fatal("Failed to create rate change sweeper", zap.Error(err))
		}
		if err := rateChangeSweeper.Start(context.Background()); err != nil {
			log.Fatal("Failed to start rate change sweeper", zap.Error(err))
		}
		defer func() {
			if err := rateChangeSweeper.Stop(context.Background()); err != nil {
				log.Error("Error stopping rate change sweeper", zap.Error(err))
			}
		}()
		log.Info("Background jobs started",
			zap.Duration("sla_scan_interval", cfg.Scheduler.SLAScanInterval),
			zap.Duration("rate_change_sweep_interval", cfg.Scheduler.RateChangeSweepInterval),
		)
	}

	// Initialize HTTP handlers
	workflowHandler := handler.NewApprovalWorkflowHandler(workflowService)
	requestHandler := handler.NewApprovalRequestHandler(approvalService)
	loanHandler := handler.NewLoanHandler(loanService)
	authHandler := handler.NewAuthHandler(authService, cfg.Cookie, cfg.JWT)
	userHandler := handler.NewUserHandler(userService)
	roleHandler := handler.NewRoleHandler(roleService)
	outboxHandler := handler.NewOutboxHandler(outboxService)
	systemHandler := handler.NewSystemHandler(cfg.App.Name, cfg.App.Env)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Apply JWT authentication middleware to API routes
	// Configure skip paths for public endpoints
	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: tokenBlacklist,
		SkipPaths: []string{
			"/api/v1/auth/login",
			"/api/v1/auth/refresh",
			"/api/v1/ping",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		Logger: log,
	}
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Data scope loading runs after JWT auth so branch-scoped roles narrow
	// list queries (loans, approval requests) to their assigned branches.
	dataScopeConfig := middleware.DefaultDataScopeConfig(roleRepo)
	dataScopeConfig.Logger = log
	r.Use(middleware.DataScopeMiddlewareWithConfig(dataScopeConfig))

	// Authentication routes (login and refresh are public via skip paths)
	// Login gets its own tight per-IP budget to slow credential stuffing.
	loginLimiter := middleware.NewRateLimiter(10, time.Minute)
	authRoutes := router.NewDomainGroup("auth", "/auth")
	authRoutes.POST("/login", middleware.AuthRateLimit(loginLimiter), authHandler.Login)
	authRoutes.POST("/refresh", authHandler.RefreshToken)
	authRoutes.POST("/logout", authHandler.Logout)
	authRoutes.GET("/me", authHandler.GetCurrentUser)
	authRoutes.PUT("/password", authHandler.ChangePassword)

	// Approval workflow definitions
	workflowRoutes := router.NewDomainGroup("approval-workflows", "/approval-workflows")
	workflowRoutes.POST("", workflowHandler.Create)
	workflowRoutes.GET("", workflowHandler.List)
	workflowRoutes.GET("/:id", workflowHandler.GetByID)
	workflowRoutes.PUT("/:id", workflowHandler.Update)
	workflowRoutes.POST("/:id/activate", workflowHandler.Activate)
	workflowRoutes.POST("/:id/deactivate", workflowHandler.Deactivate)

	// Approval requests
	requestRoutes := router.NewDomainGroup("approval-requests", "/approval-requests")
	requestRoutes.POST("", requestHandler.Submit)
	requestRoutes.GET("", requestHandler.List)
	requestRoutes.GET("/overdue", requestHandler.ListOverdue)
	requestRoutes.GET("/:id", requestHandler.GetByID)
	requestRoutes.POST("/:id/decisions", requestHandler.Decide)
	requestRoutes.POST("/:id/cancel", requestHandler.Cancel)

	// Loan lifecycle
	loanRoutes := router.NewDomainGroup("loans", "/loans")
	loanRoutes.POST("", loanHandler.Create)
	loanRoutes.GET("", loanHandler.List)
	loanRoutes.GET("/:id", loanHandler.GetByID)
	loanRoutes.POST("/:id/submit", loanHandler.Submit)
	loanRoutes.POST("/:id/tranches", loanHandler.ScheduleTranche)
	loanRoutes.POST("/:id/tranches/:seq/verify", loanHandler.VerifyMilestone)
	loanRoutes.POST("/:id/tranches/:seq/request-approval", loanHandler.RequestDisbursementApproval)
	loanRoutes.POST("/:id/tranches/:seq/disburse", loanHandler.DisburseTranche)
	loanRoutes.POST("/:id/rate-changes", loanHandler.RequestRateChange)
	loanRoutes.POST("/:id/write-off", loanHandler.RequestWriteOff)
	loanRoutes.POST("/:id/repayments", loanHandler.RecordRepayment)
	loanRoutes.POST("/:id/accruals", loanHandler.AccrueInterest)
	loanRoutes.POST("/:id/mark-delinquent", loanHandler.MarkDelinquent)

	// Identity domain (users, roles, permissions)
	identityRoutes := router.NewDomainGroup("identity", "/identity")

	// User management routes
	identityRoutes.POST("/users", userHandler.Create)
	identityRoutes.GET("/users", userHandler.List)
	identityRoutes.GET("/users/stats/count", userHandler.Count)
	identityRoutes.GET("/users/:id", userHandler.GetByID)
	identityRoutes.PUT("/users/:id", userHandler.Update)
	identityRoutes.DELETE("/users/:id", userHandler.Delete)
	identityRoutes.POST("/users/:id/activate", userHandler.Activate)
	identityRoutes.POST("/users/:id/deactivate", userHandler.Deactivate)
	identityRoutes.POST("/users/:id/lock", userHandler.Lock)
	identityRoutes.POST("/users/:id/unlock", userHandler.Unlock)
	identityRoutes.POST("/users/:id/reset-password", userHandler.ResetPassword)
	identityRoutes.PUT("/users/:id/roles", userHandler.AssignRoles)

	// Role management routes
	identityRoutes.POST("/roles", roleHandler.Create)
	identityRoutes.GET("/roles", roleHandler.List)
	identityRoutes.GET("/roles/system", roleHandler.GetSystemRoles)
	identityRoutes.GET("/roles/stats/count", roleHandler.Count)
	identityRoutes.GET("/roles/:id", roleHandler.GetByID)
	identityRoutes.GET("/roles/code/:code", roleHandler.GetByCode)
	identityRoutes.PUT("/roles/:id", roleHandler.Update)
	identityRoutes.DELETE("/roles/:id", roleHandler.Delete)
	identityRoutes.POST("/roles/:id/enable", roleHandler.Enable)
	identityRoutes.POST("/roles/:id/disable", roleHandler.Disable)
	identityRoutes.PUT("/roles/:id/permissions", roleHandler.SetPermissions)
	identityRoutes.PUT("/roles/:id/datascopes", roleHandler.SetDataScopes)

	// Permission catalog
	identityRoutes.GET("/permissions", roleHandler.GetPermissions)

	// System routes: info, ping and outbox administration
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	outboxRoutes := systemRoutes.Group("outbox", "/outbox")
	outboxRoutes.Use(middleware.RequireAnyPermissionWithConfig(
		middleware.PermissionConfig{Logger: log}, "outbox:manage"))
	outboxRoutes.GET("/dead", outboxHandler.ListDeadLetters)
	outboxRoutes.POST("/dead/retry-all", outboxHandler.RequeueAllDead)
	outboxRoutes.GET("/stats", outboxHandler.GetStats)
	outboxRoutes.GET("/:id", outboxHandler.GetEntry)
	outboxRoutes.POST("/:id/retry", outboxHandler.RequeueEntry)

	// Register all domain groups
	r.Register(authRoutes).
		Register(workflowRoutes).
		Register(requestRoutes).
		Register(loanRoutes).
		Register(identityRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
