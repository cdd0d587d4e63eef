package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"invoicing-service/internal/cache"
	"invoicing-service/internal/clients"
	"invoicing-service/internal/config"
	"invoicing-service/internal/encryption"
	"invoicing-service/internal/events"
	"invoicing-service/internal/handlers"
	"invoicing-service/internal/metrics"
	"invoicing-service/internal/middleware"
	"invoicing-service/internal/models"
	"invoicing-service/internal/queue"
	"invoicing-service/internal/repository"
	"invoicing-service/internal/services"
)

// @title Invoicing Service API
// @version 1.0
// @description Multi-tenant invoicing back-end: invoice lifecycle, payment confirmations and auto-orders.

// @host localhost:8080
// @BasePath /api
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logrus.StandardLogger()
	if level, err := logrus.ParseLevel(cfg.App.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if cfg.IsProduction() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := migrateDatabase(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Redis is an optional L2; the cache degrades to in-process only.
	var redisClient *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("invalid REDIS_URL, continuing without redis")
		} else {
			redisClient = redis.NewClient(opt)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				logger.WithError(err).Warn("redis unreachable, continuing without it")
				redisClient = nil
			}
			cancel()
		}
	}

	appCache := cache.New(redisClient, 5*time.Minute)

	tasks := queue.New(logger, time.Second)
	tasks.Start()
	defer tasks.Stop()

	vault, err := encryption.NewVault(context.Background(), encryption.DefaultConfig())
	if err != nil {
		log.Fatalf("Failed to initialize encryption: %v", err)
	}

	publisher := events.NewPublisher(cfg.App.NATSURL)
	defer publisher.Close()

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	collector.SetCacheStatsSource(appCache)

	// Repositories.
	merchantRepo := repository.NewMerchantRepository(db)
	settingsRepo := repository.NewSettingsRepository(db, appCache)
	productRepo := repository.NewProductRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db, appCache)
	orderRepo := repository.NewOrderRepository(db)
	accessLogRepo := repository.NewAccessLogRepository(db)

	// External collaborators.
	notifier := clients.NewNotificationClient()
	extractor := clients.NewExtractorClient()
	blobs := clients.NewBlobClient()

	// Services.
	numbers := services.NewNumberService()
	authService := services.NewAuthService(merchantRepo, accessLogRepo, notifier, cfg.App.JWTSecret)
	settingsService := services.NewSettingsService(settingsRepo, vault, blobs, tasks)
	productService := services.NewProductService(productRepo)
	customerService := services.NewCustomerService(customerRepo)
	orderService := services.NewOrderService(orderRepo, invoiceRepo, numbers, publisher)
	invoiceService := services.NewInvoiceService(services.InvoiceServiceDeps{
		Invoices:  invoiceRepo,
		Merchants: merchantRepo,
		Audit:     accessLogRepo,
		Settings:  settingsService,
		Customers: customerService,
		Orders:    orderService,
		Numbers:   numbers,
		Extractor: extractor,
		Notifier:  notifier,
		Events:    publisher,
		UploadDir: cfg.App.UploadDir,
		BaseURL:   cfg.App.BaseURL,
	})

	// Handlers.
	authHandler := handlers.NewAuthHandler(authService, cfg.IsProduction())
	settingsHandler := handlers.NewSettingsHandler(settingsService, authService)
	productHandler := handlers.NewProductHandler(productService)
	customerHandler := handlers.NewCustomerHandler(customerService)
	invoiceHandler := handlers.NewInvoiceHandler(invoiceService)
	orderHandler := handlers.NewOrderHandler(orderService)
	publicHandler := handlers.NewPublicHandler(invoiceService, settingsService)
	webhookHandler := handlers.NewWebhookHandler(invoiceService)
	healthHandler := handlers.NewHealthHandler(db, redisClient, collector)

	router := setupRouter(cfg, collector, authService,
		authHandler, settingsHandler, productHandler, customerHandler,
		invoiceHandler, orderHandler, publicHandler, webhookHandler, healthHandler)

	server := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("invoicing service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("forced shutdown")
	}
}

// initDatabase opens Postgres with error translation on, so unique
// violations surface as gorm.ErrDuplicatedKey.
func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseDSN()), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func migrateDatabase(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Merchant{},
		&models.BusinessSettings{},
		&models.PaymentMethodConfig{},
		&models.Product{},
		&models.Customer{},
		&models.Invoice{},
		&models.Order{},
		&models.AccessLog{},
	)
}

func setupRouter(
	cfg *config.Config,
	collector *metrics.Collector,
	authService services.AuthService,
	authHandler *handlers.AuthHandler,
	settingsHandler *handlers.SettingsHandler,
	productHandler *handlers.ProductHandler,
	customerHandler *handlers.CustomerHandler,
	invoiceHandler *handlers.InvoiceHandler,
	orderHandler *handlers.OrderHandler,
	publicHandler *handlers.PublicHandler,
	webhookHandler *handlers.WebhookHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.SetupCORS(cfg.App.AllowedOrigins))
	router.Use(collector.Middleware())

	limiter := middleware.NewRateLimiter(middleware.DefaultLimits())
	requireAuth := middleware.RequireMerchant(authService)

	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api")
	api.Use(limiter.Limit(middleware.BucketGeneral))

	auth := api.Group("/auth")
	auth.Use(limiter.Limit(middleware.BucketAuth))
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
		auth.GET("/verify-email", authHandler.VerifyEmail)
		auth.POST("/resend-verification", authHandler.ResendVerification)

		auth.GET("/verify", requireAuth, authHandler.Verify)
		auth.POST("/change-password", requireAuth, authHandler.ChangePassword)
		auth.GET("/profile", requireAuth, authHandler.GetProfile)
		auth.PUT("/profile", requireAuth, authHandler.UpdateProfile)
	}

	// The extraction endpoint fronts an LLM; it gets the tightest budget.
	api.POST("/preview-invoice", limiter.Limit(middleware.BucketAI), requireAuth, invoiceHandler.Preview)

	merchant := api.Group("")
	merchant.Use(requireAuth)
	{
		merchant.GET("/business/settings", settingsHandler.GetSettings)
		merchant.POST("/business/settings", settingsHandler.UpdateSettings)
		merchant.POST("/upload-business-logo", settingsHandler.UploadLogo)
		merchant.DELETE("/remove-business-logo", settingsHandler.DeleteLogo)
		merchant.GET("/payment-methods", settingsHandler.GetPaymentMethods)
		merchant.POST("/payment-methods", settingsHandler.UpsertPaymentMethod)
		merchant.POST("/payment-methods/test", settingsHandler.TestGateway)

		merchant.POST("/confirm-invoice", invoiceHandler.Confirm)
		merchant.GET("/invoices", invoiceHandler.List)
		merchant.GET("/invoices/number/:number", invoiceHandler.GetByNumber)
		merchant.GET("/invoices/:id", invoiceHandler.Get)
		merchant.DELETE("/invoices/:id", invoiceHandler.Delete)
		merchant.PUT("/invoices/:id/status", invoiceHandler.UpdateStatus)
		merchant.PUT("/invoices/:id/payment-confirmations/approve", invoiceHandler.ApproveConfirmation)
		merchant.PUT("/invoices/:id/payment-confirmations/reject", invoiceHandler.RejectConfirmation)
		merchant.POST("/invoices/:id/confirm-down-payment", invoiceHandler.ConfirmDownPayment)

		merchant.GET("/orders", orderHandler.List)
		merchant.GET("/orders/:id", orderHandler.Get)
		merchant.PUT("/orders/:id/status", orderHandler.UpdateStatus)
		merchant.POST("/orders/sync-from-invoices", orderHandler.SyncFromInvoices)

		merchant.GET("/products", productHandler.List)
		merchant.GET("/products/search", productHandler.Search)
		merchant.GET("/products/:id", productHandler.Get)
		merchant.POST("/products", productHandler.Create)
		merchant.PUT("/products/:id", productHandler.Update)
		merchant.DELETE("/products/:id", productHandler.Delete)

		merchant.GET("/customers", customerHandler.Search)
		merchant.GET("/customers/:id", customerHandler.Get)
		merchant.POST("/customers", customerHandler.Create)
		merchant.PUT("/customers/:id", customerHandler.Update)
		merchant.DELETE("/customers/:id", customerHandler.Delete)

		merchant.GET("/stats", healthHandler.Stats)
	}

	// Customer-facing routes: the invoice token is the credential.
	api.GET("/customer/invoice/:token", publicHandler.CustomerInvoice)
	api.POST("/invoices/:id/payment-confirmation", publicHandler.SubmitConfirmation)
	api.GET("/final-payment/:token", publicHandler.FinalPayment)
	api.POST("/final-payment/:token/payment-confirmation", publicHandler.SubmitFinalConfirmation)
	api.POST("/checkout/:token", publicHandler.CreateCheckout)
	api.POST("/xendit/webhook", webhookHandler.HandleXendit)

	return router
}
