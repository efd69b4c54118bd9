package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/common"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/db"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/handlers"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/middleware"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/repository"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/services"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func main() {
	ctx := context.Background()

	// Set up structured logging
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))

	// Load environment variables
	if _, err := os.Stat(common.PRIVATE_CREDENTIALS_DOTENV); err == nil {
		if err := godotenv.Load(common.PRIVATE_CREDENTIALS_DOTENV); err != nil {
			slog.Error("Failed to load .env.private file", "error", err)
			os.Exit(1)
		}
	}

	cfgDir := getEnv("CONFIG_DIR", common.DEFAULT_CONFIG_DIR)

	// Load configuration
	cfg, err := common.LoadConfig(cfgDir)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Load the plan catalog
	plans, err := common.LoadPlans(cfgDir)
	if err != nil {
		slog.Error("Failed to load plans", "error", err)
		os.Exit(1)
	}
	slog.Info("Plan catalog loaded", "count", len(plans))

	// Connect to the database
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Initialize Redis (webhook dedup cache); optional
	var dedup services.EventDedup
	if cfg.RedisAddr != "" {
		redisClient, err := storage.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisPrefix, 0)
		if err != nil {
			slog.Error("Failed to initialize Redis client", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		dedup = redisClient
	} else {
		slog.Warn("No Redis address configured, webhook dedup cache disabled")
	}

	// Initialize S3 storage (document uploads and signed reads); optional
	var s3Store *storage.S3Storage
	if cfg.S3Bucket != "" {
		s3Store, err = storage.NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Region)
		if err != nil {
			slog.Error("Failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("No S3 bucket configured, document upload and signed-URL routes disabled")
	}

	// Initialize Stripe
	stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	// Initialize email notifications
	emailSvc := services.NewEmailService(cfg.ResendAPIKey, cfg.EmailFrom)

	// Repositories and services
	subRepo := repository.NewSubscriptionRepo(database.DB)
	paymentRepo := repository.NewPaymentRepo(database.DB)

	documentURLTTL := time.Duration(cfg.DocumentURLTTLMinutes) * time.Minute

	subSvc := services.NewSubscriptionService(subRepo, emailSvc, plans)
	paymentSvc := services.NewPaymentService(paymentRepo, subRepo, stripeSvc, dedup)

	subHandler := handlers.NewSubscriptionHandler(subSvc, nil)
	if s3Store != nil {
		docSvc := services.NewDocumentService(subRepo, s3Store, documentURLTTL)
		subHandler = handlers.NewSubscriptionHandler(subSvc, docSvc)
	}
	paymentHandler := handlers.NewPaymentHandler(paymentSvc)
	webhookHandler := handlers.NewWebhookHandler(paymentSvc)

	// Initialize Gin router
	r := gin.Default()

	env := getEnv("APP_ENV", "production")
	trustedProxies := getEnv("TRUSTED_PROXIES", "")
	corsOrigins := getEnv("CORS_ORIGINS", "")

	if env != "development" && trustedProxies == "" {
		slog.Error("In production mode, TRUSTED_PROXIES must be set")
		os.Exit(1)
	} else if trustedProxies != "" {
		slog.Info("Setting trusted proxies", "proxies", trustedProxies)
		proxies := strings.Split(trustedProxies, ",")
		if err := r.SetTrustedProxies(proxies); err != nil {
			slog.Error("Failed to set trusted proxies", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("No trusted proxies set (TRUSTED_PROXIES not defined)")
	}

	// Configure CORS
	corsConfig := cors.DefaultConfig()

	if env != "development" && corsOrigins == "" {
		slog.Error("In production mode, CORS_ORIGINS must be set")
		os.Exit(1)
	} else if corsOrigins != "" {
		slog.Info("CORS origins set from CORS_ORIGINS")
		corsConfig.AllowOrigins = strings.Split(corsOrigins, ",")
	} else {
		slog.Warn("Using default origin function in non-production mode (CORS_ORIGINS not defined)")
		corsConfig.AllowOriginFunc = func(origin string) bool {
			if origin == "http://localhost" || strings.HasPrefix(origin, "http://localhost:") {
				return true
			}
			return false
		}
	}

	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-API-Key", "Stripe-Signature"}
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Upload and document routes (require S3)
	if s3Store != nil {
		uploadHandler := handlers.NewUploadHandler(s3Store, documentURLTTL)
		r.POST("/api/upload/id-document", uploadHandler.UploadIDDocument)
		r.GET("/api/subscriptions/:id/document-url", subHandler.DocumentURL)
	}

	// Subscription routes
	r.POST("/api/subscriptions", subHandler.Create)
	r.POST("/api/subscriptions/lookup", subHandler.Lookup)
	r.GET("/api/subscriptions/:id", subHandler.GetByID)
	r.PUT("/api/subscriptions/:id/extend", subHandler.Extend)

	// Admin reads (API key protected)
	admin := r.Group("/", middleware.APIKeyAuthMiddleware(cfg.AdminAPIKey))
	{
		admin.GET("/api/subscriptions", subHandler.List)
		admin.GET("/api/subscriptions/list", subHandler.List)
		admin.GET("/api/subscriptions/export", subHandler.Export)
		admin.GET("/api/subscriptions/stats", subHandler.Stats)
	}

	// Payment routes
	r.POST("/api/stripe/create-payment-intent", paymentHandler.CreatePaymentIntent)
	r.POST("/api/stripe/create-checkout-session", paymentHandler.CreateCheckoutSession)
	r.GET("/api/payments/:id", paymentHandler.GetPayment)
	r.GET("/api/payments/subscription/:subscriptionId", paymentHandler.ListPaymentsForSubscription)

	// Webhook route (no auth, verified via Stripe signature)
	r.POST("/api/stripe/webhook", webhookHandler.HandleWebhook)

	slog.Info("Server starting", "addr", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}
