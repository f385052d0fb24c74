package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/memorialqr/memorial-qr-api/config"
	"github.com/memorialqr/memorial-qr-api/controllers"
	"github.com/memorialqr/memorial-qr-api/middleware"
	"github.com/memorialqr/memorial-qr-api/models"
	"github.com/memorialqr/memorial-qr-api/services"
	"gorm.io/gorm"
)

const (
	maxMultipartMemory = 32 << 20
	shutdownTimeout    = 20 * time.Second
)

func main() {
	log.Println("Starting Memorial QR API server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blobs, err := services.NewS3Service(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize S3: %v", err)
	}

	var sender services.EmailSender = services.LogSender{}
	if cfg.ResendAPIKey != "" {
		sender = services.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom)
	} else {
		log.Println("RESEND_API_KEY not set; emails will be logged instead of sent")
	}
	mailer := services.NewMailer(sender, cfg.EmailQueueSize)
	mailer.Start(cfg.EmailWorkers)

	deps := buildDependencies(cfg, db, blobs, mailer)
	router := setupRouter(cfg, db, deps, middleware.EnsureValidToken(cfg))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server is running on http://localhost:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown did not complete: %v", err)
	}
	// Requests are finished, so nothing else can enqueue; deliver what is left
	if err := mailer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Email queue was not fully drained: %v", err)
	}
	log.Println("Server stopped")
}

// buildDependencies wires every service from configuration. Square is disabled when no
// access token is configured.
func buildDependencies(cfg *config.Config, db *gorm.DB, blobs services.BlobStore, notifier services.Notifier) *controllers.Dependencies {
	catalog := services.DefaultCatalog()
	gateway := services.NewStripeGateway(cfg.StripeSecretKey)

	var squareClient services.SquareClient
	if cfg.SquareAccessToken != "" {
		squareClient = services.NewSquareClient(cfg)
	} else {
		log.Println("SQUARE_ACCESS_TOKEN not set; Square checkout is disabled")
	}

	orders := services.NewOrderStore(db, notifier, cfg.SiteURL, cfg.AdminEmail)
	memorials := services.NewMemorialProvisioner(db, blobs, services.NewQRGenerator(), orders, notifier, cfg.SiteURL)

	return &controllers.Dependencies{
		Catalog:   catalog,
		Orders:    orders,
		Checkout:  services.NewCheckoutInitiator(catalog, gateway, cfg.StripeSuccessURL, cfg.StripeCancelURL),
		SquarePay: services.NewSquareCheckout(db, catalog, squareClient, orders, memorials),
		Webhooks: services.NewWebhookReceiver(db, orders, memorials, gateway, notifier, catalog, services.WebhookConfig{
			StripeWebhookSecret:       cfg.StripeWebhookSecret,
			SquareWebhookSignatureKey: cfg.SquareWebhookSignatureKey,
			SquareWebhookURL:          cfg.SquareWebhookURL,
		}),
		Memorials: memorials,
		Content:   services.NewContentService(db, blobs, memorials, catalog),
		Referrals: services.NewReferralService(db, notifier),
		Users:     services.NewUserService(db, services.NewAuth0Service(cfg)),
	}
}

// setupRouter builds the gin engine with every route mounted under /api/v1
func setupRouter(cfg *config.Config, db *gorm.DB, deps *controllers.Dependencies, auth gin.HandlerFunc) *gin.Engine {
	router := gin.Default()
	router.MaxMultipartMemory = maxMultipartMemory

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	v1 := router.Group("/api/v1")
	{
		// Health check endpoint
		v1.GET("/health", healthCheck)

		// Database status endpoint
		v1.GET("/database/status", databaseStatus(db))

		controllers.RegisterRoutes(v1, deps, auth)
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Memorial QR API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get the underlying SQL database to check connection
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "Failed to get database instance",
				},
			})
			return
		}

		// Ping the database to verify connection
		if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_CONNECTION_ERROR",
					"message": "Database connection failed",
				},
			})
			return
		}

		tables, err := db.WithContext(c.Request.Context()).Migrator().GetTables()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_QUERY_ERROR",
					"message": "Failed to query tables",
				},
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Database connected",
			"tables":  tables,
		})
	}
}
